package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jittakal/ringstore/internal/bench"
	"github.com/jittakal/ringstore/internal/dump"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/ring"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "ringctl",
		Short:        "Tools for ring benchmarks and raw object dumps",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	root.AddCommand(newBenchCmd(&logLevel), newDumpCmd())
	return root
}

func newBenchCmd(logLevel *string) *cobra.Command {
	cfg := bench.DefaultConfig()
	var lapPolicy string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive one ring with a sender and a receiver and report delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.LapPolicy = ring.LapPolicy(lapPolicy)

			logger, err := initLogger(*logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := bench.Run(ctx, cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.NodeCount, "nodes", cfg.NodeCount, "number of ring nodes")
	f.IntVar(&cfg.ObjectsPerNode, "objects-per-node", cfg.ObjectsPerNode, "objects per node")
	f.StringVar(&lapPolicy, "lap-policy", string(cfg.LapPolicy), "behaviour when the writer laps the reader (stop, freeze)")
	f.IntVar(&cfg.SendGrain, "send-grain", cfg.SendGrain, "objects pushed per send")
	f.DurationVar(&cfg.SendInterval, "send-interval", cfg.SendInterval, "time between sends")
	f.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "wait before re-pushing a short write")
	f.IntVar(&cfg.RecvGrain, "recv-grain", cfg.RecvGrain, "objects pulled per receive")
	f.DurationVar(&cfg.RecvInterval, "recv-interval", cfg.RecvInterval, "static part of the receive interval")
	f.DurationVar(&cfg.RecvJitter, "recv-jitter", cfg.RecvJitter, "random part of the receive interval")
	f.DurationVar(&cfg.Duration, "duration", time.Minute, "run length, 0 runs until interrupted")
	return cmd
}

func newDumpCmd() *cobra.Command {
	var (
		layoutName  string
		format      string
		compression string
		output      string
		topic       string
		partition   int32
	)

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Convert a raw object dump to csv, avro or parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := record.LookupLayout(layoutName)
			if err != nil {
				return err
			}

			result, err := dump.Convert(args[0], output, dump.Options{
				Layout:      layout,
				Format:      record.FileFormat(format),
				Compression: compression,
				Stream:      record.StreamID{Topic: topic, Partition: partition},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %s %s objects to %s", humanize.Comma(int64(result.Objects)), layout.Name(), result.OutputPath)
			if result.Stats != nil {
				fmt.Fprintf(out, " (%s)", humanize.Bytes(uint64(result.Stats.SizeBytes)))
			}
			fmt.Fprintln(out)
			if result.TrailingBytes > 0 {
				fmt.Fprintf(out, "ignored %d trailing bytes\n", result.TrailingBytes)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&layoutName, "layout", "migration", fmt.Sprintf("object layout %v", record.LayoutNames()))
	f.StringVar(&format, "format", string(record.FormatCSV), "output format (csv, avro, parquet)")
	f.StringVar(&compression, "compression", "", "output compression, empty for the format default")
	f.StringVarP(&output, "output", "o", "", "output file, derived from the input when empty")
	f.StringVar(&topic, "topic", "dump", "stream topic recorded on each object")
	f.Int32Var(&partition, "partition", 0, "stream partition recorded on each object")
	return cmd
}

// initLogger builds a zap logger for the given level.
func initLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	switch level {
	case "debug":
		config = zap.NewDevelopmentConfig()
	default:
		config = zap.NewProductionConfig()
		config.Level = parseLogLevel(level)
	}

	return config.Build()
}

func parseLogLevel(level string) zap.AtomicLevel {
	switch level {
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
