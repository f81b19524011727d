package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/ringstore/internal/config"
	"github.com/jittakal/ringstore/internal/config/dto"
	"github.com/jittakal/ringstore/internal/encoder"
	"github.com/jittakal/ringstore/internal/flusher"
	"github.com/jittakal/ringstore/internal/generator"
	"github.com/jittakal/ringstore/internal/ingest"
	"github.com/jittakal/ringstore/internal/kafka"
	"github.com/jittakal/ringstore/internal/observability"
	internalring "github.com/jittakal/ringstore/internal/ring"
	"github.com/jittakal/ringstore/internal/server"
	"github.com/jittakal/ringstore/internal/storage"
	"github.com/jittakal/ringstore/internal/validator"
	"github.com/jittakal/ringstore/pkg/consumer"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/ring"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	logger.Info("starting ringstore",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"source", cfg.Source.Type,
		"layout", cfg.Ring.Layout,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cleanup runs in reverse registration order.
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", "component", name, "error", err)
				return err
			}
			return nil
		})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			_ = cleanupFuncs[i]()
		}
	}()

	layout, err := record.LookupLayout(cfg.Ring.Layout)
	if err != nil {
		return err
	}

	rings, err := internalring.NewManager(internalring.Config{
		NodeCount:      cfg.Ring.NodeCount,
		ObjectsPerNode: cfg.Ring.ObjectsPerNode,
		ObjectSize:     layout.Size(),
		LapPolicy:      ring.LapPolicy(cfg.Ring.LapPolicy),
		MaxBytes:       cfg.Ring.MaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create ring manager: %w", err)
	}
	addCleanup("rings", rings.Close)

	source, err := newSource(cfg, layout, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("source", source.Close)

	dlqPublisher, err := kafka.NewDLQPublisher(
		cfg.Kafka.BootstrapServers,
		securityConfig(cfg.Kafka),
		kafka.DLQConfig{
			Enabled:     cfg.Kafka.DLQ.Enabled,
			TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
			MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
		},
		logger,
		metrics,
		cfg.Application.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	format := record.FileFormat(cfg.Storage.Format)
	compression := cfg.Storage.Compression
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}

	backend := backendConfig(cfg.Storage)
	writer, err := storage.NewWriter(backend, format, compression, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("storage-writer", writer.Close)

	policy := storage.NewPolicy(storage.PolicyConfig{
		MaxFileSizeMB:      cfg.FileRotation.MaxFileSizeMB,
		MaxRecordsPerFile:  cfg.FileRotation.MaxRecordsPerFile,
		MaxDurationSeconds: cfg.FileRotation.MaxDurationSeconds,
		Strategy:           cfg.FileRotation.Strategy,
	})

	ingester, err := ingest.New(
		ingest.Config{
			MaxAttempts:    cfg.Ingest.MaxAttempts,
			InitialBackoff: cfg.Ingest.InitialBackoff(),
			MaxBackoff:     cfg.Ingest.MaxBackoff(),
			Multiplier:     cfg.Ingest.BackoffMultiplier,
		},
		rings,
		validator.NewPayloadValidator(layout),
		dlqPublisher,
		source,
		logger,
		metrics,
	)
	if err != nil {
		return err
	}

	reader, err := flusher.New(
		flusher.Config{
			Period: cfg.Flush.Period(),
			Grain:  cfg.Flush.Grain,
			Layout: layout,
			Format: format,
		},
		rings,
		writer,
		storage.NewRouterFor(backend),
		policy,
		logger,
		metrics,
	)
	if err != nil {
		return err
	}

	health := server.NewServiceHealth(rings)
	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		health,
		rings,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := source.Subscribe(ctx, cfg.Source.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	// runCtx ends on a signal or when the source runs dry.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	messages, errs, err := source.Consume(runCtx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	health.SetSourceUp(true)
	logger.Info("application started successfully")

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancelRun()
		return ingester.Run(gctx, messages, errs)
	})
	g.Go(func() error {
		return reader.Run(gctx)
	})

	runErr := g.Wait()
	health.SetSourceUp(false)
	if ctx.Err() != nil {
		logger.Info("received termination signal")
	}
	if runErr != nil {
		health.MarkFailed()
		logger.Error("processing failed", "error", runErr)
	}

	// Stop the writer side before draining so no push races the final read.
	if err := source.Close(); err != nil {
		logger.Warn("failed to close source", "error", err)
	}

	logger.Info("initiating drain", "rings", rings.Len())
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Shutdown.DrainTimeout())
	defer cancelDrain()

	start := time.Now()
	if err := reader.Drain(drainCtx); err != nil {
		logger.Error("drain failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("drain: %w", err)
	}
	logger.Info("drain complete", "duration", time.Since(start))

	if runErr != nil {
		return runErr
	}
	logger.Info("application stopped successfully")
	return nil
}

// newSource builds the configured message source.
func newSource(cfg *dto.ApplicationConfig, layout record.Layout, logger *slog.Logger, metrics *observability.Metrics) (consumer.Consumer, error) {
	switch cfg.Source.Type {
	case "kafka":
		c, err := kafka.NewSaramaConsumer(kafka.ConsumerConfig{
			BootstrapServers:    cfg.Kafka.BootstrapServers,
			GroupID:             cfg.Kafka.Consumer.GroupID,
			Security:            securityConfig(cfg.Kafka),
			AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
			MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
			SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
			HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
			ChannelBufferSize:   cfg.Kafka.Consumer.ChannelBufferSize,
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
		return c, nil
	default:
		gen := cfg.Source.Generator
		g, err := generator.New(generator.Config{
			Topics:            cfg.Source.Topics,
			Partitions:        gen.Partitions,
			Layout:            layout,
			ObjectsPerMessage: gen.ObjectsPerMessage,
			MessagesPerSecond: gen.MessagesPerSecond,
			Burst:             gen.Burst,
			MaxMessages:       gen.MaxMessages,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		return g, nil
	}
}

func securityConfig(cfg dto.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		Protocol:              cfg.SecurityProtocol,
		SASLMechanism:         cfg.SASLMechanism,
		SASLUsername:          cfg.SASLUsername,
		SASLPassword:          cfg.SASLPassword,
		AWSRegion:             cfg.AWSRegion,
		TLSInsecureSkipVerify: cfg.TLSInsecureSkipVerify,
	}
}

// backendConfig maps storage settings to the writer configuration. Secrets
// come from the environment when set there.
func backendConfig(cfg dto.StorageConfig) storage.BackendConfig {
	return storage.BackendConfig{
		Backend:  cfg.Backend,
		BasePath: cfg.BasePath,
		File:     storage.FileConfig{BasePath: cfg.File.BasePath},
		S3: storage.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			SSEEnabled:   cfg.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
		},
		GCS: storage.GCSConfig{
			Bucket:                cfg.GCS.Bucket,
			ProjectID:             cfg.GCS.ProjectID,
			CredentialsFile:       cfg.GCS.CredentialsFile,
			CredentialsJSON:       envOr("GCP_CREDENTIALS_JSON", cfg.GCS.CredentialsJSON),
			Endpoint:              cfg.GCS.Endpoint,
			UseDefaultCredential:  cfg.GCS.UseDefaultCredential,
			WithoutAuthentication: cfg.GCS.WithoutAuthentication,
		},
		Azure: storage.AzureConfig{
			AccountName:   cfg.Azure.AccountName,
			AccountKey:    envOr("AZURE_STORAGE_ACCOUNT_KEY", cfg.Azure.AccountKey),
			ContainerName: cfg.Azure.Container,
			Endpoint:      cfg.Azure.Endpoint,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
