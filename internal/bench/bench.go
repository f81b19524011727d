// Package bench drives a single ring with one sending and one receiving
// goroutine and reports how many objects made it through.
//
// The sender pushes a grain of sequential sample objects every interval. When
// a push comes back short it waits for the retry delay and pushes the unsent
// tail once more; whatever still does not fit is lost. The receiver wakes on a
// static plus random interval and pulls while full nodes are pending. When the
// run ends the ring is drained, including the partially written node.
package bench

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/ringstore/internal/errors"
	internalring "github.com/jittakal/ringstore/internal/ring"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/ring"
)

// Config configures a benchmark run.
type Config struct {
	NodeCount      int
	ObjectsPerNode int
	LapPolicy      ring.LapPolicy

	SendGrain    int
	SendInterval time.Duration
	RetryDelay   time.Duration

	RecvGrain    int
	RecvInterval time.Duration
	RecvJitter   time.Duration

	// Duration of zero runs until the context is cancelled.
	Duration time.Duration
}

// DefaultConfig returns the classic geometry: 8 nodes of 6 sample objects,
// one grain sent per second and received every 8 to 13 seconds.
func DefaultConfig() Config {
	return Config{
		NodeCount:      8,
		ObjectsPerNode: 6,
		LapPolicy:      ring.LapStop,
		SendGrain:      6,
		SendInterval:   time.Second,
		RetryDelay:     15 * time.Second,
		RecvGrain:      6,
		RecvInterval:   8 * time.Second,
		RecvJitter:     5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SendGrain < 1 || c.RecvGrain < 1 {
		return fmt.Errorf("send and receive grains must be at least 1")
	}
	if c.SendInterval <= 0 || c.RecvInterval <= 0 {
		return fmt.Errorf("send and receive intervals must be positive")
	}
	if c.RetryDelay < 0 || c.RecvJitter < 0 || c.Duration < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// Report summarises a run.
type Report struct {
	Sent      uint64
	Pushed    uint64
	Lost      uint64
	Spills    uint64
	Received  uint64
	Final     uint64
	// Rotations counts full passes of the writer over every node, from
	// objects the ring accepted.
	Rotations uint64
	Laps      uint64
	// Contiguous is true when the received ids have no gaps and never go back.
	Contiguous bool
	Elapsed    time.Duration
}

// Delivered returns the objects read out of the ring, including the final node.
func (r Report) Delivered() uint64 {
	return r.Received + r.Final
}

// String formats the report for a terminal.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "objects sent:        %s (%s)\n", humanize.Comma(int64(r.Sent)), humanize.Bytes(r.Sent*record.SampleSize))
	fmt.Fprintf(&b, "objects pushed:      %s\n", humanize.Comma(int64(r.Pushed)))
	fmt.Fprintf(&b, "objects lost:        %s\n", humanize.Comma(int64(r.Lost)))
	fmt.Fprintf(&b, "push retries:        %s\n", humanize.Comma(int64(r.Spills)))
	fmt.Fprintf(&b, "objects received:    %s\n", humanize.Comma(int64(r.Received)))
	fmt.Fprintf(&b, "final node objects:  %s\n", humanize.Comma(int64(r.Final)))
	fmt.Fprintf(&b, "ring rotations:      %s\n", humanize.Comma(int64(r.Rotations)))
	fmt.Fprintf(&b, "writer laps:         %s\n", humanize.Comma(int64(r.Laps)))
	fmt.Fprintf(&b, "ids contiguous:      %t\n", r.Contiguous)
	fmt.Fprintf(&b, "elapsed:             %s\n", r.Elapsed.Round(time.Millisecond))
	return b.String()
}

// tracker checks the ids the receiver sees.
type tracker struct {
	next       uint64
	count      uint64
	contiguous bool
}

func newTracker() *tracker {
	return &tracker{contiguous: true}
}

func (t *tracker) observe(buf []byte, n int) error {
	for i := range n {
		s, err := record.ParseSample(buf[i*record.SampleSize : (i+1)*record.SampleSize])
		if err != nil {
			return err
		}
		if s.ID != t.next {
			t.contiguous = false
		}
		if s.ID >= t.next {
			t.next = s.ID + 1
		}
		t.count++
	}
	return nil
}

// sender state, owned by the sending goroutine.
type sender struct {
	sent   uint64
	pushed uint64
	lost   uint64
	spills uint64
}

// Run executes a benchmark until cfg.Duration elapses or ctx is cancelled.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	c, err := internalring.New(internalring.Config{
		Name:           "bench",
		NodeCount:      cfg.NodeCount,
		ObjectsPerNode: cfg.ObjectsPerNode,
		ObjectSize:     record.SampleSize,
		LapPolicy:      cfg.LapPolicy,
	})
	if err != nil {
		return Report{}, fmt.Errorf("create ring: %w", err)
	}
	defer c.Close()

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	logger.Info("benchmark started",
		zap.Int("nodes", cfg.NodeCount),
		zap.Int("objects_per_node", cfg.ObjectsPerNode),
		zap.Int("send_grain", cfg.SendGrain),
		zap.Duration("send_interval", cfg.SendInterval),
		zap.Int("recv_grain", cfg.RecvGrain),
		zap.Duration("recv_interval", cfg.RecvInterval),
		zap.Duration("duration", cfg.Duration),
	)

	start := time.Now()
	snd := &sender{}
	seen := newTracker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return snd.run(gctx, c, cfg, logger) })
	g.Go(func() error { return receive(gctx, c, cfg, seen, logger) })
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	received := seen.count
	final, err := drain(c, seen, logger)
	if err != nil {
		return Report{}, err
	}

	stats := c.Stats()
	report := Report{
		Sent:       snd.sent,
		Pushed:     snd.pushed,
		Lost:       snd.lost,
		Spills:     snd.spills,
		Received:   seen.count - final,
		Final:      final,
		Rotations:  stats.PushedObjects / uint64(cfg.NodeCount*cfg.ObjectsPerNode),
		Laps:       stats.Laps,
		Contiguous: seen.contiguous,
		Elapsed:    time.Since(start),
	}

	logger.Info("benchmark finished",
		zap.Uint64("sent", report.Sent),
		zap.Uint64("received_during_run", received),
		zap.Uint64("delivered", report.Delivered()),
		zap.Uint64("lost", report.Lost),
		zap.Bool("contiguous", report.Contiguous),
	)
	return report, nil
}

func (s *sender) run(ctx context.Context, c *internalring.Controller, cfg Config, logger *zap.Logger) error {
	ticker := time.NewTicker(cfg.SendInterval)
	defer ticker.Stop()

	buf := make([]byte, cfg.SendGrain*record.SampleSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for i := range cfg.SendGrain {
			record.Sample{ID: s.sent}.Put(buf[i*record.SampleSize:])
			s.sent++
		}

		n, err := push(c, buf)
		if err != nil {
			return err
		}
		s.pushed += uint64(n)
		if n == cfg.SendGrain {
			continue
		}

		s.spills++
		logger.Debug("short write, retrying tail",
			zap.Int("pushed", n),
			zap.Int("remaining", cfg.SendGrain-n),
			zap.Duration("retry_delay", cfg.RetryDelay),
		)

		m := 0
		if sleep(ctx, cfg.RetryDelay) {
			if m, err = push(c, buf[n*record.SampleSize:]); err != nil {
				return err
			}
		}
		s.pushed += uint64(m)
		s.lost += uint64(cfg.SendGrain - n - m)
	}
}

// push treats a frozen ring as a short write.
func push(c *internalring.Controller, buf []byte) (int, error) {
	n, err := c.Push(buf)
	if stderrors.Is(err, errors.ErrRingFrozen) {
		return 0, nil
	}
	return n, err
}

func receive(ctx context.Context, c *internalring.Controller, cfg Config, seen *tracker, logger *zap.Logger) error {
	buf := make([]byte, cfg.RecvGrain*record.SampleSize)
	for {
		wait := cfg.RecvInterval
		if cfg.RecvJitter > 0 {
			wait += rand.N(cfg.RecvJitter)
		}
		if !sleep(ctx, wait) {
			return nil
		}

		for c.PullableObjects().Total > 0 {
			n, err := c.Pull(buf)
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
			if err := seen.observe(buf, n); err != nil {
				return err
			}
			logger.Debug("pulled objects", zap.Int("count", n))
		}
	}
}

// drain closes the ring for writes, pulls what is pending and then the
// partially written node. It returns the final node's object count.
func drain(c *internalring.Controller, seen *tracker, logger *zap.Logger) (uint64, error) {
	snapshot := c.BeginDrain()
	logger.Info("draining ring",
		zap.Int("pullable", snapshot.Pullable.Total),
		zap.Int("in_progress", snapshot.InProgress),
	)

	if total := snapshot.Pullable.Total; total > 0 {
		buf := make([]byte, total*record.SampleSize)
		n, err := c.Pull(buf)
		if err != nil {
			return 0, err
		}
		if err := seen.observe(buf, n); err != nil {
			return 0, err
		}
	}

	buf := make([]byte, c.ObjectsPerNode()*record.SampleSize)
	n, err := c.PullFinal(buf)
	if err != nil {
		return 0, err
	}
	if err := seen.observe(buf, n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
