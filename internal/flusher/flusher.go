// Package flusher is the reader side of the service. It pulls full nodes out
// of every ring on a fixed period, turns the objects into records and hands
// them to a storage writer when the rotation policy says so. At shutdown it
// runs the drain protocol so the partially written node of each ring is
// stored too.
package flusher

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jittakal/ringstore/internal/errors"
	internalring "github.com/jittakal/ringstore/internal/ring"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/ring"
	"github.com/jittakal/ringstore/pkg/storage"
)

// Flush phases reported to metrics.
const (
	PhasePeriodic = "periodic"
	PhaseDrain    = "drain"
)

// Config configures the flusher.
type Config struct {
	Period time.Duration
	// Grain is the number of objects requested per pull.
	Grain  int
	Layout record.Layout
	Format record.FileFormat
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("flush period must be positive")
	}
	if c.Grain < 1 {
		return fmt.Errorf("flush grain must be at least 1, got %d", c.Grain)
	}
	if c.Layout == nil {
		return fmt.Errorf("flush layout is required")
	}
	if c.Format == "" {
		return fmt.Errorf("flush format is required")
	}
	return nil
}

// MetricsCollector defines metrics operations for the flusher.
type MetricsCollector interface {
	ObserveRing(stats ring.Stats)
	AddObjectsPulled(topic string, partition int32, n int)
	AddFinalObjects(topic string, partition int32, n int)
	SetRecordsBuffered(topic string, partition int32, count int)
	ObserveFlushDuration(phase string, duration float64)
}

// streamBuffer holds the records of one stream that are not stored yet.
type streamBuffer struct {
	records []record.Record
	stats   record.FileStats
	nextSeq int64
}

func (b *streamBuffer) add(records []record.Record, size int) {
	if len(records) == 0 {
		return
	}
	now := records[len(records)-1].PulledAt
	if len(b.records) == 0 {
		b.stats.FirstWriteTime = records[0].PulledAt
	}
	b.records = append(b.records, records...)
	b.stats.RecordCount += len(records)
	b.stats.SizeBytes += int64(len(records) * size)
	b.stats.LastWriteTime = now
	b.nextSeq += int64(len(records))
}

func (b *streamBuffer) reset() {
	b.records = nil
	b.stats = record.FileStats{}
}

// Flusher is the single reader of every ring in a manager.
type Flusher struct {
	config  Config
	rings   *internalring.Manager
	writer  storage.Writer
	router  storage.Router
	policy  storage.RotationPolicy
	logger  *slog.Logger
	metrics MetricsCollector

	mu      sync.Mutex
	buffers map[record.StreamID]*streamBuffer
	now     func() time.Time
}

// New creates a flusher.
func New(
	config Config,
	rings *internalring.Manager,
	writer storage.Writer,
	router storage.Router,
	policy storage.RotationPolicy,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*Flusher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flush config: %w", err)
	}
	if rings == nil || writer == nil || router == nil || policy == nil {
		return nil, fmt.Errorf("rings, writer, router and rotation policy are required")
	}
	return &Flusher{
		config:  config,
		rings:   rings,
		writer:  writer,
		router:  router,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
		buffers: make(map[record.StreamID]*streamBuffer),
		now:     time.Now,
	}, nil
}

// Run flushes every period until ctx is done. It does not drain.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.config.Period)
	defer ticker.Stop()

	f.logger.Info("flusher started",
		"period", f.config.Period,
		"grain", f.config.Grain,
		"format", f.config.Format,
	)

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("context cancelled, stopping flusher")
			return nil
		case <-ticker.C:
			if err := f.FlushOnce(ctx); err != nil {
				f.logger.Error("flush failed", "error", err)
			}
		}
	}
}

// FlushOnce pulls whatever is pending in each ring and writes the streams
// whose rotation policy is satisfied.
func (f *Flusher) FlushOnce(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	defer func() {
		f.metrics.ObserveFlushDuration(PhasePeriodic, time.Since(start).Seconds())
	}()

	var errs []error
	f.rings.Each(func(stream record.StreamID, c *internalring.Controller) {
		buf := f.buffer(stream)
		if err := f.collect(stream, c, buf); err != nil {
			errs = append(errs, err)
		}
		f.metrics.ObserveRing(c.Stats())

		if len(buf.records) > 0 && f.policy.ShouldRotate(buf.stats) {
			if err := f.write(ctx, stream, buf); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return stderrors.Join(errs...)
}

// Drain closes every ring for writes, pulls the pending nodes, then the
// partially written node, and writes whatever is buffered regardless of the
// rotation policy. Call it after the writer side has stopped.
func (f *Flusher) Drain(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	defer func() {
		f.metrics.ObserveFlushDuration(PhaseDrain, time.Since(start).Seconds())
	}()

	var errs []error
	f.rings.Each(func(stream record.StreamID, c *internalring.Controller) {
		if err := f.drainRing(ctx, stream, c); err != nil {
			errs = append(errs, err)
		}
	})
	return stderrors.Join(errs...)
}

func (f *Flusher) drainRing(ctx context.Context, stream record.StreamID, c *internalring.Controller) error {
	snapshot := c.BeginDrain()
	f.logger.Info("draining ring",
		"ring", c.Name(),
		"in_progress", snapshot.InProgress,
		"pullable", snapshot.Pullable.Total,
	)

	// The partial node is pulled and written even when collect fails.
	var errs []error
	buf := f.buffer(stream)
	if err := f.collect(stream, c, buf); err != nil {
		errs = append(errs, err)
	}

	// A node never holds more than ObjectsPerNode objects.
	final := make([]byte, c.ObjectsPerNode()*c.ObjectSize())
	n, err := c.PullFinal(final)
	switch {
	case err != nil:
		errs = append(errs, &errors.TransferError{Stream: stream, Operation: "pull_final", Requested: snapshot.InProgress, Err: err})
	case n > 0:
		if err := f.append(stream, buf, final[:n*c.ObjectSize()]); err != nil {
			errs = append(errs, err)
		} else {
			f.metrics.AddFinalObjects(stream.Topic, stream.Partition, n)
		}
	}
	f.metrics.ObserveRing(c.Stats())

	if len(buf.records) > 0 {
		if err := f.write(ctx, stream, buf); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// collect pulls grain-sized batches while full nodes are pending.
func (f *Flusher) collect(stream record.StreamID, c *internalring.Controller, buf *streamBuffer) error {
	size := c.ObjectSize()
	for c.PullableObjects().Total > 0 {
		dst := make([]byte, f.config.Grain*size)
		n, err := c.Pull(dst)
		if err != nil {
			return &errors.TransferError{Stream: stream, Operation: "pull", Requested: f.config.Grain, Done: n, Err: err}
		}
		if n == 0 {
			break
		}
		if err := f.append(stream, buf, dst[:n*size]); err != nil {
			return err
		}
		f.metrics.AddObjectsPulled(stream.Topic, stream.Partition, n)
	}
	return nil
}

func (f *Flusher) append(stream record.StreamID, buf *streamBuffer, data []byte) error {
	records, err := record.Split(stream, f.config.Layout, data, buf.nextSeq, f.now())
	if err != nil {
		return fmt.Errorf("split objects of %s: %w", stream, err)
	}
	buf.add(records, f.config.Layout.Size())
	f.metrics.SetRecordsBuffered(stream.Topic, stream.Partition, len(buf.records))
	return nil
}

// write stores a stream's buffered records. Records that failed with a
// retryable error stay buffered for the next pass.
func (f *Flusher) write(ctx context.Context, stream record.StreamID, buf *streamBuffer) error {
	path := f.router.Route(stream, f.config.Layout.Name(), buf.records[0].PulledAt.Unix())

	written, err := f.writer.Write(ctx, buf.records, path, f.config.Format)
	if err != nil {
		if errors.IsRetryable(err) {
			f.logger.Warn("storage write failed, keeping records",
				"topic", stream.Topic,
				"partition", stream.Partition,
				"records", len(buf.records),
				"error", err,
			)
		} else {
			f.logger.Error("storage write failed, discarding records",
				"topic", stream.Topic,
				"partition", stream.Partition,
				"records", len(buf.records),
				"error", err,
			)
			buf.reset()
			f.metrics.SetRecordsBuffered(stream.Topic, stream.Partition, 0)
		}
		return err
	}

	f.logger.Info("wrote batch to storage",
		"topic", stream.Topic,
		"partition", stream.Partition,
		"records", len(buf.records),
		"bytes", written,
		"path", path,
	)
	buf.reset()
	f.metrics.SetRecordsBuffered(stream.Topic, stream.Partition, 0)
	return nil
}

func (f *Flusher) buffer(stream record.StreamID) *streamBuffer {
	buf, ok := f.buffers[stream]
	if !ok {
		buf = &streamBuffer{}
		f.buffers[stream] = buf
	}
	return buf
}

// Buffered returns the number of records pulled but not stored for a stream.
func (f *Flusher) Buffered(stream record.StreamID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if buf, ok := f.buffers[stream]; ok {
		return len(buf.records)
	}
	return 0
}
