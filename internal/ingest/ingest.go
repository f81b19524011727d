// Package ingest is the writer side of the service. It takes messages from a
// source, pushes their objects into the stream's ring and commits the source
// offset once every object is either in the ring or on the dead letter queue.
package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/internal/validator"
	"github.com/jittakal/ringstore/pkg/consumer"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/ring"
)

// Drop reasons attached to DLQ events.
const (
	ReasonInvalid     = "validation_failed"
	ReasonUnavailable = "ring_unavailable"
	ReasonSaturated   = "ring_saturated"
	ReasonDraining    = "ring_draining"
	ReasonCancelled   = "ingest_cancelled"
)

// errShortWrite marks a push that stopped early because the writer caught up
// with the reader. It only lives inside the retry loop.
var errShortWrite = stderrors.New("short write")

// Config controls how short writes are retried.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Validate checks the retry settings.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if c.Multiplier != 0 && c.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1")
	}
	return nil
}

func (c Config) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialBackoff > 0 {
		b.InitialInterval = c.InitialBackoff
	}
	if c.MaxBackoff > 0 {
		b.MaxInterval = c.MaxBackoff
	}
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	return b
}

// MetricsCollector defines metrics operations for ingest.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncInvalidMessages(topic string, partition int32)
	AddObjectsPushed(topic string, partition int32, n int)
	AddObjectsDropped(topic string, partition int32, reason string, n int)
	IncShortWrites(topic string, partition int32)
	IncPushRetries(topic string, partition int32)
}

// Outcome describes what happened to one message.
type Outcome struct {
	Objects  int
	Pushed   int
	Dropped  int
	Attempts int
	Reason   string
}

// Ingester is the single writer of every ring it feeds.
type Ingester struct {
	rings     ring.Manager
	validator *validator.PayloadValidator
	dlq       consumer.DLQPublisher
	source    consumer.Consumer
	config    Config
	logger    *slog.Logger
	metrics   MetricsCollector
}

// New creates an Ingester. dlq may be nil, in which case dropped objects are
// only counted. source is used to commit messages without a CommitFunc and
// may be nil.
func New(
	config Config,
	rings ring.Manager,
	v *validator.PayloadValidator,
	dlq consumer.DLQPublisher,
	source consumer.Consumer,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*Ingester, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	if rings == nil || v == nil {
		return nil, fmt.Errorf("ring manager and validator are required")
	}
	return &Ingester{
		rings:     rings,
		validator: v,
		dlq:       dlq,
		source:    source,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Run handles messages until the channel closes or ctx is done.
func (i *Ingester) Run(ctx context.Context, messages <-chan *record.Message, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			i.logger.Info("context cancelled, stopping ingest")
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			i.logger.Error("source error", "error", err)

		case msg, ok := <-messages:
			if !ok {
				i.logger.Info("message channel closed")
				return nil
			}
			if _, err := i.Handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				i.logger.Error("failed to handle message",
					"topic", msg.Stream.Topic,
					"partition", msg.Stream.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}
}

// Handle pushes one message into its ring. Objects the ring cannot take after
// the configured attempts go to the DLQ. The offset is committed unless ctx
// was cancelled before any object reached the ring.
func (i *Ingester) Handle(ctx context.Context, msg *record.Message) (Outcome, error) {
	var out Outcome
	stream := msg.Stream
	i.metrics.IncMessagesConsumed(stream.Topic, stream.Partition)

	if err := i.validator.Validate(msg); err != nil {
		i.logger.Warn("invalid message",
			"topic", stream.Topic,
			"partition", stream.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		i.metrics.IncInvalidMessages(stream.Topic, stream.Partition)
		out.Reason = ReasonInvalid
		i.publish(ctx, msg, msg.Payload, ReasonInvalid)
		return out, i.commit(ctx, msg)
	}
	out.Objects = i.validator.Objects(msg)

	r, err := i.rings.GetOrCreate(stream)
	if err != nil {
		i.logger.Error("ring unavailable",
			"topic", stream.Topic,
			"partition", stream.Partition,
			"error", err,
		)
		out.Dropped, out.Reason = out.Objects, ReasonUnavailable
		i.drop(ctx, msg, msg.Payload, out.Dropped, ReasonUnavailable)
		return out, i.commit(ctx, msg)
	}

	out.Pushed, out.Attempts, err = i.push(ctx, r, msg)
	if ctx.Err() != nil {
		return i.cancelled(ctx, r, msg, out)
	}

	if out.Pushed < out.Objects {
		out.Dropped = out.Objects - out.Pushed
		out.Reason = ReasonSaturated
		if stderrors.Is(err, errors.ErrWritesClosed) || stderrors.Is(err, errors.ErrRingClosed) {
			out.Reason = ReasonDraining
		}
		i.logger.Warn("dropping objects",
			"topic", stream.Topic,
			"partition", stream.Partition,
			"offset", msg.Offset,
			"pushed", out.Pushed,
			"dropped", out.Dropped,
			"attempts", out.Attempts,
			"reason", out.Reason,
		)
		i.drop(ctx, msg, msg.Payload[out.Pushed*r.ObjectSize():], out.Dropped, out.Reason)
	}

	return out, i.commit(ctx, msg)
}

// cancelled settles a message whose push was cut short by ctx. Nothing
// pushed leaves the offset uncommitted for redelivery. Otherwise the objects
// already in the ring are kept, the tail goes to the DLQ and the offset is
// committed, so redelivery cannot duplicate them.
func (i *Ingester) cancelled(ctx context.Context, r ring.Ring, msg *record.Message, out Outcome) (Outcome, error) {
	if out.Pushed == 0 {
		return out, ctx.Err()
	}

	settle := context.WithoutCancel(ctx)
	if out.Pushed < out.Objects {
		out.Dropped, out.Reason = out.Objects-out.Pushed, ReasonCancelled
		i.logger.Warn("dropping objects",
			"topic", msg.Stream.Topic,
			"partition", msg.Stream.Partition,
			"offset", msg.Offset,
			"pushed", out.Pushed,
			"dropped", out.Dropped,
			"attempts", out.Attempts,
			"reason", out.Reason,
		)
		i.drop(settle, msg, msg.Payload[out.Pushed*r.ObjectSize():], out.Dropped, out.Reason)
	}
	return out, stderrors.Join(ctx.Err(), i.commit(settle, msg))
}

// push writes the payload, retrying the unsent tail while the ring is
// saturated or frozen. It returns the objects pushed and the attempts made.
func (i *Ingester) push(ctx context.Context, r ring.Ring, msg *record.Message) (int, int, error) {
	stream := msg.Stream
	size := r.ObjectSize()
	total := len(msg.Payload) / size
	pushed, attempts := 0, 0

	operation := func() (int, error) {
		attempts++
		n, err := r.Push(msg.Payload[pushed*size:])
		if n > 0 {
			pushed += n
			i.metrics.AddObjectsPushed(stream.Topic, stream.Partition, n)
		}
		switch {
		case err != nil && errors.IsRetryable(err):
			return pushed, err
		case err != nil:
			return pushed, backoff.Permanent(&errors.TransferError{
				Stream:    stream,
				Operation: "push",
				Requested: total - pushed,
				Err:       err,
			})
		case pushed < total:
			i.metrics.IncShortWrites(stream.Topic, stream.Partition)
			return pushed, errShortWrite
		}
		return pushed, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(i.config.backOff()),
		backoff.WithMaxTries(uint(i.config.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			i.metrics.IncPushRetries(stream.Topic, stream.Partition)
			i.logger.Debug("retrying push",
				"topic", stream.Topic,
				"partition", stream.Partition,
				"pushed", pushed,
				"remaining", total-pushed,
				"backoff", next,
				"error", err,
			)
		}),
	)
	if stderrors.Is(err, errShortWrite) {
		err = nil
	}
	return pushed, attempts, err
}

func (i *Ingester) drop(ctx context.Context, msg *record.Message, payload []byte, objects int, reason string) {
	i.metrics.AddObjectsDropped(msg.Stream.Topic, msg.Stream.Partition, reason, objects)
	i.publish(ctx, msg, payload, reason)
}

func (i *Ingester) publish(ctx context.Context, msg *record.Message, payload []byte, reason string) {
	if i.dlq == nil {
		return
	}
	if err := i.dlq.Publish(ctx, msg, i.validator.Layout().Name(), payload, reason); err != nil {
		i.logger.Error("failed to publish to DLQ",
			"topic", msg.Stream.Topic,
			"partition", msg.Stream.Partition,
			"offset", msg.Offset,
			"reason", reason,
			"error", err,
		)
	}
}

func (i *Ingester) commit(ctx context.Context, msg *record.Message) error {
	var err error
	switch {
	case msg.CommitFunc != nil:
		err = msg.CommitFunc()
	case i.source != nil:
		err = i.source.Commit(ctx, msg.Stream, msg.Offset)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}
