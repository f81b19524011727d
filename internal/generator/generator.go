// Package generator implements a synthetic message source for local runs and
// benchmarks. It produces packed objects of a built-in layout at a
// configured rate.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jaswdr/faker"
	"golang.org/x/time/rate"

	"github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/consumer"
	"github.com/jittakal/ringstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.Consumer = (*Generator)(nil)

// Config configures the generator.
type Config struct {
	Topics            []string
	Partitions        int
	Layout            record.Layout
	ObjectsPerMessage int
	// MessagesPerSecond of zero or less means unlimited.
	MessagesPerSecond float64
	Burst             int
	// MaxMessages of zero means run until cancelled.
	MaxMessages int64
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Layout == nil {
		return fmt.Errorf("generator layout is required")
	}
	if c.Partitions < 1 {
		return fmt.Errorf("generator partitions must be at least 1, got %d", c.Partitions)
	}
	if c.ObjectsPerMessage < 1 {
		return fmt.Errorf("generator objects per message must be at least 1, got %d", c.ObjectsPerMessage)
	}
	return nil
}

// streamState is the per-stream position of the generator.
type streamState struct {
	nextSeq    uint64
	nextOffset int64
	committed  int64
	pos        int64
}

// Generator produces messages of packed objects, round robin over every
// topic and partition.
type Generator struct {
	config  Config
	limiter *rate.Limiter
	faker   faker.Faker
	logger  *slog.Logger

	mu      sync.Mutex
	topics  []string
	streams map[record.StreamID]*streamState
	closed  bool
}

// New creates a generator.
func New(config Config, logger *slog.Logger) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.MessagesPerSecond > 0 {
		limit = rate.Limit(config.MessagesPerSecond)
	}
	burst := max(config.Burst, 1)

	return &Generator{
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
		faker:   faker.New(),
		logger:  logger,
		topics:  config.Topics,
		streams: make(map[record.StreamID]*streamState),
	}, nil
}

// Subscribe replaces the topics messages are generated for.
func (g *Generator) Subscribe(ctx context.Context, topics []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.ErrConsumerClosed
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics to subscribe to")
	}
	g.topics = topics
	g.logger.Info("generator subscribed", "topics", topics, "partitions", g.config.Partitions)
	return nil
}

func (g *Generator) streamList() []record.StreamID {
	g.mu.Lock()
	defer g.mu.Unlock()

	streams := make([]record.StreamID, 0, len(g.topics)*g.config.Partitions)
	for _, topic := range g.topics {
		for p := range g.config.Partitions {
			streams = append(streams, record.StreamID{Topic: topic, Partition: int32(p)})
		}
	}
	return streams
}

// Consume starts generating. The message channel closes when ctx is done,
// MaxMessages have been sent or the generator is closed.
func (g *Generator) Consume(ctx context.Context) (<-chan *record.Message, <-chan error, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return nil, nil, errors.ErrConsumerClosed
	}

	streams := g.streamList()
	if len(streams) == 0 {
		return nil, nil, fmt.Errorf("generator has no topics")
	}

	messages := make(chan *record.Message)
	errs := make(chan error)

	limit := g.config.MaxMessages
	if limit <= 0 {
		limit = math.MaxInt64
	}

	go func() {
		defer close(messages)
		defer close(errs)

		for sent := int64(0); sent < limit; sent++ {
			if err := g.limiter.Wait(ctx); err != nil {
				return
			}
			if g.isClosed() {
				return
			}

			msg := g.Next(streams[sent%int64(len(streams))])
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
		g.logger.Info("generator reached message limit", "messages", limit)
	}()

	g.logger.Info("generator started",
		"streams", len(streams),
		"layout", g.config.Layout.Name(),
		"objects_per_message", g.config.ObjectsPerMessage,
		"messages_per_second", g.config.MessagesPerSecond,
	)
	return messages, errs, nil
}

// Next builds the next message for a stream.
func (g *Generator) Next(stream record.StreamID) *record.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state(stream)
	size := g.config.Layout.Size()
	payload := make([]byte, g.config.ObjectsPerMessage*size)
	now := time.Now()

	for i := range g.config.ObjectsPerMessage {
		g.fill(st, payload[i*size:(i+1)*size], now)
	}

	msg := &record.Message{
		Stream:    stream,
		Offset:    st.nextOffset,
		Key:       []byte(stream.String()),
		Payload:   payload,
		Headers:   map[string]string{record.LayoutHeader: g.config.Layout.Name()},
		Timestamp: now,
	}
	st.nextOffset++
	return msg
}

func (g *Generator) state(stream record.StreamID) *streamState {
	st, ok := g.streams[stream]
	if !ok {
		st = &streamState{committed: -1}
		g.streams[stream] = st
	}
	return st
}

// fill writes one object of the configured layout into dst.
func (g *Generator) fill(st *streamState, dst []byte, now time.Time) {
	seq := st.nextSeq
	st.nextSeq++

	sec, usec := now.Unix(), int64(now.Nanosecond()/1000)

	switch g.config.Layout.Name() {
	case record.FileAccessLayout.Name():
		st.pos += int64(g.faker.IntBetween(1, 16)) * 512
		record.FileAccess{
			Ino:  uint64(g.faker.IntBetween(1, 1<<20)),
			Pos:  st.pos,
			Sec:  sec,
			Usec: usec,
		}.Put(dst)

	case record.MigrationLayout.Name():
		cpus := 64
		record.Migration{
			PID:    int32(g.faker.IntBetween(1, 1<<22)),
			SrcCPU: int32(g.faker.IntBetween(0, cpus-1)),
			DstCPU: int32(g.faker.IntBetween(0, cpus-1)),
			Sec:    sec,
			Usec:   usec,
		}.Put(dst)

	default:
		s := record.Sample{ID: seq}
		copy(s.Padding[:], g.faker.Lorem().Word())
		s.Put(dst)
	}
}

// Commit records the committed offset of a stream.
func (g *Generator) Commit(ctx context.Context, stream record.StreamID, offset int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.ErrConsumerClosed
	}
	st := g.state(stream)
	if offset > st.committed {
		st.committed = offset
	}
	return nil
}

// Committed returns the highest committed offset of a stream, or -1.
func (g *Generator) Committed(stream record.StreamID) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.streams[stream]; ok {
		return st.committed
	}
	return -1
}

func (g *Generator) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close stops the generator.
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		g.logger.Info("generator closed")
	}
	return nil
}
