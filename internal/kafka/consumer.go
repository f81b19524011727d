// Package kafka implements the Kafka source and the dead letter publisher.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/consumer"
	"github.com/jittakal/ringstore/pkg/record"
)

// Ensure implementation satisfies interfaces at compile time.
var _ consumer.Consumer = (*SaramaConsumer)(nil)

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers    []string
	GroupID             string
	Security            SecurityConfig
	AutoOffsetReset     string
	MaxPollIntervalMS   int
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
	ChannelBufferSize   int
}

// Validate checks required fields.
func (c ConsumerConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka consumer group id is required")
	}
	return c.Security.Validate()
}

// MetricsCollector defines metrics operations for Kafka consumer.
type MetricsCollector interface {
	IncRebalances(groupID string)
	IncOffsetCommits(topic string, partition int32, status string)
	ObserveRebalanceDuration(groupID string, duration float64)
	ObserveCommitLatency(topic string, partition int32, duration float64)
	SetPartitionsAssigned(topic string, count float64)
}

// SaramaConsumer implements consumer.Consumer using a sarama consumer group.
// Each Kafka message value carries a whole number of packed objects.
// Offsets are only marked when the ingest side commits them, so auto commit
// never gets ahead of what reached a ring.
type SaramaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        ConsumerConfig
	logger        *slog.Logger
	metrics       MetricsCollector
	topics        []string
	ready         chan struct{}
	mu            sync.RWMutex
	session       sarama.ConsumerGroupSession
	closed        bool
}

// newSaramaConfig builds the sarama configuration for the consumer group.
func newSaramaConfig(config ConsumerConfig) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(config.AutoOffsetReset)
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Return.Errors = true

	if config.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMS) * time.Millisecond
	}
	if config.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatIntervalMS) * time.Millisecond
	}
	if config.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(config.MaxPollIntervalMS) * time.Millisecond
	} else {
		saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	}

	if err := config.Security.apply(saramaConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}
	return saramaConfig, nil
}

// NewSaramaConsumer creates a new Kafka consumer using Sarama library.
func NewSaramaConsumer(
	config ConsumerConfig,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*SaramaConsumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	saramaConfig, err := newSaramaConfig(config)
	if err != nil {
		return nil, err
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.BootstrapServers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka consumer created",
		"group_id", config.GroupID,
		"bootstrap_servers", config.BootstrapServers,
		"security_protocol", config.Security.Protocol,
	)

	return &SaramaConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		ready:         make(chan struct{}),
	}, nil
}

// Subscribe subscribes to the specified topics.
func (c *SaramaConsumer) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrConsumerClosed
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics to subscribe to")
	}

	c.topics = topics
	c.logger.Info("subscribed to topics", "topics", topics)
	return nil
}

// Consume starts the consumer group loop. It returns once the first session
// is set up or ctx is done.
func (c *SaramaConsumer) Consume(ctx context.Context) (<-chan *record.Message, <-chan error, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, nil, errors.ErrConsumerClosed
	}
	topics := c.topics
	c.mu.RUnlock()

	bufferSize := c.config.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}
	messages := make(chan *record.Message, bufferSize)
	errs := make(chan error, 10)

	handler := &consumerGroupHandler{consumer: c, messages: messages}

	go func() {
		defer close(messages)
		defer close(errs)

		for {
			if err := c.consumerGroup.Consume(ctx, topics, handler); err != nil {
				c.logger.Error("consumer group error", "error", err)
				errs <- fmt.Errorf("%w: %v", errors.ErrConnectionLost, err)
				return
			}
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled")
				return
			}
		}
	}()

	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Warn("consumer group reported error", "error", err)
		}
	}()

	select {
	case <-c.ready:
		c.logger.Info("kafka consumer started and ready")
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	return messages, errs, nil
}

// Commit marks offset as processed for the stream. The next auto commit
// flushes it to the broker.
func (c *SaramaConsumer) Commit(ctx context.Context, stream record.StreamID, offset int64) error {
	startTime := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.ErrConsumerClosed
	}
	if c.session == nil {
		c.observeCommit(stream, "no_session", startTime)
		return &errors.CommitError{Stream: stream, Offset: offset, Err: errors.ErrConnectionLost}
	}

	c.session.MarkOffset(stream.Topic, stream.Partition, offset+1, "")
	c.observeCommit(stream, "success", startTime)
	return nil
}

func (c *SaramaConsumer) observeCommit(stream record.StreamID, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveCommitLatency(stream.Topic, stream.Partition, time.Since(start).Seconds())
	c.metrics.IncOffsetCommits(stream.Topic, stream.Partition, status)
}

func (c *SaramaConsumer) setSession(session sarama.ConsumerGroupSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
}

// Close closes the consumer and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.session = nil
	c.logger.Info("closing kafka consumer")

	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("error closing consumer group", "error", err)
		return err
	}
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer     *SaramaConsumer
	messages     chan<- *record.Message
	readyOnce    sync.Once
	sessionStart time.Time
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.sessionStart = time.Now()
	h.consumer.setSession(session)

	h.consumer.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if m := h.consumer.metrics; m != nil {
		m.IncRebalances(h.consumer.config.GroupID)
		for topic, partitions := range session.Claims() {
			m.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}

	h.readyOnce.Do(func() { close(h.consumer.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.consumer.setSession(nil)

	if m := h.consumer.metrics; m != nil && !h.sessionStart.IsZero() {
		m.ObserveRebalanceDuration(h.consumer.config.GroupID, time.Since(h.sessionStart).Seconds())
	}

	h.consumer.logger.Info("consumer group session cleanup", "member_id", session.MemberID())
	return nil
}

// ConsumeClaim forwards messages of one partition.
func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	h.consumer.logger.Info("started consuming partition",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initial_offset", claim.InitialOffset(),
	)

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg := toMessage(message)
			msg.CommitFunc = func() error {
				session.MarkMessage(message, "")
				return nil
			}

			select {
			case h.messages <- msg:
			case <-session.Context().Done():
				return nil
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// toMessage converts a Kafka message into a source message.
func toMessage(message *sarama.ConsumerMessage) *record.Message {
	headers := make(map[string]string, len(message.Headers))
	for _, header := range message.Headers {
		if header != nil {
			headers[string(header.Key)] = string(header.Value)
		}
	}

	return &record.Message{
		Stream:    record.StreamID{Topic: message.Topic, Partition: message.Partition},
		Offset:    message.Offset,
		Key:       message.Key,
		Payload:   message.Value,
		Headers:   headers,
		Timestamp: message.Timestamp,
	}
}

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	if autoOffsetReset == "earliest" {
		return sarama.OffsetOldest
	}
	return sarama.OffsetNewest
}
