package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/consumer"
	"github.com/jittakal/ringstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// Dead letter event attributes.
const (
	DroppedEventType   = "io.ringstore.objects.dropped"
	DroppedEventSource = "ringstore"
)

// DroppedObjects is the data of a dead letter CloudEvent.
type DroppedObjects struct {
	Topic       string    `json:"topic"`
	Partition   int32     `json:"partition"`
	Offset      int64     `json:"offset"`
	Layout      string    `json:"layout"`
	ObjectCount int       `json:"object_count"`
	Reason      string    `json:"reason"`
	DroppedAt   time.Time `json:"dropped_at"`
	ProcessorID string    `json:"processor_id"`
	Payload     []byte    `json:"payload"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
	MaxRetries  int
}

// DLQMetrics records dead letter publishing.
type DLQMetrics interface {
	IncDLQPublished(topic string, status string)
}

// DLQPublisher publishes objects that could not enter a ring.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	metrics     DLQMetrics
	mu          sync.RWMutex
	closed      bool
	processorID string
}

// NewDLQPublisher creates a new DLQ publisher. A disabled publisher accepts
// and discards every publish.
func NewDLQPublisher(
	bootstrapServers []string,
	security SecurityConfig,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	metrics DLQMetrics,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return newDLQPublisher(nil, dlqConfig, logger, metrics, processorID), nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = dlqConfig.MaxRetries
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := security.apply(saramaConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", bootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)
	return newDLQPublisher(producer, dlqConfig, logger, metrics, processorID), nil
}

func newDLQPublisher(
	producer sarama.SyncProducer,
	config DLQConfig,
	logger *slog.Logger,
	metrics DLQMetrics,
	processorID string,
) *DLQPublisher {
	if config.TopicSuffix == "" {
		config.TopicSuffix = ".dlq"
	}
	return &DLQPublisher{
		producer:    producer,
		config:      config,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
	}
}

// Topic returns the dead letter topic for a source topic.
func (p *DLQPublisher) Topic(source string) string {
	return source + p.config.TopicSuffix
}

// newEvent wraps dropped objects in a CloudEvent.
func (p *DLQPublisher) newEvent(msg *record.Message, layout string, payload []byte, objectSize int, reason string) (cloudevents.Event, error) {
	now := time.Now().UTC()

	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(uuid.New().String())
	event.SetType(DroppedEventType)
	event.SetSource(DroppedEventSource + "/" + p.processorID)
	event.SetSubject(msg.Stream.String())
	event.SetTime(now)

	count := 0
	if objectSize > 0 {
		count = len(payload) / objectSize
	}

	data := DroppedObjects{
		Topic:       msg.Stream.Topic,
		Partition:   msg.Stream.Partition,
		Offset:      msg.Offset,
		Layout:      layout,
		ObjectCount: count,
		Reason:      reason,
		DroppedAt:   now,
		ProcessorID: p.processorID,
		Payload:     payload,
	}
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return event, fmt.Errorf("failed to set event data: %w", err)
	}
	return event, event.Validate()
}

// Publish sends dropped objects of msg to the stream's dead letter topic.
func (p *DLQPublisher) Publish(ctx context.Context, msg *record.Message, layout string, payload []byte, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrConsumerClosed
	}
	if !p.config.Enabled || p.producer == nil {
		p.logger.Debug("DLQ disabled, dropping objects", "stream", msg.Stream.String(), "bytes", len(payload))
		return nil
	}

	objectSize := 0
	if l, err := record.LookupLayout(layout); err == nil {
		objectSize = l.Size()
	}

	event, err := p.newEvent(msg, layout, payload, objectSize, reason)
	if err != nil {
		return fmt.Errorf("failed to build DLQ event: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ event: %w", err)
	}

	dlqTopic := p.Topic(msg.Stream.Topic)
	out := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Key:   sarama.StringEncoder(msg.Stream.String()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("ce_specversion"), Value: []byte(event.SpecVersion())},
			{Key: []byte("ce_type"), Value: []byte(event.Type())},
			{Key: []byte("ce_source"), Value: []byte(event.Source())},
			{Key: []byte("ce_id"), Value: []byte(event.ID())},
			{Key: []byte("failure_reason"), Value: []byte(reason)},
		},
		Timestamp: event.Time(),
	}

	partition, offset, err := p.producer.SendMessage(out)
	if err != nil {
		p.observe(dlqTopic, "failure")
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", dlqTopic,
			"event_id", event.ID(),
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.observe(dlqTopic, "success")
	p.logger.Info("published dropped objects to DLQ",
		"dlq_topic", dlqTopic,
		"partition", partition,
		"offset", offset,
		"event_id", event.ID(),
		"source_offset", msg.Offset,
		"reason", reason,
	)
	return nil
}

func (p *DLQPublisher) observe(topic, status string) {
	if p.metrics != nil {
		p.metrics.IncDLQPublished(topic, status)
	}
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}
	p.logger.Info("DLQ publisher closed")
	return nil
}
