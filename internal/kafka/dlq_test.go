package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	apperrors "github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/record"
)

type countingDLQMetrics struct {
	mu       sync.Mutex
	statuses map[string]int
}

func (m *countingDLQMetrics) IncDLQPublished(topic string, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = make(map[string]int)
	}
	m.statuses[topic+"/"+status]++
}

func droppedMessage() *record.Message {
	return &record.Message{
		Stream: record.StreamID{Topic: "file-access", Partition: 2},
		Offset: 77,
	}
}

func TestDLQPublisher_Topic(t *testing.T) {
	tests := []struct {
		suffix string
		want   string
	}{
		{"", "file-access.dlq"},
		{"-dead", "file-access-dead"},
	}

	for _, tt := range tests {
		p := newDLQPublisher(nil, DLQConfig{Enabled: true, TopicSuffix: tt.suffix}, discardLogger(), nil, "test")
		if got := p.Topic("file-access"); got != tt.want {
			t.Errorf("Topic() = %s, want %s", got, tt.want)
		}
	}
}

func TestDLQPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	metrics := &countingDLQMetrics{}
	p := newDLQPublisher(producer, DLQConfig{Enabled: true}, discardLogger(), metrics, "node-1")

	payload := make([]byte, 2*record.FileAccessSize)
	record.FileAccess{Ino: 9, Pos: 4096}.Put(payload)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event := cloudevents.NewEvent()
		if err := json.Unmarshal(val, &event); err != nil {
			return fmt.Errorf("value is not a CloudEvent: %w", err)
		}
		if event.Type() != DroppedEventType {
			return fmt.Errorf("type = %s", event.Type())
		}
		if event.Source() != "ringstore/node-1" {
			return fmt.Errorf("source = %s", event.Source())
		}
		if event.Subject() != "file-access-2" {
			return fmt.Errorf("subject = %s", event.Subject())
		}

		var data DroppedObjects
		if err := event.DataAs(&data); err != nil {
			return fmt.Errorf("data: %w", err)
		}
		if data.ObjectCount != 2 || data.Offset != 77 || data.Layout != "file_access" {
			return fmt.Errorf("data = %+v", data)
		}
		if !bytes.Equal(data.Payload, payload) {
			return fmt.Errorf("payload mismatch")
		}
		return nil
	})

	err := p.Publish(context.Background(), droppedMessage(), "file_access", payload, "ring saturated")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if metrics.statuses["file-access.dlq/success"] != 1 {
		t.Errorf("metrics = %v", metrics.statuses)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestDLQPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	metrics := &countingDLQMetrics{}
	p := newDLQPublisher(producer, DLQConfig{Enabled: true}, discardLogger(), metrics, "node-1")

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := p.Publish(context.Background(), droppedMessage(), "sample", make([]byte, record.SampleSize), "ring saturated")
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("Publish() error = %v, want ErrOutOfBrokers", err)
	}
	if metrics.statuses["file-access.dlq/failure"] != 1 {
		t.Errorf("metrics = %v", metrics.statuses)
	}
	p.Close()
}

func TestDLQPublisher_Disabled(t *testing.T) {
	p, err := NewDLQPublisher(nil, SecurityConfig{}, DLQConfig{Enabled: false}, discardLogger(), nil, "node-1")
	if err != nil {
		t.Fatalf("NewDLQPublisher() error = %v", err)
	}

	if err := p.Publish(context.Background(), droppedMessage(), "sample", nil, "ring saturated"); err != nil {
		t.Errorf("Publish() on disabled DLQ error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDLQPublisher_Closed(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Enabled: true}, discardLogger(), nil, "node-1")

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	err := p.Publish(context.Background(), droppedMessage(), "sample", nil, "ring saturated")
	if !errors.Is(err, apperrors.ErrConsumerClosed) {
		t.Errorf("Publish() after close error = %v, want ErrConsumerClosed", err)
	}
}

func TestDLQPublisher_Concurrency(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Enabled: true}, discardLogger(), nil, "node-1")

	const publishers = 8
	for range publishers {
		producer.ExpectSendMessageAndSucceed()
	}

	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Publish(context.Background(), droppedMessage(), "sample", make([]byte, record.SampleSize), "ring saturated"); err != nil {
				t.Errorf("Publish() error = %v", err)
			}
		}()
	}
	wg.Wait()
	p.Close()
}
