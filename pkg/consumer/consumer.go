// Package consumer defines interfaces for the sources that feed rings.
//
// A source delivers messages whose payload is a whole number of packed
// objects. Kafka and the synthetic generator both implement Consumer.
package consumer

import (
	"context"

	"github.com/jittakal/ringstore/pkg/record"
)

// Consumer reads messages from a source.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for messages and errors.
	Consume(ctx context.Context) (<-chan *record.Message, <-chan error, error)

	// Commit commits the offset for a stream.
	Commit(ctx context.Context, stream record.StreamID, offset int64) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes objects the ring could not take.
type DLQPublisher interface {
	// Publish sends packed objects to the DLQ with the reason they were dropped.
	Publish(ctx context.Context, msg *record.Message, layout string, payload []byte, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
