package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing auction lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event *AuctionEvent) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
