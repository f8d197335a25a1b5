package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/multiround-auction/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventType identifies an auction lifecycle event on the stream
type EventType string

const (
	EventBidPlaced        EventType = "bid.placed"
	EventRoundExtended    EventType = "round.extended"
	EventRoundFinalized   EventType = "round.finalized"
	EventAuctionCompleted EventType = "auction.completed"
)

// AuctionEvent is the wire format for the auction event stream. Consumers
// (dashboards, bidder bots) follow round progress without polling the API.
type AuctionEvent struct {
	Type        EventType  `json:"type"`
	AuctionID   uuid.UUID  `json:"auction_id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Round       int        `json:"round"`
	Amount      int64      `json:"amount,omitempty"`
	ItemsWon    int        `json:"items_won,omitempty"`
	RoundEndsAt *time.Time `json:"round_ends_at,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// AuctionEventProducer publishes auction events to Kafka, keyed by auction
// ID so per-auction ordering is preserved within a partition.
type AuctionEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewAuctionEventProducer creates the event producer and ensures the topic exists
func NewAuctionEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*AuctionEventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for auction event producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Events are advisory; settlement never waits on the broker
		WriteTimeout: cfg.WriteTimeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write auction events asynchronously", "topic", cfg.EventsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote auction events asynchronously", "topic", cfg.EventsTopic, "count", len(messages))
			}
		},
	}

	return &AuctionEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

// Publish sends one auction event to the stream
func (p *AuctionEventProducer) Publish(ctx context.Context, event *AuctionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	jsonValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal auction event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AuctionID.String()),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish auction event",
			"topic", p.topic,
			"type", string(event.Type),
			"auction_id", event.AuctionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to publish auction event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published auction event",
		"topic", p.topic,
		"type", string(event.Type),
		"auction_id", event.AuctionID.String(),
	)
	return nil
}

// Close shuts down the underlying Kafka writer
func (p *AuctionEventProducer) Close() error {
	p.logger.Info("Closing auction event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close auction event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
