package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxStatus defines the delivery states of an audit outbox row
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Message is one audit entry staged in Postgres inside the same transaction
// as the wallet mutation it describes. A poller publishes it to the durable
// audit store and marks it published.
type Message struct {
	ID            int64
	EntryID       uuid.UUID
	UserID        uuid.UUID
	Payload       []byte // JSON-encoded Entry
	Status        OutboxStatus
	Attempts      int
	CreatedAt     time.Time
	LastAttemptAt *time.Time
}

// NewMessage validates the entry and stages it as a pending outbox message
func NewMessage(entry *Entry) (*Message, error) {
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit entry: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	return &Message{
		EntryID:   entry.ID,
		UserID:    entry.UserID,
		Payload:   payload,
		Status:    OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

// DecodeEntry unmarshals the staged audit entry from the message payload
func (m *Message) DecodeEntry() (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit entry payload: %w", err)
	}
	return &entry, nil
}

// OutboxRepository defines persistence for staged audit messages
type OutboxRepository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
	IncrementAttempts(ctx context.Context, id int64) error
	WithTx(tx pgx.Tx) OutboxRepository
}

// ErrMessageNotFound indicates a missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return fmt.Sprintf("audit outbox message not found: %d", e.ID)
}
