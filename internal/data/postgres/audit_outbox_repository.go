package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/domain/audit"
	"github.com/multiround-auction/internal/platform/persistence"
)

// AuditOutboxRepository implements the audit.OutboxRepository interface for PostgreSQL
type AuditOutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditOutboxRepository creates a new PostgreSQL audit outbox repository
func NewAuditOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.OutboxRepository {
	return &AuditOutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. This ensures the audit
// message is staged atomically with the wallet mutation it describes.
func (r *AuditOutboxRepository) WithTx(tx pgx.Tx) audit.OutboxRepository {
	return &AuditOutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new audit outbox message in pending status
func (r *AuditOutboxRepository) Create(ctx context.Context, message *audit.Message) error {
	query := `
		INSERT INTO audit_outbox (entry_id, user_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		message.EntryID,
		message.UserID,
		message.Payload,
		message.Status,
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		r.logger.Error("Failed to create audit outbox message",
			"entry_id", message.EntryID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create audit outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves a batch of pending messages in FIFO order
func (r *AuditOutboxRepository) GetPending(ctx context.Context, limit int) ([]*audit.Message, error) {
	query := `
		SELECT id, entry_id, user_id, payload, status, attempts, created_at, last_attempt_at
		FROM audit_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, audit.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to get pending audit outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending audit outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*audit.Message
	for rows.Next() {
		var message audit.Message
		err := rows.Scan(
			&message.ID,
			&message.EntryID,
			&message.UserID,
			&message.Payload,
			&message.Status,
			&message.Attempts,
			&message.CreatedAt,
			&message.LastAttemptAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan audit outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan audit outbox message: %w", err)
		}
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over audit outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over audit outbox messages: %w", err)
	}

	return messages, nil
}

// MarkPublished marks the message as delivered to the audit store
func (r *AuditOutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	return r.updateStatus(ctx, id, audit.OutboxStatusPublished)
}

// MarkFailed marks the message as undeliverable after exhausted retries
func (r *AuditOutboxRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.updateStatus(ctx, id, audit.OutboxStatusFailed)
}

func (r *AuditOutboxRepository) updateStatus(ctx context.Context, id int64, status audit.OutboxStatus) error {
	query := `
		UPDATE audit_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update audit outbox status", "id", id, "status", string(status), "error", err)
		return fmt.Errorf("failed to update audit outbox status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return audit.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts bumps the attempt counter after a failed publish
func (r *AuditOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE audit_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to increment audit outbox attempts", "id", id, "error", err)
		return fmt.Errorf("failed to increment audit outbox attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return audit.ErrMessageNotFound{ID: id}
	}

	return nil
}
