package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/platform/persistence"
)

const auctionColumns = `id, title, description, image_url, total_items, items_per_round,
		current_round, min_bid, status, round_ends_at, anti_sniping_window_ms, finalizing,
		created_at, updated_at`

// AuctionRepository implements the auction.Repository interface for PostgreSQL
type AuctionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuctionRepository creates a new PostgreSQL auction repository
func NewAuctionRepository(logger *slog.Logger, db *persistence.PostgresDB) auction.Repository {
	return &AuctionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (id, title, description, image_url, total_items, items_per_round,
			current_round, min_bid, status, round_ends_at, anti_sniping_window_ms, finalizing,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		a.ID,
		a.Title,
		a.Description,
		a.ImageURL,
		a.TotalItems,
		a.ItemsPerRound,
		a.CurrentRound,
		a.MinBid,
		a.Status,
		a.RoundEndsAt,
		a.AntiSnipingWindow.Milliseconds(),
		a.Finalizing,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create auction", "id", a.ID.String(), "error", err)
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetByID retrieves an auction by its ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := r.scanAuction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrAuctionNotFound{AuctionID: id}
		}
		r.logger.Error("Failed to get auction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// List retrieves all auctions, newest first
func (r *AuctionRepository) List(ctx context.Context) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at DESC`
	return r.queryAuctions(ctx, query)
}

// ListByStatus retrieves auctions in the given lifecycle state
func (r *AuctionRepository) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY created_at DESC`
	return r.queryAuctions(ctx, query, status)
}

// Start transitions pending -> active and opens the first round
func (r *AuctionRepository) Start(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	query := `
		UPDATE auctions
		SET status = $1, round_ends_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, auction.StatusActive, endsAt, id, auction.StatusPending)
	if err != nil {
		r.logger.Error("Failed to start auction", "id", id.String(), "error", err)
		return fmt.Errorf("failed to start auction: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return auction.ErrNotStartable
	}

	return nil
}

// ExtendDeadline moves the round deadline forward. The guard keeps the
// deadline monotonic: an extension computed from stale state never pulls
// it back.
func (r *AuctionRepository) ExtendDeadline(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	query := `
		UPDATE auctions
		SET round_ends_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND round_ends_at < $1
	`

	result, err := r.querier.Exec(ctx, query, endsAt, id, auction.StatusActive)
	if err != nil {
		r.logger.Error("Failed to extend auction deadline", "id", id.String(), "error", err)
		return fmt.Errorf("failed to extend auction deadline: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Superseded by a later deadline, or the auction left the active
		// state. Either way the stored deadline stands.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

// BeginFinalize acquires the per-auction finalization mutex via a
// conditional update and returns the row as of acquisition.
func (r *AuctionRepository) BeginFinalize(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `
		UPDATE auctions
		SET finalizing = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND finalizing = FALSE
		RETURNING ` + auctionColumns

	a, err := r.scanAuction(r.querier.QueryRow(ctx, query, id, auction.StatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, auction.ErrFinalizeUnavailable
		}
		r.logger.Error("Failed to acquire finalizing flag", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to acquire finalizing flag: %w", err)
	}

	return a, nil
}

// EndFinalize clears the finalization mutex
func (r *AuctionRepository) EndFinalize(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE auctions
		SET finalizing = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to release finalizing flag", "id", id.String(), "error", err)
		return fmt.Errorf("failed to release finalizing flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound{AuctionID: id}
	}

	return nil
}

// AdvanceRound opens the next round and releases the finalization mutex in
// the same statement.
func (r *AuctionRepository) AdvanceRound(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	query := `
		UPDATE auctions
		SET current_round = current_round + 1, round_ends_at = $1, finalizing = FALSE, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, endsAt, id, auction.StatusActive)
	if err != nil {
		r.logger.Error("Failed to advance auction round", "id", id.String(), "error", err)
		return fmt.Errorf("failed to advance auction round: %w", err)
	}

	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound{AuctionID: id}
	}

	return nil
}

// Complete closes the auction and releases the finalization mutex
func (r *AuctionRepository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE auctions
		SET status = $1, finalizing = FALSE, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, auction.StatusCompleted, id)
	if err != nil {
		r.logger.Error("Failed to complete auction", "id", id.String(), "error", err)
		return fmt.Errorf("failed to complete auction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound{AuctionID: id}
	}

	return nil
}

// FindDue lists active auctions whose round deadline has passed
func (r *AuctionRepository) FindDue(ctx context.Context, now time.Time) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 AND round_ends_at <= $2`
	return r.queryAuctions(ctx, query, auction.StatusActive, now)
}

func (r *AuctionRepository) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*auction.Auction, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query auctions", "error", err)
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := r.scanAuction(rows)
		if err != nil {
			r.logger.Error("Failed to scan auction", "error", err)
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over auctions", "error", err)
		return nil, fmt.Errorf("error iterating over auctions: %w", err)
	}

	return auctions, nil
}

func (r *AuctionRepository) scanAuction(row pgx.Row) (*auction.Auction, error) {
	var a auction.Auction
	var windowMs int64
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.ImageURL,
		&a.TotalItems,
		&a.ItemsPerRound,
		&a.CurrentRound,
		&a.MinBid,
		&a.Status,
		&a.RoundEndsAt,
		&windowMs,
		&a.Finalizing,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.AntiSnipingWindow = time.Duration(windowMs) * time.Millisecond
	return &a, nil
}
