package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/platform/persistence"
)

const bidColumns = `id, auction_id, user_id, amount, round, seq, status, item_number, created_at, updated_at`

// rankedOrder is the one ordering every leaderboard and finalization
// snapshot uses: amount descending, insertion sequence as the stable
// tie-break.
const rankedOrder = ` ORDER BY amount DESC, seq ASC`

// BidRepository implements the bid.Repository interface for PostgreSQL
type BidRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBidRepository creates a new PostgreSQL bid repository
func NewBidRepository(logger *slog.Logger, db *persistence.PostgresDB) bid.Repository {
	return &BidRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *BidRepository) WithTx(tx pgx.Tx) bid.Repository {
	return &BidRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts an active bid. The seq column is a bigserial; the
// store-assigned value is read back so ranking is reproducible in memory.
func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, user_id, amount, round, status, item_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`

	err := r.querier.QueryRow(ctx, query,
		b.ID,
		b.AuctionID,
		b.UserID,
		b.Amount,
		b.Round,
		b.Status,
		b.ItemNumber,
		b.CreatedAt,
		b.UpdatedAt,
	).Scan(&b.Seq)
	if err != nil {
		r.logger.Error("Failed to create bid", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

// GetByID retrieves a bid by its ID
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	b, err := r.scanBid(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bid.ErrBidNotFound{BidID: id}
		}
		r.logger.Error("Failed to get bid", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	return b, nil
}

// ListByAuction returns every bid for the auction, ranked
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1` + rankedOrder
	return r.queryBids(ctx, query, auctionID)
}

// ListActive returns the auction's active bids, ranked
func (r *BidRepository) ListActive(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 AND status = $2` + rankedOrder
	return r.queryBids(ctx, query, auctionID, bid.StatusActive)
}

// GetActiveByUser returns the user's active bid for the auction, or nil
// when the user has none. The (auction_id, user_id, status=active) partial
// unique index guarantees at most one row.
func (r *BidRepository) GetActiveByUser(ctx context.Context, auctionID, userID uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 AND user_id = $2 AND status = $3`

	b, err := r.scanBid(r.querier.QueryRow(ctx, query, auctionID, userID, bid.StatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get active bid", "auction_id", auctionID.String(), "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get active bid: %w", err)
	}

	return b, nil
}

// ListByUser returns all of a user's bids, newest first
func (r *BidRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryBids(ctx, query, userID)
}

// Raise updates the amount in place, conditioned on the previous amount.
// The guard makes two racing raises on the same bid serialize: the loser
// sees zero rows and rolls back its reservation.
func (r *BidRepository) Raise(ctx context.Context, id uuid.UUID, prevAmount, newAmount int64) error {
	query := `
		UPDATE bids
		SET amount = $1, updated_at = NOW()
		WHERE id = $2 AND amount = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, newAmount, id, prevAmount, bid.StatusActive)
	if err != nil {
		r.logger.Error("Failed to raise bid", "id", id.String(), "error", err)
		return fmt.Errorf("failed to raise bid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bid.ErrConcurrentModification
	}

	return nil
}

// MarkWon records the win and the assigned item number
func (r *BidRepository) MarkWon(ctx context.Context, id uuid.UUID, itemNumber int) error {
	query := `
		UPDATE bids
		SET status = $1, item_number = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, bid.StatusWon, itemNumber, id)
	if err != nil {
		r.logger.Error("Failed to mark bid won", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark bid won: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bid.ErrBidNotFound{BidID: id}
	}

	return nil
}

// MarkRefunded records the refund of a losing bid
func (r *BidRepository) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bids
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, bid.StatusRefunded, id)
	if err != nil {
		r.logger.Error("Failed to mark bid refunded", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark bid refunded: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bid.ErrBidNotFound{BidID: id}
	}

	return nil
}

// CarryForward moves an outbid bid into the next round. The bid stays
// active and its reservation is untouched; only the round changes.
func (r *BidRepository) CarryForward(ctx context.Context, id uuid.UUID, newRound int) error {
	query := `
		UPDATE bids
		SET round = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, newRound, id, bid.StatusActive)
	if err != nil {
		r.logger.Error("Failed to carry bid forward", "id", id.String(), "error", err)
		return fmt.Errorf("failed to carry bid forward: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bid.ErrBidNotFound{BidID: id}
	}

	return nil
}

func (r *BidRepository) queryBids(ctx context.Context, query string, args ...interface{}) ([]*bid.Bid, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query bids", "error", err)
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		b, err := r.scanBid(rows)
		if err != nil {
			r.logger.Error("Failed to scan bid", "error", err)
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over bids", "error", err)
		return nil, fmt.Errorf("error iterating over bids: %w", err)
	}

	return bids, nil
}

func (r *BidRepository) scanBid(row pgx.Row) (*bid.Bid, error) {
	var b bid.Bid
	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.UserID,
		&b.Amount,
		&b.Round,
		&b.Seq,
		&b.Status,
		&b.ItemNumber,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
