package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/domain/item"
	"github.com/multiround-auction/internal/platform/persistence"
)

// ItemRepository implements the item.Repository interface for PostgreSQL
type ItemRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewItemRepository creates a new PostgreSQL won-item repository
func NewItemRepository(logger *slog.Logger, db *persistence.PostgresDB) item.Repository {
	return &ItemRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the item record is
// created atomically with the capture it settles.
func (r *ItemRepository) WithTx(tx pgx.Tx) item.Repository {
	return &ItemRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a won-item record. The (auction_id, item_number) unique
// constraint makes double-assignment of an item number impossible.
func (r *ItemRepository) Create(ctx context.Context, it *item.Item) error {
	query := `
		INSERT INTO items (id, auction_id, user_id, bid_id, item_number, paid_amount, won_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		it.ID,
		it.AuctionID,
		it.UserID,
		it.BidID,
		it.ItemNumber,
		it.PaidAmount,
		it.WonAt,
	)
	if err != nil {
		r.logger.Error("Failed to create item", "id", it.ID.String(), "error", err)
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// ListByUser returns a user's won items, newest first
func (r *ItemRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*item.Item, error) {
	query := `
		SELECT id, auction_id, user_id, bid_id, item_number, paid_amount, won_at
		FROM items
		WHERE user_id = $1
		ORDER BY won_at DESC
	`
	return r.queryItems(ctx, query, userID)
}

// ListByAuction returns an auction's distributed items in assignment order
func (r *ItemRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*item.Item, error) {
	query := `
		SELECT id, auction_id, user_id, bid_id, item_number, paid_amount, won_at
		FROM items
		WHERE auction_id = $1
		ORDER BY item_number ASC
	`
	return r.queryItems(ctx, query, auctionID)
}

func (r *ItemRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]*item.Item, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query items", "error", err)
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		var it item.Item
		err := rows.Scan(
			&it.ID,
			&it.AuctionID,
			&it.UserID,
			&it.BidID,
			&it.ItemNumber,
			&it.PaidAmount,
			&it.WonAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan item", "error", err)
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &it)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over items", "error", err)
		return nil, fmt.Errorf("error iterating over items: %w", err)
	}

	return items, nil
}
