package item

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Item records one unit won in a finalized round. ItemNumber is unique per
// auction, 1-based, assigned in finalization rank order.
type Item struct {
	ID         uuid.UUID `json:"id"`
	AuctionID  uuid.UUID `json:"auction_id"`
	UserID     uuid.UUID `json:"user_id"`
	BidID      uuid.UUID `json:"bid_id"`
	ItemNumber int       `json:"item_number"`
	PaidAmount int64     `json:"paid_amount"`
	WonAt      time.Time `json:"won_at"`
}

// New creates a won-item record for a winning bid
func New(auctionID, userID, bidID uuid.UUID, itemNumber int, paidAmount int64) *Item {
	return &Item{
		ID:         uuid.New(),
		AuctionID:  auctionID,
		UserID:     userID,
		BidID:      bidID,
		ItemNumber: itemNumber,
		PaidAmount: paidAmount,
		WonAt:      time.Now(),
	}
}

// Repository defines won-item persistence operations
type Repository interface {
	Create(ctx context.Context, it *Item) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Item, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Item, error)
	WithTx(tx pgx.Tx) Repository
}
