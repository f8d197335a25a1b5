package bid

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrConcurrentModification indicates that a conditional bid update found
// the row changed underneath it (for example two raises racing on the same
// bid). The caller rolls back and re-reads before retrying.
var ErrConcurrentModification = errors.New("bid was modified concurrently")

// Repository defines bid persistence operations. Ranked listings order by
// amount descending with the insertion sequence as the explicit tie-break,
// never by incidental store ordering.
type Repository interface {
	// Create inserts an active bid and fills in the store-assigned Seq.
	Create(ctx context.Context, b *Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bid, error)

	// ListByAuction returns every bid for the auction, ranked.
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// ListActive returns the auction's active bids, ranked. This is the
	// snapshot finalization partitions into winners and losers.
	ListActive(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// GetActiveByUser returns the user's active bid for the auction, or
	// nil when the user has none.
	GetActiveByUser(ctx context.Context, auctionID, userID uuid.UUID) (*Bid, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Bid, error)

	// Raise updates the amount in place, only if the bid is still active
	// and its amount still equals prevAmount. Returns
	// ErrConcurrentModification when the condition fails.
	Raise(ctx context.Context, id uuid.UUID, prevAmount, newAmount int64) error

	// MarkWon records the win and the assigned item number.
	MarkWon(ctx context.Context, id uuid.UUID, itemNumber int) error

	MarkRefunded(ctx context.Context, id uuid.UUID) error

	// CarryForward moves an outbid bid into the next round, still active,
	// with its reservation untouched.
	CarryForward(ctx context.Context, id uuid.UUID, newRound int) error

	WithTx(tx pgx.Tx) Repository
}

// ErrBidNotFound indicates a missing bid
type ErrBidNotFound struct {
	BidID uuid.UUID
}

func (e ErrBidNotFound) Error() string {
	return "bid not found: " + e.BidID.String()
}

// Is implements the errors.Is interface for ErrBidNotFound
func (e ErrBidNotFound) Is(target error) bool {
	t, ok := target.(ErrBidNotFound)
	if !ok {
		return false
	}
	if t.BidID == uuid.Nil {
		return true
	}
	return e.BidID == t.BidID
}
