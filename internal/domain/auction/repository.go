package auction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotStartable indicates a start attempt on an auction that is not pending
var ErrNotStartable = errors.New("auction is not pending")

// ErrFinalizeUnavailable indicates that the finalizing flag could not be
// acquired: either another finalization holds it or the auction is not
// active. Callers treat this as a no-op, never as a retryable failure.
var ErrFinalizeUnavailable = errors.New("auction is not available for finalization")

// Repository defines auction persistence operations. State transitions are
// atomic conditional updates so that concurrent callers can never regress
// the lifecycle: deadlines only move forward, rounds only advance, and the
// finalizing flag behaves as a single-auction mutex.
type Repository interface {
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	List(ctx context.Context) ([]*Auction, error)
	ListByStatus(ctx context.Context, status Status) ([]*Auction, error)

	// Start transitions pending -> active and sets the first round deadline.
	// Returns ErrNotStartable if the auction is not pending.
	Start(ctx context.Context, id uuid.UUID, endsAt time.Time) error

	// ExtendDeadline moves the round deadline forward, only if endsAt is
	// later than the stored deadline. A superseded extension is a no-op.
	ExtendDeadline(ctx context.Context, id uuid.UUID, endsAt time.Time) error

	// BeginFinalize sets finalizing=true only if it is currently false and
	// the auction is active, returning the row as of acquisition. Returns
	// ErrFinalizeUnavailable when the flag is held or the auction inactive.
	BeginFinalize(ctx context.Context, id uuid.UUID) (*Auction, error)

	// EndFinalize clears the finalizing flag unconditionally.
	EndFinalize(ctx context.Context, id uuid.UUID) error

	// AdvanceRound increments the round, sets the next deadline, and clears
	// the finalizing flag in one update.
	AdvanceRound(ctx context.Context, id uuid.UUID, endsAt time.Time) error

	// Complete transitions to completed and clears the finalizing flag.
	Complete(ctx context.Context, id uuid.UUID) error

	// FindDue lists active auctions whose round deadline has passed.
	// Used by the scheduler's safety sweep.
	FindDue(ctx context.Context, now time.Time) ([]*Auction, error)
}

// ErrAuctionNotFound indicates a missing auction
type ErrAuctionNotFound struct {
	AuctionID uuid.UUID
}

func (e ErrAuctionNotFound) Error() string {
	return "auction not found: " + e.AuctionID.String()
}

// Is implements the errors.Is interface for ErrAuctionNotFound
func (e ErrAuctionNotFound) Is(target error) bool {
	t, ok := target.(ErrAuctionNotFound)
	if !ok {
		return false
	}
	if t.AuctionID == uuid.Nil {
		return true
	}
	return e.AuctionID == t.AuctionID
}
