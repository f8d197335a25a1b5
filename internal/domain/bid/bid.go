package bid

import (
	"time"

	"github.com/google/uuid"
)

// Status defines the bid lifecycle states
type Status string

const (
	StatusActive   Status = "active"
	StatusWon      Status = "won"
	StatusRefunded Status = "refunded"
)

// Bid is one user's standing offer in an auction. A user holds at most one
// active bid per auction; raising replaces the amount in place. Seq is a
// store-assigned monotonic sequence number used as the stable tie-break for
// equal amounts: earlier submission ranks higher.
type Bid struct {
	ID         uuid.UUID `json:"id"`
	AuctionID  uuid.UUID `json:"auction_id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     int64     `json:"amount"` // Smallest indivisible monetary unit
	Round      int       `json:"round"`  // Round the bid currently competes in
	Seq        int64     `json:"seq"`
	Status     Status    `json:"status"`
	ItemNumber *int      `json:"item_number,omitempty"` // Set when the bid wins
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New creates an active bid for the given auction round. Seq is assigned by
// the store on insert.
func New(auctionID, userID uuid.UUID, amount int64, round int) *Bid {
	now := time.Now()
	return &Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    amount,
		Round:     round,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
