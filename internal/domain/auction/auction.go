package auction

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status defines the auction lifecycle states
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Common validation errors
var (
	ErrEmptyTitle           = errors.New("title cannot be empty")
	ErrInvalidTotalItems    = errors.New("total items must be at least 1")
	ErrInvalidItemsPerRound = errors.New("items per round must be at least 1")
	ErrInvalidMinBid        = errors.New("minimum bid must be positive")
)

// Auction is a fixed pool of identical items sold across sequential rounds.
// CurrentRound only increases; RoundEndsAt only moves forward (anti-sniping
// extension or round advance). Finalizing is the mutual-exclusion flag for
// round settlement and is flipped only through conditional updates.
type Auction struct {
	ID                uuid.UUID     `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	ImageURL          string        `json:"image_url"`
	TotalItems        int           `json:"total_items"`
	ItemsPerRound     int           `json:"items_per_round"`
	CurrentRound      int           `json:"current_round"`
	MinBid            int64         `json:"min_bid"` // Smallest indivisible monetary unit
	Status            Status        `json:"status"`
	RoundEndsAt       time.Time     `json:"round_ends_at"`
	AntiSnipingWindow time.Duration `json:"anti_sniping_window"`
	Finalizing        bool          `json:"finalizing"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NewAuction creates a pending auction with the given parameters. The first
// round deadline is set when the auction is started, not at creation.
func NewAuction(title, description, imageURL string, totalItems, itemsPerRound int, minBid int64, antiSnipingWindow time.Duration) (*Auction, error) {
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if totalItems < 1 {
		return nil, ErrInvalidTotalItems
	}
	if itemsPerRound < 1 {
		return nil, ErrInvalidItemsPerRound
	}
	if minBid <= 0 {
		return nil, ErrInvalidMinBid
	}

	now := time.Now()
	return &Auction{
		ID:                uuid.New(),
		Title:             title,
		Description:       description,
		ImageURL:          imageURL,
		TotalItems:        totalItems,
		ItemsPerRound:     itemsPerRound,
		CurrentRound:      1,
		MinBid:            minBid,
		Status:            StatusPending,
		AntiSnipingWindow: antiSnipingWindow,
		Finalizing:        false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// RemainingAtRound returns how many items are still undistributed when the
// given round opens, assuming every earlier round sold out.
func (a *Auction) RemainingAtRound(round int) int {
	remaining := a.TotalItems - (round-1)*a.ItemsPerRound
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ItemsForRound returns the number of items offered in the given round:
// a full tranche, or whatever inventory is left for the final round.
func (a *Auction) ItemsForRound(round int) int {
	remaining := a.RemainingAtRound(round)
	if remaining > a.ItemsPerRound {
		return a.ItemsPerRound
	}
	return remaining
}

// FirstItemNumber returns the 1-based item number assigned to the top-ranked
// winner of the given round.
func (a *Auction) FirstItemNumber(round int) int {
	return (round-1)*a.ItemsPerRound + 1
}

// TotalRounds returns the number of rounds needed to sell the full pool
func (a *Auction) TotalRounds() int {
	return (a.TotalItems + a.ItemsPerRound - 1) / a.ItemsPerRound
}

// TimeLeft returns the time remaining in the current round, floored at zero
func (a *Auction) TimeLeft(now time.Time) time.Duration {
	left := a.RoundEndsAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
