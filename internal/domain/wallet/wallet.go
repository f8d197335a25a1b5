package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyUsername     = errors.New("username cannot be empty")
	ErrInsufficientFunds = errors.New("insufficient spendable balance")
	// ErrInsufficientFrozen means a release or capture asked for more than
	// is currently reserved. Under correct settlement invariants this never
	// happens; callers treat it as a consistency violation.
	ErrInsufficientFrozen = errors.New("insufficient frozen balance")
)

// Wallet tracks a bidder's funds. Balance is spendable, Frozen is reserved
// against active bids but not yet captured. Both are stored in the smallest
// indivisible monetary unit.
type Wallet struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Balance   int64     `json:"balance"`
	Frozen    int64     `json:"frozen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet creates a wallet for a new bidder with a zero balance
func NewWallet(username string) (*Wallet, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}

	now := time.Now()
	return &Wallet{
		UserID:    uuid.New(),
		Username:  username,
		Balance:   0,
		Frozen:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
