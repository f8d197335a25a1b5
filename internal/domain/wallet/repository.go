package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Snapshot is the wallet state immediately after an atomic mutation.
// Callers use it to build audit entries without a second read.
type Snapshot struct {
	Balance int64
	Frozen  int64
}

// Repository defines wallet persistence operations. Reserve, Release,
// Capture and Deposit are atomic conditional updates: each applies its
// mutation only if the source bucket holds enough funds, and reports
// failure without changing any state otherwise.
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	GetByUsername(ctx context.Context, username string) (*Wallet, error)

	// Deposit adds amount to the spendable balance.
	Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*Snapshot, error)

	// Reserve moves amount from balance to frozen, only if balance >= amount.
	// Returns ErrInsufficientFunds when the condition fails.
	Reserve(ctx context.Context, userID uuid.UUID, amount int64) (*Snapshot, error)

	// Release moves amount from frozen back to balance, only if frozen >= amount.
	// Returns ErrInsufficientFrozen when the condition fails.
	Release(ctx context.Context, userID uuid.UUID, amount int64) (*Snapshot, error)

	// Capture permanently deducts amount from frozen, only if frozen >= amount.
	// Returns ErrInsufficientFrozen when the condition fails.
	Capture(ctx context.Context, userID uuid.UUID, amount int64) (*Snapshot, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates a missing wallet
type ErrWalletNotFound struct {
	UserID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found: " + e.UserID.String()
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.UserID == uuid.Nil {
		return true
	}
	return e.UserID == t.UserID
}

// ErrDuplicateUsername indicates a username uniqueness violation
type ErrDuplicateUsername struct {
	Username string
}

func (e ErrDuplicateUsername) Error() string {
	return "wallet with username already exists: " + e.Username
}
