// Package postgres provides PostgreSQL implementations of the domain
// repositories. Every settlement invariant that needs atomicity is expressed
// here as a conditional UPDATE, so concurrent callers serialize on the row
// predicate instead of application-level locks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/multiround-auction/internal/platform/persistence"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so a fund movement can be
// atomic with the bid and audit writes that describe it.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet. A duplicate username surfaces as
// wallet.ErrDuplicateUsername.
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (user_id, username, balance, frozen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		w.UserID,
		w.Username,
		w.Balance,
		w.Frozen,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return wallet.ErrDuplicateUsername{Username: w.Username}
		}
		r.logger.Error("Failed to create wallet", "user_id", w.UserID.String(), "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its user ID
func (r *WalletRepository) GetByID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT user_id, username, balance, frozen, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&w.UserID,
		&w.Username,
		&w.Balance,
		&w.Frozen,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get wallet", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// GetByUsername retrieves a wallet by username. Returns nil, nil when no
// wallet carries the name.
func (r *WalletRepository) GetByUsername(ctx context.Context, username string) (*wallet.Wallet, error) {
	query := `
		SELECT user_id, username, balance, frozen, created_at, updated_at
		FROM wallets
		WHERE username = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, username).Scan(
		&w.UserID,
		&w.Username,
		&w.Balance,
		&w.Frozen,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get wallet by username", "username", username, "error", err)
		return nil, fmt.Errorf("failed to get wallet by username: %w", err)
	}

	return &w, nil
}

// Deposit adds amount to the spendable balance and returns the resulting state
func (r *WalletRepository) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}

	query := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING balance, frozen
	`

	var snap wallet.Snapshot
	err := r.querier.QueryRow(ctx, query, amount, userID).Scan(&snap.Balance, &snap.Frozen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to deposit", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to deposit: %w", err)
	}

	return &snap, nil
}

// Reserve atomically moves amount from balance to frozen, guarded by
// balance >= amount. This single statement is what serializes two raises by
// the same user racing for the same funds.
func (r *WalletRepository) Reserve(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}

	query := `
		UPDATE wallets
		SET balance = balance - $1, frozen = frozen + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance, frozen
	`

	var snap wallet.Snapshot
	err := r.querier.QueryRow(ctx, query, amount, userID).Scan(&snap.Balance, &snap.Frozen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.conditionFailed(ctx, userID, wallet.ErrInsufficientFunds)
		}
		r.logger.Error("Failed to reserve funds", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to reserve funds: %w", err)
	}

	return &snap, nil
}

// Release atomically moves amount from frozen back to balance, guarded by
// frozen >= amount.
func (r *WalletRepository) Release(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}

	query := `
		UPDATE wallets
		SET balance = balance + $1, frozen = frozen - $1, updated_at = NOW()
		WHERE user_id = $2 AND frozen >= $1
		RETURNING balance, frozen
	`

	var snap wallet.Snapshot
	err := r.querier.QueryRow(ctx, query, amount, userID).Scan(&snap.Balance, &snap.Frozen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.conditionFailed(ctx, userID, wallet.ErrInsufficientFrozen)
		}
		r.logger.Error("Failed to release funds", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to release funds: %w", err)
	}

	return &snap, nil
}

// Capture atomically deducts amount from frozen, guarded by frozen >= amount
func (r *WalletRepository) Capture(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}

	query := `
		UPDATE wallets
		SET frozen = frozen - $1, updated_at = NOW()
		WHERE user_id = $2 AND frozen >= $1
		RETURNING balance, frozen
	`

	var snap wallet.Snapshot
	err := r.querier.QueryRow(ctx, query, amount, userID).Scan(&snap.Balance, &snap.Frozen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.conditionFailed(ctx, userID, wallet.ErrInsufficientFrozen)
		}
		r.logger.Error("Failed to capture funds", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to capture funds: %w", err)
	}

	return &snap, nil
}

// conditionFailed distinguishes a missing wallet from a failed funds guard.
// Both produce zero updated rows; only a second read can tell them apart.
func (r *WalletRepository) conditionFailed(ctx context.Context, userID uuid.UUID, guardErr error) error {
	if _, err := r.GetByID(ctx, userID); err != nil {
		return err
	}
	return guardErr
}
