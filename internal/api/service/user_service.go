package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/domain/audit"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/item"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/multiround-auction/internal/platform/persistence"
)

type userService struct {
	logger  *slog.Logger
	db      persistence.TxRunner
	wallets wallet.Repository
	bids    bid.Repository
	items   item.Repository
	outbox  audit.OutboxRepository
	entries audit.Repository
}

// NewUserService creates the bidder wallet service
func NewUserService(
	logger *slog.Logger,
	db persistence.TxRunner,
	wallets wallet.Repository,
	bids bid.Repository,
	items item.Repository,
	outbox audit.OutboxRepository,
	entries audit.Repository,
) UserService {
	return &userService{
		logger:  logger,
		db:      db,
		wallets: wallets,
		bids:    bids,
		items:   items,
		outbox:  outbox,
		entries: entries,
	}
}

// Create registers a bidder with an empty wallet
func (s *userService) Create(ctx context.Context, username string) (*wallet.Wallet, error) {
	w, err := wallet.NewWallet(username)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.Create(ctx, w); err != nil {
		return nil, err
	}

	s.logger.Info("User created", "user_id", w.UserID.String(), "username", w.Username)
	return w, nil
}

// Get retrieves a bidder's wallet
func (s *userService) Get(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	return s.wallets.GetByID(ctx, userID)
}

// Deposit credits the spendable balance. The credit and its audit entry
// commit in one transaction via the outbox.
func (s *userService) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Wallet, error) {
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		snap, err := s.wallets.WithTx(tx).Deposit(ctx, userID, amount)
		if err != nil {
			return err
		}

		msg, err := audit.NewMessage(audit.NewDepositEntry(userID, amount, snap.Balance, snap.Frozen))
		if err != nil {
			return err
		}
		return s.outbox.WithTx(tx).Create(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deposit applied", "user_id", userID.String(), "amount", amount)
	return s.wallets.GetByID(ctx, userID)
}

// ListTransactions pages the user's audit trail, newest first
func (s *userService) ListTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*audit.Entry, int64, error) {
	total, err := s.entries.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	entries, err := s.entries.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListBids returns every bid the user has placed, across auctions
func (s *userService) ListBids(ctx context.Context, userID uuid.UUID) ([]*bid.Bid, error) {
	return s.bids.ListByUser(ctx, userID)
}

// ListItems returns the items the user has won
func (s *userService) ListItems(ctx context.Context, userID uuid.UUID) ([]*item.Item, error) {
	return s.items.ListByUser(ctx, userID)
}
