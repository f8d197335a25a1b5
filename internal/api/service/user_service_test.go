package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/domain/audit"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/item"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetByUsername(ctx context.Context, username string) (*wallet.Wallet, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Snapshot), args.Error(1)
}

func (m *MockWalletRepository) Reserve(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Snapshot), args.Error(1)
}

func (m *MockWalletRepository) Release(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Snapshot), args.Error(1)
}

func (m *MockWalletRepository) Capture(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Snapshot, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Snapshot), args.Error(1)
}

func (m *MockWalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *audit.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*audit.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Message), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) audit.OutboxRepository {
	return m
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*audit.Entry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, auctionID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) Create(ctx context.Context, b *bid.Bid) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bid.Bid), args.Error(1)
}

func (m *MockBidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *MockBidRepository) ListActive(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *MockBidRepository) GetActiveByUser(ctx context.Context, auctionID, userID uuid.UUID) (*bid.Bid, error) {
	args := m.Called(ctx, auctionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bid.Bid), args.Error(1)
}

func (m *MockBidRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*bid.Bid, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *MockBidRepository) Raise(ctx context.Context, id uuid.UUID, prevAmount, newAmount int64) error {
	args := m.Called(ctx, id, prevAmount, newAmount)
	return args.Error(0)
}

func (m *MockBidRepository) MarkWon(ctx context.Context, id uuid.UUID, itemNumber int) error {
	args := m.Called(ctx, id, itemNumber)
	return args.Error(0)
}

func (m *MockBidRepository) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBidRepository) CarryForward(ctx context.Context, id uuid.UUID, newRound int) error {
	args := m.Called(ctx, id, newRound)
	return args.Error(0)
}

func (m *MockBidRepository) WithTx(tx pgx.Tx) bid.Repository {
	return m
}

type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) Create(ctx context.Context, it *item.Item) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}

func (m *MockItemRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*item.Item, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*item.Item), args.Error(1)
}

func (m *MockItemRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*item.Item, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*item.Item), args.Error(1)
}

func (m *MockItemRepository) WithTx(tx pgx.Tx) item.Repository {
	return m
}

// stubTxRunner runs the transactional function directly with a nil tx. The
// repository mocks ignore the tx they are handed.
type stubTxRunner struct{}

func (stubTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type userServiceMocks struct {
	wallets *MockWalletRepository
	bids    *MockBidRepository
	items   *MockItemRepository
	outbox  *MockOutboxRepository
	entries *MockAuditRepository
}

func newTestUserService() (UserService, *userServiceMocks) {
	m := &userServiceMocks{
		wallets: new(MockWalletRepository),
		bids:    new(MockBidRepository),
		items:   new(MockItemRepository),
		outbox:  new(MockOutboxRepository),
		entries: new(MockAuditRepository),
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewUserService(logger, stubTxRunner{}, m.wallets, m.bids, m.items, m.outbox, m.entries)
	return svc, m
}

func TestUserService_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, m := newTestUserService()

		m.wallets.On("Create", mock.Anything, mock.MatchedBy(func(w *wallet.Wallet) bool {
			return w.Username == "alice" && w.Balance == 0 && w.Frozen == 0
		})).Return(nil)

		w, err := svc.Create(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", w.Username)
		assert.NotEqual(t, uuid.Nil, w.UserID)
		m.wallets.AssertExpectations(t)
	})

	t.Run("EmptyUsername", func(t *testing.T) {
		svc, m := newTestUserService()

		_, err := svc.Create(context.Background(), "")
		assert.ErrorIs(t, err, wallet.ErrEmptyUsername)
		m.wallets.AssertExpectations(t)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		svc, m := newTestUserService()

		m.wallets.On("Create", mock.Anything, mock.Anything).
			Return(wallet.ErrDuplicateUsername{Username: "alice"})

		_, err := svc.Create(context.Background(), "alice")
		var dup wallet.ErrDuplicateUsername
		assert.ErrorAs(t, err, &dup)
		m.wallets.AssertExpectations(t)
	})
}

func TestUserService_Deposit(t *testing.T) {
	userID := uuid.New()

	t.Run("StagesAuditEntryWithCredit", func(t *testing.T) {
		svc, m := newTestUserService()

		m.wallets.On("Deposit", mock.Anything, userID, int64(1000)).
			Return(&wallet.Snapshot{Balance: 1500, Frozen: 200}, nil)
		m.outbox.On("Create", mock.Anything, mock.MatchedBy(func(msg *audit.Message) bool {
			entry, err := msg.DecodeEntry()
			if err != nil {
				return false
			}
			return entry.Kind == audit.KindDeposit &&
				entry.UserID == userID &&
				entry.Amount == 1000 &&
				entry.BalanceBefore == 500 &&
				entry.BalanceAfter == 1500 &&
				entry.FrozenBefore == 200 &&
				entry.FrozenAfter == 200
		})).Return(nil)

		now := time.Now()
		m.wallets.On("GetByID", mock.Anything, userID).Return(&wallet.Wallet{
			UserID:    userID,
			Username:  "alice",
			Balance:   1500,
			Frozen:    200,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil)

		w, err := svc.Deposit(context.Background(), userID, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), w.Balance)
		m.wallets.AssertExpectations(t)
		m.outbox.AssertExpectations(t)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		svc, m := newTestUserService()

		_, err := svc.Deposit(context.Background(), userID, 0)
		assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
		m.wallets.AssertExpectations(t)
	})

	t.Run("WalletMissing", func(t *testing.T) {
		svc, m := newTestUserService()

		m.wallets.On("Deposit", mock.Anything, userID, int64(1000)).
			Return(nil, wallet.ErrWalletNotFound{UserID: userID})

		_, err := svc.Deposit(context.Background(), userID, 1000)
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{UserID: userID})
		m.wallets.AssertExpectations(t)
		m.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("OutboxFailureAbortsDeposit", func(t *testing.T) {
		svc, m := newTestUserService()

		m.wallets.On("Deposit", mock.Anything, userID, int64(1000)).
			Return(&wallet.Snapshot{Balance: 1000, Frozen: 0}, nil)
		m.outbox.On("Create", mock.Anything, mock.Anything).Return(errors.New("outbox insert failed"))

		_, err := svc.Deposit(context.Background(), userID, 1000)
		assert.Error(t, err)
		m.wallets.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestUserService_ListTransactions(t *testing.T) {
	userID := uuid.New()

	t.Run("PagesWithOffset", func(t *testing.T) {
		svc, m := newTestUserService()

		entries := []*audit.Entry{audit.NewDepositEntry(userID, 1000, 1000, 0)}
		m.entries.On("CountByUser", mock.Anything, userID).Return(int64(45), nil)
		m.entries.On("ListByUser", mock.Anything, userID, 20, 40).Return(entries, nil)

		got, total, err := svc.ListTransactions(context.Background(), userID, 3, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(45), total)
		assert.Len(t, got, 1)
		m.entries.AssertExpectations(t)
	})

	t.Run("CountFailureSurfaces", func(t *testing.T) {
		svc, m := newTestUserService()

		m.entries.On("CountByUser", mock.Anything, userID).Return(int64(0), errors.New("audit store down"))

		_, _, err := svc.ListTransactions(context.Background(), userID, 1, 20)
		assert.Error(t, err)
		m.entries.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
