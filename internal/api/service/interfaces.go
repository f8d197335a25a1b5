package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/multiround-auction/internal/domain/audit"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/item"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/multiround-auction/internal/engine"
)

// UserService manages bidder wallets and their read views
type UserService interface {
	Create(ctx context.Context, username string) (*wallet.Wallet, error)
	Get(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)

	// Deposit credits the spendable balance and records the audit entry
	// atomically with the credit.
	Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*wallet.Wallet, error)

	// ListTransactions pages the user's audit trail, newest first.
	ListTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*audit.Entry, int64, error)

	ListBids(ctx context.Context, userID uuid.UUID) ([]*bid.Bid, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]*item.Item, error)
}

// AuctionService exposes auction lifecycle and bidding operations. Writes
// delegate to the settlement engine; reads go to the repositories.
type AuctionService interface {
	Create(ctx context.Context, params engine.CreateAuctionParams) (*auction.Auction, error)
	Get(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	List(ctx context.Context) ([]*auction.Auction, error)
	ListActive(ctx context.Context) ([]*auction.Auction, error)
	Start(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	State(ctx context.Context, id uuid.UUID) (*engine.AuctionState, error)
	PlaceBid(ctx context.Context, auctionID, userID uuid.UUID, amount int64) (*bid.Bid, error)
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// FinalizeRound settles the current round on demand. Used by
	// operators; the scheduler drives the normal path.
	FinalizeRound(ctx context.Context, auctionID uuid.UUID) error
}
