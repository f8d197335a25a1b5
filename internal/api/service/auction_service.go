package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/engine"
)

type auctionService struct {
	logger   *slog.Logger
	engine   *engine.Engine
	auctions auction.Repository
	bids     bid.Repository
}

// NewAuctionService creates the auction service over the settlement engine
func NewAuctionService(logger *slog.Logger, eng *engine.Engine, auctions auction.Repository, bids bid.Repository) AuctionService {
	return &auctionService{
		logger:   logger,
		engine:   eng,
		auctions: auctions,
		bids:     bids,
	}
}

func (s *auctionService) Create(ctx context.Context, params engine.CreateAuctionParams) (*auction.Auction, error) {
	return s.engine.CreateAuction(ctx, params)
}

func (s *auctionService) Get(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return s.auctions.GetByID(ctx, id)
}

func (s *auctionService) List(ctx context.Context) ([]*auction.Auction, error) {
	return s.auctions.List(ctx)
}

func (s *auctionService) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	return s.auctions.ListByStatus(ctx, auction.StatusActive)
}

func (s *auctionService) Start(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return s.engine.StartAuction(ctx, id)
}

func (s *auctionService) State(ctx context.Context, id uuid.UUID) (*engine.AuctionState, error) {
	return s.engine.GetAuctionState(ctx, id)
}

func (s *auctionService) PlaceBid(ctx context.Context, auctionID, userID uuid.UUID, amount int64) (*bid.Bid, error) {
	return s.engine.PlaceBid(ctx, auctionID, userID, amount)
}

func (s *auctionService) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	return s.bids.ListByAuction(ctx, auctionID)
}

func (s *auctionService) FinalizeRound(ctx context.Context, auctionID uuid.UUID) error {
	return s.engine.FinalizeRound(ctx, auctionID)
}
