package handler

import (
	"time"

	"github.com/multiround-auction/internal/domain/audit"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/item"
	"github.com/multiround-auction/internal/domain/wallet"
)

// CreateUserRequest represents a request to register a new bidder
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
}

// DepositRequest represents a request to add funds to a wallet
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// CreateAuctionRequest represents a request to create a new auction
type CreateAuctionRequest struct {
	Title               string `json:"title" binding:"required"`
	Description         string `json:"description"`
	ImageURL            string `json:"image_url"`
	TotalItems          int    `json:"total_items" binding:"required,min=1"`
	ItemsPerRound       int    `json:"items_per_round" binding:"required,min=1"`
	MinBid              int64  `json:"min_bid" binding:"required,gt=0"`
	AntiSnipingWindowMs int64  `json:"anti_sniping_window_ms" binding:"min=0"`
}

// PlaceBidRequest represents a request to place or raise a bid
type PlaceBidRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// WalletResponse represents a bidder's wallet in API responses
type WalletResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Balance   int64  `json:"balance"`
	Frozen    int64  `json:"frozen"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuctionResponse represents an auction in API responses
type AuctionResponse struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	ImageURL            string `json:"image_url,omitempty"`
	TotalItems          int    `json:"total_items"`
	ItemsPerRound       int    `json:"items_per_round"`
	CurrentRound        int    `json:"current_round"`
	MinBid              int64  `json:"min_bid"`
	Status              string `json:"status"`
	RoundEndsAt         string `json:"round_ends_at,omitempty"`
	AntiSnipingWindowMs int64  `json:"anti_sniping_window_ms"`
	CreatedAt           string `json:"created_at"`
}

// BidResponse represents a bid in API responses
type BidResponse struct {
	ID         string `json:"id"`
	AuctionID  string `json:"auction_id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Round      int    `json:"round"`
	Status     string `json:"status"`
	ItemNumber *int   `json:"item_number,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ItemResponse represents a won item in API responses
type ItemResponse struct {
	ID         string `json:"id"`
	AuctionID  string `json:"auction_id"`
	UserID     string `json:"user_id"`
	BidID      string `json:"bid_id"`
	ItemNumber int    `json:"item_number"`
	PaidAmount int64  `json:"paid_amount"`
	WonAt      string `json:"won_at"`
}

// TransactionResponse represents an audit trail entry in API responses
type TransactionResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	AuctionID     string `json:"auction_id,omitempty"`
	BidID         string `json:"bid_id,omitempty"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	FrozenBefore  int64  `json:"frozen_before"`
	FrozenAfter   int64  `json:"frozen_after"`
	CreatedAt     string `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func toWalletResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		UserID:    w.UserID.String(),
		Username:  w.Username,
		Balance:   w.Balance,
		Frozen:    w.Frozen,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
}

func toAuctionResponse(a *auction.Auction) AuctionResponse {
	resp := AuctionResponse{
		ID:                  a.ID.String(),
		Title:               a.Title,
		Description:         a.Description,
		ImageURL:            a.ImageURL,
		TotalItems:          a.TotalItems,
		ItemsPerRound:       a.ItemsPerRound,
		CurrentRound:        a.CurrentRound,
		MinBid:              a.MinBid,
		Status:              string(a.Status),
		AntiSnipingWindowMs: a.AntiSnipingWindow.Milliseconds(),
		CreatedAt:           a.CreatedAt.Format(time.RFC3339),
	}
	if !a.RoundEndsAt.IsZero() {
		resp.RoundEndsAt = a.RoundEndsAt.Format(time.RFC3339)
	}
	return resp
}

func toAuctionListResponse(auctions []*auction.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, toAuctionResponse(a))
	}
	return out
}

func toBidResponse(b *bid.Bid) BidResponse {
	return BidResponse{
		ID:         b.ID.String(),
		AuctionID:  b.AuctionID.String(),
		UserID:     b.UserID.String(),
		Amount:     b.Amount,
		Round:      b.Round,
		Status:     string(b.Status),
		ItemNumber: b.ItemNumber,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  b.UpdatedAt.Format(time.RFC3339),
	}
}

func toBidListResponse(bids []*bid.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}

func toItemListResponse(items []*item.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, ItemResponse{
			ID:         it.ID.String(),
			AuctionID:  it.AuctionID.String(),
			UserID:     it.UserID.String(),
			BidID:      it.BidID.String(),
			ItemNumber: it.ItemNumber,
			PaidAmount: it.PaidAmount,
			WonAt:      it.WonAt.Format(time.RFC3339),
		})
	}
	return out
}

func toTransactionListResponse(entries []*audit.Entry) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(entries))
	for _, e := range entries {
		resp := TransactionResponse{
			ID:            e.ID.String(),
			UserID:        e.UserID.String(),
			Kind:          string(e.Kind),
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			FrozenBefore:  e.FrozenBefore,
			FrozenAfter:   e.FrozenAfter,
			CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		}
		if e.AuctionID != nil {
			resp.AuctionID = e.AuctionID.String()
		}
		if e.BidID != nil {
			resp.BidID = e.BidID.String()
		}
		out = append(out, resp)
	}
	return out
}
