package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/multiround-auction/internal/api/service"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/multiround-auction/internal/engine"
)

// AuctionHandler handles HTTP requests for auctions and bidding
type AuctionHandler struct {
	logger  *slog.Logger
	service service.AuctionService
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(logger *slog.Logger, service service.AuctionService) *AuctionHandler {
	return &AuctionHandler{
		logger:  logger,
		service: service,
	}
}

// Create handles auction creation requests
func (h *AuctionHandler) Create(c *gin.Context) {
	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	a, err := h.service.Create(c.Request.Context(), engine.CreateAuctionParams{
		Title:             req.Title,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		TotalItems:        req.TotalItems,
		ItemsPerRound:     req.ItemsPerRound,
		MinBid:            req.MinBid,
		AntiSnipingWindow: time.Duration(req.AntiSnipingWindowMs) * time.Millisecond,
	})
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrEmptyTitle),
			errors.Is(err, auction.ErrInvalidTotalItems),
			errors.Is(err, auction.ErrInvalidItemsPerRound),
			errors.Is(err, auction.ErrInvalidMinBid):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to create auction", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, toAuctionResponse(a))
}

// List handles requests for all auctions
func (h *AuctionHandler) List(c *gin.Context) {
	auctions, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list auctions", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toAuctionListResponse(auctions))
}

// ListActive handles requests for active auctions
func (h *AuctionHandler) ListActive(c *gin.Context) {
	auctions, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list active auctions", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toAuctionListResponse(auctions))
}

// GetByID handles auction retrieval requests
func (h *AuctionHandler) GetByID(c *gin.Context) {
	auctionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrAuctionNotFound{}) {
			RespondNotFound(c, "Auction not found")
			return
		}
		h.logger.Error("Failed to get auction", "auction_id", auctionID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toAuctionResponse(a))
}

// Start handles requests to open an auction for bidding
func (h *AuctionHandler) Start(c *gin.Context) {
	auctionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Start(c.Request.Context(), auctionID)
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrAuctionNotFound{}):
			RespondNotFound(c, "Auction not found")
		case errors.Is(err, auction.ErrNotStartable):
			RespondConflict(c, "NOT_STARTABLE", err.Error())
		default:
			h.logger.Error("Failed to start auction", "auction_id", auctionID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, toAuctionResponse(a))
}

// State handles live round state requests
func (h *AuctionHandler) State(c *gin.Context) {
	auctionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	state, err := h.service.State(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrAuctionNotFound{}) {
			RespondNotFound(c, "Auction not found")
			return
		}
		h.logger.Error("Failed to get auction state", "auction_id", auctionID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, state)
}

// PlaceBid handles bid placement and raise requests
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	auctionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user_id format, must be a valid UUID")
		return
	}

	b, err := h.service.PlaceBid(c.Request.Context(), auctionID, userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrAuctionNotFound{}):
			RespondNotFound(c, "Auction not found")
		case errors.Is(err, wallet.ErrWalletNotFound{}):
			RespondNotFound(c, "User not found")
		case errors.Is(err, engine.ErrAuctionNotActive):
			RespondConflict(c, "AUCTION_NOT_ACTIVE", err.Error())
		case errors.Is(err, engine.ErrRoundEnded):
			RespondConflict(c, "ROUND_ENDED", err.Error())
		case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrBelowMinimum):
			RespondBadRequest(c, err.Error())
		case errors.Is(err, engine.ErrMustExceedCurrent):
			RespondUnprocessable(c, "MUST_EXCEED_CURRENT", err.Error())
		case errors.Is(err, wallet.ErrInsufficientFunds):
			RespondUnprocessable(c, "INSUFFICIENT_FUNDS", err.Error())
		case errors.Is(err, bid.ErrConcurrentModification):
			RespondConflict(c, "CONCURRENT_BID", "Bid was modified concurrently, retry with the latest amount")
		default:
			h.logger.Error("Failed to place bid",
				"auction_id", auctionID.String(),
				"user_id", userID.String(),
				"error", err,
			)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, toBidResponse(b))
}

// ListBids handles requests for an auction's ranked bids
func (h *AuctionHandler) ListBids(c *gin.Context) {
	auctionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	bids, err := h.service.ListBids(c.Request.Context(), auctionID)
	if err != nil {
		h.logger.Error("Failed to list auction bids", "auction_id", auctionID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toBidListResponse(bids))
}

// Finalize handles operator requests to settle the current round now
func (h *AuctionHandler) Finalize(c *gin.Context) {
	auctionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.FinalizeRound(c.Request.Context(), auctionID); err != nil {
		if errors.Is(err, auction.ErrAuctionNotFound{}) {
			RespondNotFound(c, "Auction not found")
			return
		}
		h.logger.Error("Failed to finalize round", "auction_id", auctionID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"finalized": true})
}
