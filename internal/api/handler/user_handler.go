package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/multiround-auction/internal/api/service"
	"github.com/multiround-auction/internal/domain/wallet"
)

// UserHandler handles HTTP requests for bidder wallets
type UserHandler struct {
	logger  *slog.Logger
	service service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(logger *slog.Logger, service service.UserService) *UserHandler {
	return &UserHandler{
		logger:  logger,
		service: service,
	}
}

// Create handles user registration requests
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	w, err := h.service.Create(c.Request.Context(), req.Username)
	if err != nil {
		var dup wallet.ErrDuplicateUsername
		switch {
		case errors.Is(err, wallet.ErrEmptyUsername):
			RespondBadRequest(c, err.Error())
		case errors.As(err, &dup):
			RespondConflict(c, "USERNAME_TAKEN", err.Error())
		default:
			h.logger.Error("Failed to create user", "username", req.Username, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, toWalletResponse(w))
}

// GetByID handles wallet retrieval requests
func (h *UserHandler) GetByID(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	w, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			RespondNotFound(c, "User not found")
			return
		}
		h.logger.Error("Failed to get user", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toWalletResponse(w))
}

// Deposit handles wallet funding requests
func (h *UserHandler) Deposit(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	w, err := h.service.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount):
			RespondBadRequest(c, err.Error())
		case errors.Is(err, wallet.ErrWalletNotFound{}):
			RespondNotFound(c, "User not found")
		default:
			h.logger.Error("Failed to deposit", "user_id", userID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, toWalletResponse(w))
}

// ListTransactions handles paged audit trail requests for a user
func (h *UserHandler) ListTransactions(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, total, err := h.service.ListTransactions(c.Request.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list transactions", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondWithPaginatedData(c, 200, toTransactionListResponse(entries), params.Page, params.PerPage, int(total))
}

// ListBids handles requests for a user's bids across auctions
func (h *UserHandler) ListBids(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	bids, err := h.service.ListBids(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user bids", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toBidListResponse(bids))
}

// ListItems handles requests for a user's won items
func (h *UserHandler) ListItems(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.service.ListItems(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user items", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toItemListResponse(items))
}

// parseUUIDParam parses a UUID path parameter, responding 400 on failure
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+name+" format, must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
