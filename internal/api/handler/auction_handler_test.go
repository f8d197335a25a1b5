package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/multiround-auction/internal/api/service"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/multiround-auction/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuctionService struct {
	mock.Mock
}

func (m *MockAuctionService) Create(ctx context.Context, params engine.CreateAuctionParams) (*auction.Auction, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Auction), args.Error(1)
}

func (m *MockAuctionService) Get(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Auction), args.Error(1)
}

func (m *MockAuctionService) List(ctx context.Context) ([]*auction.Auction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auction.Auction), args.Error(1)
}

func (m *MockAuctionService) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auction.Auction), args.Error(1)
}

func (m *MockAuctionService) Start(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Auction), args.Error(1)
}

func (m *MockAuctionService) State(ctx context.Context, id uuid.UUID) (*engine.AuctionState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.AuctionState), args.Error(1)
}

func (m *MockAuctionService) PlaceBid(ctx context.Context, auctionID, userID uuid.UUID, amount int64) (*bid.Bid, error) {
	args := m.Called(ctx, auctionID, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bid.Bid), args.Error(1)
}

func (m *MockAuctionService) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *MockAuctionService) FinalizeRound(ctx context.Context, auctionID uuid.UUID) error {
	args := m.Called(ctx, auctionID)
	return args.Error(0)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func testAuction() *auction.Auction {
	now := time.Now()
	return &auction.Auction{
		ID:                uuid.New(),
		Title:             "Limited pressing",
		TotalItems:        10,
		ItemsPerRound:     3,
		CurrentRound:      1,
		MinBid:            100,
		Status:            auction.StatusActive,
		RoundEndsAt:       now.Add(time.Minute),
		AntiSnipingWindow: 30 * time.Second,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var topLevel Response
	require.NoError(t, json.Unmarshal(body, &topLevel))
	require.NotNil(t, topLevel.Data)

	dataBytes, err := json.Marshal(topLevel.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(dataBytes, &out))
	return out
}

func decodeError(t *testing.T, body []byte) *ErrorInfo {
	t.Helper()
	var topLevel Response
	require.NoError(t, json.Unmarshal(body, &topLevel))
	require.NotNil(t, topLevel.Error)
	return topLevel.Error
}

func TestAuctionHandler_Create(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		expected := testAuction()
		expected.Status = auction.StatusPending
		expected.RoundEndsAt = time.Time{}
		mockService.On("Create", mock.Anything, engine.CreateAuctionParams{
			Title:             "Limited pressing",
			TotalItems:        10,
			ItemsPerRound:     3,
			MinBid:            100,
			AntiSnipingWindow: 30 * time.Second,
		}).Return(expected, nil)

		router := setupTestRouter()
		router.POST("/auctions", handler.Create)

		reqBody := CreateAuctionRequest{
			Title:               "Limited pressing",
			TotalItems:          10,
			ItemsPerRound:       3,
			MinBid:              100,
			AntiSnipingWindowMs: 30000,
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/auctions", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		body := decodeData[AuctionResponse](t, rr.Body.Bytes())
		assert.Equal(t, expected.ID.String(), body.ID)
		assert.Equal(t, "pending", body.Status)
		assert.Equal(t, int64(30000), body.AntiSnipingWindowMs)
		assert.Empty(t, body.RoundEndsAt)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/auctions", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/auctions", bytes.NewBufferString(`{"title":`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("DomainValidationError", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("Create", mock.Anything, mock.Anything).Return(nil, auction.ErrInvalidMinBid)

		router := setupTestRouter()
		router.POST("/auctions", handler.Create)

		reqBody := CreateAuctionRequest{Title: "a", TotalItems: 1, ItemsPerRound: 1, MinBid: 100}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/auctions", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAuctionHandler_Start(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		expected := testAuction()
		mockService.On("Start", mock.Anything, expected.ID).Return(expected, nil)

		router := setupTestRouter()
		router.POST("/auctions/:id/start", handler.Start)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+expected.ID.String()+"/start", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeData[AuctionResponse](t, rr.Body.Bytes())
		assert.Equal(t, "active", body.Status)
		assert.NotEmpty(t, body.RoundEndsAt)
		mockService.AssertExpectations(t)
	})

	t.Run("AlreadyStarted", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		auctionID := uuid.New()
		mockService.On("Start", mock.Anything, auctionID).Return(nil, auction.ErrNotStartable)

		router := setupTestRouter()
		router.POST("/auctions/:id/start", handler.Start)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/start", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		errInfo := decodeError(t, rr.Body.Bytes())
		assert.Equal(t, "NOT_STARTABLE", errInfo.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		auctionID := uuid.New()
		mockService.On("Start", mock.Anything, auctionID).Return(nil, auction.ErrAuctionNotFound{AuctionID: auctionID})

		router := setupTestRouter()
		router.POST("/auctions/:id/start", handler.Start)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/start", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAuctionHandler_PlaceBid(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	auctionID := uuid.New()
	userID := uuid.New()

	placeBid := func(handler *AuctionHandler, amount int64) *httptest.ResponseRecorder {
		router := setupTestRouter()
		router.POST("/auctions/:id/bids", handler.PlaceBid)

		reqBody := PlaceBidRequest{UserID: userID.String(), Amount: amount}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/bids", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		placed := bid.New(auctionID, userID, 500, 1)
		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(500)).Return(placed, nil)

		rr := placeBid(handler, 500)

		assert.Equal(t, http.StatusCreated, rr.Code)
		body := decodeData[BidResponse](t, rr.Body.Bytes())
		assert.Equal(t, placed.ID.String(), body.ID)
		assert.Equal(t, int64(500), body.Amount)
		assert.Equal(t, "active", body.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidUserID", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/auctions/:id/bids", handler.PlaceBid)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/bids",
			bytes.NewBufferString(`{"user_id":"not-a-uuid","amount":500}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(500)).
			Return(nil, wallet.ErrWalletNotFound{UserID: userID})

		rr := placeBid(handler, 500)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("RoundEnded", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(500)).
			Return(nil, engine.ErrRoundEnded)

		rr := placeBid(handler, 500)

		assert.Equal(t, http.StatusConflict, rr.Code)
		errInfo := decodeError(t, rr.Body.Bytes())
		assert.Equal(t, "ROUND_ENDED", errInfo.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("BelowMinimum", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(50)).
			Return(nil, engine.ErrBelowMinimum)

		rr := placeBid(handler, 50)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MustExceedCurrent", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(500)).
			Return(nil, engine.ErrMustExceedCurrent)

		rr := placeBid(handler, 500)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		errInfo := decodeError(t, rr.Body.Bytes())
		assert.Equal(t, "MUST_EXCEED_CURRENT", errInfo.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(500)).
			Return(nil, wallet.ErrInsufficientFunds)

		rr := placeBid(handler, 500)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		errInfo := decodeError(t, rr.Body.Bytes())
		assert.Equal(t, "INSUFFICIENT_FUNDS", errInfo.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ConcurrentRaise", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		mockService.On("PlaceBid", mock.Anything, auctionID, userID, int64(500)).
			Return(nil, bid.ErrConcurrentModification)

		rr := placeBid(handler, 500)

		assert.Equal(t, http.StatusConflict, rr.Code)
		errInfo := decodeError(t, rr.Body.Bytes())
		assert.Equal(t, "CONCURRENT_BID", errInfo.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAuctionHandler_State(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		a := testAuction()
		state := &engine.AuctionState{
			Auction:        a,
			CurrentRound:   1,
			TotalRounds:    4,
			ItemsThisRound: 3,
			RemainingItems: 10,
			MinWinningBid:  100,
			EndsAt:         a.RoundEndsAt,
			TimeLeft:       time.Minute,
			TimeLeftMs:     60000,
		}
		mockService.On("State", mock.Anything, a.ID).Return(state, nil)

		router := setupTestRouter()
		router.GET("/auctions/:id/state", handler.State)

		req, _ := http.NewRequest(http.MethodGet, "/auctions/"+a.ID.String()+"/state", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		auctionID := uuid.New()
		mockService.On("State", mock.Anything, auctionID).Return(nil, auction.ErrAuctionNotFound{AuctionID: auctionID})

		router := setupTestRouter()
		router.GET("/auctions/:id/state", handler.State)

		req, _ := http.NewRequest(http.MethodGet, "/auctions/"+auctionID.String()+"/state", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidUUID", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/auctions/:id/state", handler.State)

		req, _ := http.NewRequest(http.MethodGet, "/auctions/not-a-uuid/state", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAuctionHandler_Finalize(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		auctionID := uuid.New()
		mockService.On("FinalizeRound", mock.Anything, auctionID).Return(nil)

		router := setupTestRouter()
		router.POST("/auctions/:id/finalize", handler.Finalize)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/finalize", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		auctionID := uuid.New()
		mockService.On("FinalizeRound", mock.Anything, auctionID).
			Return(auction.ErrAuctionNotFound{AuctionID: auctionID})

		router := setupTestRouter()
		router.POST("/auctions/:id/finalize", handler.Finalize)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/finalize", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockAuctionService)
		handler := NewAuctionHandler(logger, mockService)

		auctionID := uuid.New()
		mockService.On("FinalizeRound", mock.Anything, auctionID).Return(errors.New("database connection lost"))

		router := setupTestRouter()
		router.POST("/auctions/:id/finalize", handler.Finalize)

		req, _ := http.NewRequest(http.MethodPost, "/auctions/"+auctionID.String()+"/finalize", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

var _ service.AuctionService = (*MockAuctionService)(nil)
