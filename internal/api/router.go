package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/multiround-auction/internal/api/handler"
	"github.com/multiround-auction/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	userHandler *handler.UserHandler,
	auctionHandler *handler.AuctionHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Bidder wallet operations
		users := v1.Group("/users")
		{
			users.POST("", userHandler.Create)
			users.GET("/:id", userHandler.GetByID)
			users.POST("/:id/deposit", userHandler.Deposit)
			users.GET("/:id/transactions", userHandler.ListTransactions)
			users.GET("/:id/bids", userHandler.ListBids)
			users.GET("/:id/items", userHandler.ListItems)
		}

		// Auction and bidding operations
		auctions := v1.Group("/auctions")
		{
			auctions.POST("", auctionHandler.Create)
			auctions.GET("", auctionHandler.List)
			auctions.GET("/active", auctionHandler.ListActive)
			auctions.GET("/:id", auctionHandler.GetByID)
			auctions.POST("/:id/start", auctionHandler.Start)
			auctions.GET("/:id/state", auctionHandler.State)
			auctions.POST("/:id/bids", auctionHandler.PlaceBid)
			auctions.GET("/:id/bids", auctionHandler.ListBids)
			auctions.POST("/:id/finalize", auctionHandler.Finalize)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
