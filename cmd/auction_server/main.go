package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/multiround-auction/internal/api"
	"github.com/multiround-auction/internal/api/service"
	"github.com/multiround-auction/internal/config"
	"github.com/multiround-auction/internal/data/mongo"
	"github.com/multiround-auction/internal/data/postgres"
	"github.com/multiround-auction/internal/engine"
	"github.com/multiround-auction/internal/engine/auditor"
	"github.com/multiround-auction/internal/engine/scheduler"
	"github.com/multiround-auction/internal/logger"
	"github.com/multiround-auction/internal/platform/messaging/producers"
	"github.com/multiround-auction/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("auction_server")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for auction lifecycle events
	eventProducer, err := producers.NewAuctionEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize auction event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	auctionRepo := postgres.NewAuctionRepository(log, postgresDB)
	bidRepo := postgres.NewBidRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	itemRepo := postgres.NewItemRepository(log, postgresDB)
	outboxRepo := postgres.NewAuditOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize settlement engine and round scheduler. The scheduler
	// finalizes rounds through the engine, and the engine re-arms timers
	// through the scheduler, so they are wired in two steps.
	eng := engine.NewEngine(log, &cfg.Auction, postgresDB, auctionRepo, bidRepo, walletRepo, itemRepo, outboxRepo, eventProducer)
	sched, err := scheduler.NewScheduler(log, &cfg.Scheduler, auctionRepo, eng)
	if err != nil {
		log.Error("Failed to initialize round scheduler", "error", err)
		os.Exit(1)
	}
	eng.SetScheduler(sched)

	if err := sched.Start(appCtx); err != nil {
		log.Error("Failed to start round scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize audit outbox publisher
	auditPublisher := auditor.NewAuditor(log, &cfg.Audit, outboxRepo, auditRepo)
	auditPublisher.Start()

	// Initialize services
	userService := service.NewUserService(log, postgresDB, walletRepo, bidRepo, itemRepo, outboxRepo, auditRepo)
	auctionService := service.NewAuctionService(log, eng, auctionRepo, bidRepo)

	// Initialize REST server
	server := api.NewServer(log, cfg, userService, auctionService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting new requests first
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Stop the scheduler and drain in-flight finalizations
	sched.Stop()

	// Flush the audit pipeline
	auditPublisher.Stop()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing auction event producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
