// Package scheduler triggers round finalization when deadlines pass. It
// keeps one re-armable single-shot timer per active auction and backs the
// timers with a periodic sweep over the durable deadlines, so finalization
// survives missed timers and process restarts.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/multiround-auction/internal/config"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/panjf2000/ants/v2"
)

// finalizeTimeout bounds one finalization job. Settling a round is a
// handful of row updates; anything longer means the store is in trouble.
const finalizeTimeout = 30 * time.Second

// Finalizer settles an auction's current round. Implemented by the engine;
// it must tolerate duplicate and premature calls.
type Finalizer interface {
	FinalizeRound(ctx context.Context, auctionID uuid.UUID) error
}

// Scheduler arms per-auction finalization timers and runs the safety sweep.
// Jobs execute on a bounded worker pool so a burst of simultaneous
// deadlines cannot spawn unbounded goroutines.
type Scheduler struct {
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	auctions  auction.Repository
	finalizer Finalizer
	pool      *ants.Pool
	now       func() time.Time

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a stopped scheduler with its worker pool
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, auctions auction.Repository, finalizer Finalizer) (*Scheduler, error) {
	pool, err := ants.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create finalization worker pool: %w", err)
	}

	return &Scheduler{
		logger:    logger,
		cfg:       cfg,
		auctions:  auctions,
		finalizer: finalizer,
		pool:      pool,
		now:       time.Now,
		timers:    make(map[uuid.UUID]*time.Timer),
	}, nil
}

// Start re-arms timers from the durable deadlines of active auctions and
// launches the sweep loop. In-memory timers do not survive a restart; this
// plus the sweep is the recovery path.
func (s *Scheduler) Start(ctx context.Context) error {
	active, err := s.auctions.ListByStatus(ctx, auction.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active auctions for timer recovery: %w", err)
	}
	for _, a := range active {
		s.Schedule(a.ID, a.RoundEndsAt)
	}
	s.logger.Info("Round scheduler started",
		"recovered_timers", len(active),
		"poll_interval", s.cfg.PollInterval,
	)

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.sweep(sweepCtx)
	return nil
}

// Stop cancels the sweep and all armed timers and releases the worker pool
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.pool.Release()
	s.logger.Info("Round scheduler stopped")
}

// Schedule arms or re-arms the finalization timer for an auction. An
// already-due deadline dispatches immediately. Safe to call concurrently
// with timer fires; the last caller's deadline wins.
func (s *Scheduler) Schedule(auctionID uuid.UUID, endsAt time.Time) {
	s.mu.Lock()
	if t, ok := s.timers[auctionID]; ok {
		t.Stop()
		delete(s.timers, auctionID)
	}

	delay := endsAt.Sub(s.now())
	if delay <= 0 {
		s.mu.Unlock()
		s.dispatch(auctionID)
		return
	}

	s.timers[auctionID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, auctionID)
		s.mu.Unlock()
		s.dispatch(auctionID)
	})
	s.mu.Unlock()

	s.logger.Debug("Finalization timer armed",
		"auction_id", auctionID.String(),
		"ends_at", endsAt,
	)
}

// dispatch hands a finalization job to the worker pool. Finalization is
// idempotent, so duplicate dispatches from the timer and the sweep are
// harmless.
func (s *Scheduler) dispatch(auctionID uuid.UUID) {
	err := s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()

		if err := s.finalizer.FinalizeRound(ctx, auctionID); err != nil {
			s.logger.Error("Round finalization failed",
				"auction_id", auctionID.String(),
				"error", err,
			)
		}
	})
	if err != nil {
		// The sweep redelivers the auction on its next pass.
		s.logger.Error("Failed to submit finalization job",
			"auction_id", auctionID.String(),
			"error", err,
		)
	}
}

// sweep periodically dispatches every active auction whose deadline has
// passed. It catches deadlines whose timers were lost to a restart and
// timers that failed to fire.
func (s *Scheduler) sweep(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := s.auctions.FindDue(ctx, s.now())
			if err != nil {
				s.logger.Error("Due-auction sweep failed", "error", err)
				continue
			}
			for _, a := range due {
				s.dispatch(a.ID)
			}
		}
	}
}
