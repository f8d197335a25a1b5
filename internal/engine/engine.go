// Package engine implements round settlement for multi-round, multi-unit
// auctions. The engine is the sole writer of bid amounts and statuses,
// auction round state, and wallet freeze/release/capture transitions; the
// HTTP layer and the scheduler only call into it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/multiround-auction/internal/config"
	"github.com/multiround-auction/internal/domain/audit"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/multiround-auction/internal/domain/bid"
	"github.com/multiround-auction/internal/domain/item"
	"github.com/multiround-auction/internal/domain/wallet"
	"github.com/multiround-auction/internal/platform/messaging/producers"
	"github.com/multiround-auction/internal/platform/persistence"
)

// Rescheduler re-arms the finalization timer for an auction. Implemented by
// the round scheduler; the engine calls it after every deadline change.
type Rescheduler interface {
	Schedule(auctionID uuid.UUID, endsAt time.Time)
}

// Engine coordinates bidding and round settlement
type Engine struct {
	logger   *slog.Logger
	cfg      *config.AuctionConfig
	db       persistence.TxRunner
	auctions auction.Repository
	bids     bid.Repository
	wallets  wallet.Repository
	items    item.Repository
	outbox   audit.OutboxRepository
	events   producers.EventPublisher
	sched    Rescheduler
	now      func() time.Time
}

// NewEngine creates a settlement engine. The scheduler is attached later
// via SetScheduler because it needs the engine as its finalizer.
func NewEngine(
	logger *slog.Logger,
	cfg *config.AuctionConfig,
	db persistence.TxRunner,
	auctions auction.Repository,
	bids bid.Repository,
	wallets wallet.Repository,
	items item.Repository,
	outbox audit.OutboxRepository,
	events producers.EventPublisher,
) *Engine {
	return &Engine{
		logger:   logger,
		cfg:      cfg,
		db:       db,
		auctions: auctions,
		bids:     bids,
		wallets:  wallets,
		items:    items,
		outbox:   outbox,
		events:   events,
		now:      time.Now,
	}
}

// SetScheduler attaches the round scheduler. Must be called before the
// engine starts serving bids.
func (e *Engine) SetScheduler(s Rescheduler) {
	e.sched = s
}

// CreateAuctionParams are the caller-supplied fields of a new auction
type CreateAuctionParams struct {
	Title             string
	Description       string
	ImageURL          string
	TotalItems        int
	ItemsPerRound     int
	MinBid            int64
	AntiSnipingWindow time.Duration
}

// CreateAuction validates the parameters and stores a pending auction.
// A zero anti-sniping window takes the configured default.
func (e *Engine) CreateAuction(ctx context.Context, params CreateAuctionParams) (*auction.Auction, error) {
	window := params.AntiSnipingWindow
	if window == 0 {
		window = e.cfg.AntiSnipingWindow
	}

	a, err := auction.NewAuction(params.Title, params.Description, params.ImageURL,
		params.TotalItems, params.ItemsPerRound, params.MinBid, window)
	if err != nil {
		return nil, err
	}

	if err := e.auctions.Create(ctx, a); err != nil {
		return nil, err
	}

	e.logger.Info("Auction created",
		"auction_id", a.ID.String(),
		"total_items", a.TotalItems,
		"items_per_round", a.ItemsPerRound,
	)
	return a, nil
}

// StartAuction transitions a pending auction to active, sets the first
// round deadline, and arms the finalization timer.
func (e *Engine) StartAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	endsAt := e.now().Add(e.cfg.RoundDuration)

	if err := e.auctions.Start(ctx, auctionID, endsAt); err != nil {
		return nil, err
	}

	if e.sched != nil {
		e.sched.Schedule(auctionID, endsAt)
	}

	a, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Auction started",
		"auction_id", auctionID.String(),
		"round_ends_at", endsAt,
	)
	return a, nil
}

// PlaceBid places a new bid or raises the caller's standing bid. Funds are
// reserved atomically with the bid write: a new bid freezes its full
// amount, a raise freezes only the increase. A bid inside the anti-sniping
// window pushes the round deadline out to now plus the window.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, userID uuid.UUID, amount int64) (*bid.Bid, error) {
	a, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusActive {
		return nil, ErrAuctionNotActive
	}

	now := e.now()
	if !now.Before(a.RoundEndsAt) {
		return nil, ErrRoundEnded
	}

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	existing, err := e.bids.GetActiveByUser(ctx, auctionID, userID)
	if err != nil {
		return nil, err
	}

	var placed *bid.Bid
	if existing != nil {
		if amount <= existing.Amount {
			return nil, ErrMustExceedCurrent
		}
		placed, err = e.raiseBid(ctx, a, existing, amount)
	} else {
		if amount < a.MinBid {
			return nil, ErrBelowMinimum
		}
		placed, err = e.createBid(ctx, a, userID, amount)
	}
	if err != nil {
		return nil, err
	}

	e.maybeExtendRound(ctx, a, now)

	e.publish(ctx, &producers.AuctionEvent{
		Type:      producers.EventBidPlaced,
		AuctionID: a.ID,
		UserID:    &userID,
		Round:     a.CurrentRound,
		Amount:    amount,
	})

	return placed, nil
}

// createBid inserts a first bid for the user, reserving its full amount.
// The reservation, the bid row, and the freeze audit record commit in one
// transaction.
func (e *Engine) createBid(ctx context.Context, a *auction.Auction, userID uuid.UUID, amount int64) (*bid.Bid, error) {
	b := bid.New(a.ID, userID, amount, a.CurrentRound)

	err := e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		snap, err := e.wallets.WithTx(tx).Reserve(ctx, userID, amount)
		if err != nil {
			return err
		}
		if err := e.bids.WithTx(tx).Create(ctx, b); err != nil {
			return err
		}
		return e.stageAudit(ctx, tx, audit.NewFreezeEntry(userID, a.ID, b.ID, amount, snap.Balance, snap.Frozen))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Bid placed",
		"auction_id", a.ID.String(),
		"user_id", userID.String(),
		"bid_id", b.ID.String(),
		"amount", amount,
		"round", b.Round,
	)
	return b, nil
}

// raiseBid increases the user's standing bid in place, reserving only the
// difference. The amount update is conditional on the previously observed
// amount, so two raises racing on the same bid cannot both apply; the
// loser's reservation rolls back with the transaction.
func (e *Engine) raiseBid(ctx context.Context, a *auction.Auction, existing *bid.Bid, amount int64) (*bid.Bid, error) {
	delta := amount - existing.Amount

	err := e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		snap, err := e.wallets.WithTx(tx).Reserve(ctx, existing.UserID, delta)
		if err != nil {
			return err
		}
		if err := e.bids.WithTx(tx).Raise(ctx, existing.ID, existing.Amount, amount); err != nil {
			return err
		}
		return e.stageAudit(ctx, tx, audit.NewFreezeEntry(existing.UserID, a.ID, existing.ID, delta, snap.Balance, snap.Frozen))
	})
	if err != nil {
		return nil, err
	}

	raised := *existing
	raised.Amount = amount
	raised.UpdatedAt = e.now()

	e.logger.Info("Bid raised",
		"auction_id", a.ID.String(),
		"user_id", existing.UserID.String(),
		"bid_id", existing.ID.String(),
		"amount", amount,
		"delta", delta,
	)
	return &raised, nil
}

// maybeExtendRound applies anti-sniping: a bid accepted with less than the
// window remaining resets the deadline to now plus the window. The stored
// deadline never moves backwards, so a concurrent later extension wins.
func (e *Engine) maybeExtendRound(ctx context.Context, a *auction.Auction, now time.Time) {
	timeLeft := a.RoundEndsAt.Sub(now)
	if timeLeft <= 0 || timeLeft >= a.AntiSnipingWindow {
		return
	}

	endsAt := now.Add(a.AntiSnipingWindow)
	if err := e.auctions.ExtendDeadline(ctx, a.ID, endsAt); err != nil {
		e.logger.Error("Failed to extend round deadline",
			"auction_id", a.ID.String(),
			"error", err,
		)
		return
	}

	if e.sched != nil {
		e.sched.Schedule(a.ID, endsAt)
	}

	e.logger.Info("Round deadline extended",
		"auction_id", a.ID.String(),
		"round", a.CurrentRound,
		"ends_at", endsAt,
	)
	e.publish(ctx, &producers.AuctionEvent{
		Type:        producers.EventRoundExtended,
		AuctionID:   a.ID,
		Round:       a.CurrentRound,
		RoundEndsAt: &endsAt,
	})
}

// FinalizeRound settles the current round of an auction: winners capture
// their reservations and receive items, losers carry into the next round or
// are refunded when the auction ends. Concurrent calls are serialized by
// the auction's finalizing flag; a call that cannot acquire it is a no-op.
func (e *Engine) FinalizeRound(ctx context.Context, auctionID uuid.UUID) error {
	a, err := e.auctions.BeginFinalize(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrFinalizeUnavailable) {
			e.logger.Debug("Finalization skipped", "auction_id", auctionID.String())
			return nil
		}
		return err
	}

	settled := false
	defer func() {
		if settled {
			return
		}
		if err := e.auctions.EndFinalize(ctx, a.ID); err != nil {
			e.logger.Error("Failed to release finalizing flag",
				"auction_id", a.ID.String(),
				"error", err,
			)
		}
	}()

	now := e.now()
	if now.Before(a.RoundEndsAt) {
		// The deadline moved after this finalization was dispatched. The
		// timer armed for the new deadline will settle the round.
		e.logger.Debug("Finalization arrived before the round deadline",
			"auction_id", a.ID.String(),
			"round_ends_at", a.RoundEndsAt,
		)
		return nil
	}

	ranked, err := e.bids.ListActive(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("failed to snapshot active bids: %w", err)
	}

	itemsThisRound := a.ItemsForRound(a.CurrentRound)
	winnerCount := itemsThisRound
	if winnerCount > len(ranked) {
		winnerCount = len(ranked)
	}
	winners := ranked[:winnerCount]
	losers := ranked[winnerCount:]

	e.logger.Info("Finalizing round",
		"auction_id", a.ID.String(),
		"round", a.CurrentRound,
		"active_bids", len(ranked),
		"winners", len(winners),
	)

	itemNumber := a.FirstItemNumber(a.CurrentRound)
	for _, wb := range winners {
		if err := e.settleWinner(ctx, a, wb, itemNumber); err != nil {
			// A failed capture means wallet state diverged from the bid
			// ledger. Record it and keep settling; the item number stays
			// consumed so later assignments keep their positions.
			e.logger.Error("Consistency violation: failed to settle winning bid",
				"auction_id", a.ID.String(),
				"bid_id", wb.ID.String(),
				"user_id", wb.UserID.String(),
				"amount", wb.Amount,
				"item_number", itemNumber,
				"error", err,
			)
		}
		itemNumber++
	}

	remainingAfter := a.RemainingAtRound(a.CurrentRound) - len(winners)
	if remainingAfter <= 0 || len(losers) == 0 {
		return e.completeAuction(ctx, a, losers, &settled)
	}
	return e.advanceRound(ctx, a, losers, now, &settled)
}

// settleWinner captures the winner's reservation, records the won item,
// marks the bid won, and stages the win audit entry in one transaction.
func (e *Engine) settleWinner(ctx context.Context, a *auction.Auction, wb *bid.Bid, itemNumber int) error {
	return e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		snap, err := e.wallets.WithTx(tx).Capture(ctx, wb.UserID, wb.Amount)
		if err != nil {
			return err
		}
		if err := e.items.WithTx(tx).Create(ctx, item.New(a.ID, wb.UserID, wb.ID, itemNumber, wb.Amount)); err != nil {
			return err
		}
		if err := e.bids.WithTx(tx).MarkWon(ctx, wb.ID, itemNumber); err != nil {
			return err
		}
		return e.stageAudit(ctx, tx, audit.NewWinEntry(wb.UserID, a.ID, wb.ID, wb.Amount, snap.Balance, snap.Frozen))
	})
}

// refundLoser returns the loser's reservation to their spendable balance
// and marks the bid refunded, staging the refund audit entry alongside.
func (e *Engine) refundLoser(ctx context.Context, a *auction.Auction, lb *bid.Bid) error {
	return e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		snap, err := e.wallets.WithTx(tx).Release(ctx, lb.UserID, lb.Amount)
		if err != nil {
			return err
		}
		if err := e.bids.WithTx(tx).MarkRefunded(ctx, lb.ID); err != nil {
			return err
		}
		return e.stageAudit(ctx, tx, audit.NewRefundEntry(lb.UserID, a.ID, lb.ID, lb.Amount, snap.Balance, snap.Frozen))
	})
}

// completeAuction refunds the remaining losers and closes the auction.
// Called with inventory exhausted or with no bids left to carry forward.
func (e *Engine) completeAuction(ctx context.Context, a *auction.Auction, losers []*bid.Bid, settled *bool) error {
	for _, lb := range losers {
		if err := e.refundLoser(ctx, a, lb); err != nil {
			e.logger.Error("Consistency violation: failed to refund losing bid",
				"auction_id", a.ID.String(),
				"bid_id", lb.ID.String(),
				"user_id", lb.UserID.String(),
				"amount", lb.Amount,
				"error", err,
			)
		}
	}

	if err := e.auctions.Complete(ctx, a.ID); err != nil {
		return fmt.Errorf("failed to complete auction: %w", err)
	}
	*settled = true

	e.logger.Info("Auction completed",
		"auction_id", a.ID.String(),
		"final_round", a.CurrentRound,
	)
	e.publish(ctx, &producers.AuctionEvent{
		Type:      producers.EventAuctionCompleted,
		AuctionID: a.ID,
		Round:     a.CurrentRound,
	})
	return nil
}

// advanceRound carries the losing bids into the next round with their
// reservations intact, opens the round with a fresh deadline, and re-arms
// the scheduler.
func (e *Engine) advanceRound(ctx context.Context, a *auction.Auction, losers []*bid.Bid, now time.Time, settled *bool) error {
	nextRound := a.CurrentRound + 1
	for _, lb := range losers {
		if err := e.bids.CarryForward(ctx, lb.ID, nextRound); err != nil {
			e.logger.Error("Failed to carry bid into next round",
				"auction_id", a.ID.String(),
				"bid_id", lb.ID.String(),
				"round", nextRound,
				"error", err,
			)
		}
	}

	endsAt := now.Add(e.cfg.RoundDuration)
	if err := e.auctions.AdvanceRound(ctx, a.ID, endsAt); err != nil {
		return fmt.Errorf("failed to advance auction round: %w", err)
	}
	*settled = true

	if e.sched != nil {
		e.sched.Schedule(a.ID, endsAt)
	}

	e.logger.Info("Round finalized",
		"auction_id", a.ID.String(),
		"round", a.CurrentRound,
		"next_round", nextRound,
		"carried_bids", len(losers),
		"round_ends_at", endsAt,
	)
	e.publish(ctx, &producers.AuctionEvent{
		Type:        producers.EventRoundFinalized,
		AuctionID:   a.ID,
		Round:       a.CurrentRound,
		ItemsWon:    a.ItemsForRound(a.CurrentRound),
		RoundEndsAt: &endsAt,
	})
	return nil
}

// GetAuctionState returns the live round view: ranked leaderboard, winning
// marks, inventory progress, and the amount a new bid currently needs to
// take an item.
func (e *Engine) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionState, error) {
	a, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	ranked, err := e.bids.ListActive(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	itemsThisRound := a.ItemsForRound(a.CurrentRound)
	leaderboard := make([]*LeaderboardEntry, 0, len(ranked))
	for i, b := range ranked {
		leaderboard = append(leaderboard, &LeaderboardEntry{
			Rank:      i + 1,
			BidID:     b.ID,
			UserID:    b.UserID,
			Amount:    b.Amount,
			Round:     b.Round,
			IsWinning: i < itemsThisRound,
			PlacedAt:  b.CreatedAt,
		})
	}

	minWinningBid := a.MinBid
	if itemsThisRound > 0 && len(ranked) >= itemsThisRound {
		minWinningBid = ranked[itemsThisRound-1].Amount
	}

	timeLeft := a.TimeLeft(e.now())
	return &AuctionState{
		Auction:        a,
		CurrentRound:   a.CurrentRound,
		TotalRounds:    a.TotalRounds(),
		ItemsThisRound: itemsThisRound,
		RemainingItems: a.RemainingAtRound(a.CurrentRound),
		MinWinningBid:  minWinningBid,
		EndsAt:         a.RoundEndsAt,
		TimeLeft:       timeLeft,
		TimeLeftMs:     timeLeft.Milliseconds(),
		Leaderboard:    leaderboard,
	}, nil
}

// stageAudit validates the entry and stages it in the outbox within the
// caller's transaction.
func (e *Engine) stageAudit(ctx context.Context, tx pgx.Tx, entry *audit.Entry) error {
	msg, err := audit.NewMessage(entry)
	if err != nil {
		return err
	}
	return e.outbox.WithTx(tx).Create(ctx, msg)
}

// publish emits an auction event if a producer is attached. Events are
// advisory; a publish failure is logged and never surfaces to callers.
func (e *Engine) publish(ctx context.Context, event *producers.AuctionEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error("Failed to publish auction event",
			"type", string(event.Type),
			"auction_id", event.AuctionID.String(),
			"error", err,
		)
	}
}
