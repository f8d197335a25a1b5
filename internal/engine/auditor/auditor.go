// Package auditor drains the audit outbox into the durable audit trail.
// Wallet mutations stage their audit entries in Postgres inside the same
// transaction; this poller delivers them to MongoDB at least once and marks
// them published.
package auditor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/multiround-auction/internal/config"
	"github.com/multiround-auction/internal/domain/audit"
)

// Auditor polls the outbox and publishes staged audit entries
type Auditor struct {
	logger  *slog.Logger
	cfg     *config.AuditConfig
	outbox  audit.OutboxRepository
	entries audit.Repository

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAuditor creates a stopped audit publisher
func NewAuditor(logger *slog.Logger, cfg *config.AuditConfig, outbox audit.OutboxRepository, entries audit.Repository) *Auditor {
	return &Auditor{
		logger:  logger,
		cfg:     cfg,
		outbox:  outbox,
		entries: entries,
	}
}

// Start launches the polling loop
func (a *Auditor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.run(ctx)
	a.logger.Info("Audit publisher started",
		"polling_interval", a.cfg.PollingInterval,
		"batch_size", a.cfg.BatchSize,
	)
}

// Stop cancels the polling loop and waits for the in-flight batch
func (a *Auditor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.logger.Info("Audit publisher stopped")
}

func (a *Auditor) run(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.processBatch(ctx)
		}
	}
}

// processBatch delivers one batch of pending outbox messages
func (a *Auditor) processBatch(ctx context.Context) {
	messages, err := a.outbox.GetPending(ctx, a.cfg.BatchSize)
	if err != nil {
		a.logger.Error("Failed to fetch pending audit messages", "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	a.logger.Debug("Publishing audit batch", "count", len(messages))
	for _, msg := range messages {
		if ctx.Err() != nil {
			return
		}
		a.publish(ctx, msg)
	}
}

// publish writes one staged entry to the audit trail. Delivery is at least
// once: a duplicate on retry is treated as already published.
func (a *Auditor) publish(ctx context.Context, msg *audit.Message) {
	entry, err := msg.DecodeEntry()
	if err != nil {
		// The payload is unreadable and will never deliver.
		a.logger.Error("Failed to decode audit outbox payload",
			"outbox_id", msg.ID,
			"entry_id", msg.EntryID.String(),
			"error", err,
		)
		if err := a.outbox.MarkFailed(ctx, msg.ID); err != nil {
			a.logger.Error("Failed to mark audit message failed", "outbox_id", msg.ID, "error", err)
		}
		return
	}

	err = a.entries.Create(ctx, entry)
	if err != nil && !errors.Is(err, audit.ErrDuplicateEntry{}) {
		a.logger.Warn("Failed to publish audit entry",
			"outbox_id", msg.ID,
			"entry_id", msg.EntryID.String(),
			"attempts", msg.Attempts+1,
			"error", err,
		)
		if incErr := a.outbox.IncrementAttempts(ctx, msg.ID); incErr != nil {
			a.logger.Error("Failed to record audit publish attempt", "outbox_id", msg.ID, "error", incErr)
			return
		}
		if msg.Attempts+1 >= a.cfg.MaxRetryAttempts {
			a.logger.Error("Audit message exhausted retries",
				"outbox_id", msg.ID,
				"entry_id", msg.EntryID.String(),
			)
			if err := a.outbox.MarkFailed(ctx, msg.ID); err != nil {
				a.logger.Error("Failed to mark audit message failed", "outbox_id", msg.ID, "error", err)
			}
		}
		return
	}

	if err := a.outbox.MarkPublished(ctx, msg.ID); err != nil {
		// The entry landed; the duplicate check absorbs the redelivery.
		a.logger.Error("Failed to mark audit message published", "outbox_id", msg.ID, "error", err)
	}
}
