package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/multiround-auction/internal/config"
	"github.com/multiround-auction/internal/domain/auction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFinalizer records finalization calls per auction
type countingFinalizer struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
}

func newCountingFinalizer() *countingFinalizer {
	return &countingFinalizer{calls: make(map[uuid.UUID]int)}
}

func (f *countingFinalizer) FinalizeRound(ctx context.Context, auctionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[auctionID]++
	return nil
}

func (f *countingFinalizer) count(auctionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[auctionID]
}

// stubAuctionRepo serves the scheduler's reads from fixed slices
type stubAuctionRepo struct {
	auction.Repository

	mu     sync.Mutex
	active []*auction.Auction
	due    []*auction.Auction
}

func (s *stubAuctionRepo) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

func (s *stubAuctionRepo) FindDue(ctx context.Context, now time.Time) ([]*auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, nil
}

func (s *stubAuctionRepo) setDue(due []*auction.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due = due
}

func newTestScheduler(t *testing.T, repo *stubAuctionRepo, fin Finalizer) *Scheduler {
	t.Helper()
	cfg := &config.SchedulerConfig{
		PollInterval:   20 * time.Millisecond,
		WorkerPoolSize: 4,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := NewScheduler(logger, cfg, repo, fin)
	require.NoError(t, err)
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestScheduler_TimerFiresAtDeadline(t *testing.T) {
	fin := newCountingFinalizer()
	repo := &stubAuctionRepo{}
	s := newTestScheduler(t, repo, fin)
	defer s.Stop()

	auctionID := uuid.New()
	s.Schedule(auctionID, time.Now().Add(30*time.Millisecond))

	waitFor(t, time.Second, func() bool { return fin.count(auctionID) >= 1 })
}

func TestScheduler_PastDeadlineDispatchesImmediately(t *testing.T) {
	fin := newCountingFinalizer()
	repo := &stubAuctionRepo{}
	s := newTestScheduler(t, repo, fin)
	defer s.Stop()

	auctionID := uuid.New()
	s.Schedule(auctionID, time.Now().Add(-time.Second))

	waitFor(t, time.Second, func() bool { return fin.count(auctionID) >= 1 })
}

func TestScheduler_RearmReplacesTimer(t *testing.T) {
	fin := newCountingFinalizer()
	repo := &stubAuctionRepo{}
	s := newTestScheduler(t, repo, fin)
	defer s.Stop()

	auctionID := uuid.New()
	s.Schedule(auctionID, time.Now().Add(40*time.Millisecond))
	s.Schedule(auctionID, time.Now().Add(120*time.Millisecond))

	// The first deadline passes without a fire; only the re-armed one counts.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, fin.count(auctionID))

	waitFor(t, time.Second, func() bool { return fin.count(auctionID) == 1 })
}

func TestScheduler_StopCancelsTimers(t *testing.T) {
	fin := newCountingFinalizer()
	repo := &stubAuctionRepo{}
	s := newTestScheduler(t, repo, fin)

	auctionID := uuid.New()
	s.Schedule(auctionID, time.Now().Add(50*time.Millisecond))
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, fin.count(auctionID))
}

func TestScheduler_StartRecoversActiveAuctions(t *testing.T) {
	fin := newCountingFinalizer()
	overdue := &auction.Auction{ID: uuid.New(), Status: auction.StatusActive, RoundEndsAt: time.Now().Add(-time.Minute)}
	upcoming := &auction.Auction{ID: uuid.New(), Status: auction.StatusActive, RoundEndsAt: time.Now().Add(time.Hour)}
	repo := &stubAuctionRepo{active: []*auction.Auction{overdue, upcoming}}

	s := newTestScheduler(t, repo, fin)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// The overdue auction dispatches right away; the upcoming one just
	// gets a timer.
	waitFor(t, time.Second, func() bool { return fin.count(overdue.ID) >= 1 })
	assert.Equal(t, 0, fin.count(upcoming.ID))
}

func TestScheduler_SweepCatchesDueAuctions(t *testing.T) {
	fin := newCountingFinalizer()
	repo := &stubAuctionRepo{}
	s := newTestScheduler(t, repo, fin)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// No timer was ever armed for this auction, as after a restart.
	due := &auction.Auction{ID: uuid.New(), Status: auction.StatusActive, RoundEndsAt: time.Now().Add(-time.Minute)}
	repo.setDue([]*auction.Auction{due})

	waitFor(t, time.Second, func() bool { return fin.count(due.ID) >= 1 })
}
