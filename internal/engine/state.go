package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/multiround-auction/internal/domain/auction"
)

// LeaderboardEntry is one ranked row of an auction's active bids. Rank is
// 1-based; IsWinning marks the rows that would take an item if the round
// were finalized right now.
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	BidID     uuid.UUID `json:"bid_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
	Round     int       `json:"round"`
	IsWinning bool      `json:"is_winning"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AuctionState is the live view of an auction round: inventory progress,
// the ranked leaderboard, and the amount currently needed to win an item.
type AuctionState struct {
	Auction        *auction.Auction    `json:"auction"`
	CurrentRound   int                 `json:"current_round"`
	TotalRounds    int                 `json:"total_rounds"`
	ItemsThisRound int                 `json:"items_this_round"`
	RemainingItems int                 `json:"remaining_items"`
	MinWinningBid  int64               `json:"min_winning_bid"`
	EndsAt         time.Time           `json:"ends_at"`
	TimeLeft       time.Duration       `json:"time_left"`
	TimeLeftMs     int64               `json:"time_left_ms"`
	Leaderboard    []*LeaderboardEntry `json:"leaderboard"`
}
