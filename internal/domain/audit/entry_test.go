package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryConstructorsValidate(t *testing.T) {
	userID := uuid.New()
	auctionID := uuid.New()
	bidID := uuid.New()

	tests := []struct {
		name  string
		entry *Entry
	}{
		{"deposit", NewDepositEntry(userID, 500, 1500, 200)},
		{"freeze", NewFreezeEntry(userID, auctionID, bidID, 300, 700, 300)},
		{"refund", NewRefundEntry(userID, auctionID, bidID, 300, 1000, 0)},
		{"win", NewWinEntry(userID, auctionID, bidID, 300, 700, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.entry.Validate())
		})
	}
}

func TestEntryValidate(t *testing.T) {
	userID := uuid.New()
	auctionID := uuid.New()
	bidID := uuid.New()

	tests := []struct {
		name    string
		mutate  func(e *Entry)
		wantErr error
	}{
		{
			name:    "missing user",
			mutate:  func(e *Entry) { e.UserID = uuid.Nil },
			wantErr: ErrMissingUser,
		},
		{
			name:    "non-positive amount",
			mutate:  func(e *Entry) { e.Amount = 0 },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "freeze without bid reference",
			mutate:  func(e *Entry) { e.BidID = nil },
			wantErr: ErrMissingBidRef,
		},
		{
			name:    "freeze with inconsistent balances",
			mutate:  func(e *Entry) { e.BalanceAfter = e.BalanceAfter + 1 },
			wantErr: ErrSnapshotMismatch,
		},
		{
			name:    "freeze with inconsistent frozen",
			mutate:  func(e *Entry) { e.FrozenAfter = e.FrozenAfter - 1 },
			wantErr: ErrSnapshotMismatch,
		},
		{
			name:    "unknown kind",
			mutate:  func(e *Entry) { e.Kind = Kind("transfer") },
			wantErr: ErrInvalidKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewFreezeEntry(userID, auctionID, bidID, 300, 700, 300)
			tt.mutate(e)
			assert.ErrorIs(t, e.Validate(), tt.wantErr)
		})
	}

	t.Run("deposit rejects bid references", func(t *testing.T) {
		e := NewDepositEntry(userID, 500, 1500, 0)
		e.AuctionID = &auctionID
		assert.ErrorIs(t, e.Validate(), ErrUnexpectedBidRef)
	})

	t.Run("win must leave balance untouched", func(t *testing.T) {
		e := NewWinEntry(userID, auctionID, bidID, 300, 700, 0)
		e.BalanceAfter = 400
		assert.ErrorIs(t, e.Validate(), ErrSnapshotMismatch)
	})
}

func TestMessageRoundTrip(t *testing.T) {
	entry := NewFreezeEntry(uuid.New(), uuid.New(), uuid.New(), 300, 700, 300)

	msg, err := NewMessage(entry)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, msg.EntryID)
	assert.Equal(t, entry.UserID, msg.UserID)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.Zero(t, msg.Attempts)

	decoded, err := msg.DecodeEntry()
	require.NoError(t, err)
	assert.Equal(t, entry.ID, decoded.ID)
	assert.Equal(t, entry.Kind, decoded.Kind)
	assert.Equal(t, entry.Amount, decoded.Amount)
	assert.Equal(t, entry.AuctionID, decoded.AuctionID)
	assert.Equal(t, entry.BalanceBefore, decoded.BalanceBefore)
	assert.Equal(t, entry.FrozenAfter, decoded.FrozenAfter)
}

func TestNewMessageRejectsInvalidEntry(t *testing.T) {
	entry := NewDepositEntry(uuid.New(), 500, 1500, 0)
	entry.Amount = -1

	msg, err := NewMessage(entry)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
