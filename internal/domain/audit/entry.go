// Package audit defines the append-only ledger audit trail. Every wallet
// mutation produces exactly one Entry carrying before/after snapshots of
// both balances. Entries are written for reconciliation, never consulted
// for control decisions.
package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags an audit entry with the wallet mutation it describes
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindFreeze   Kind = "freeze"
	KindUnfreeze Kind = "unfreeze"
	KindDeduct   Kind = "deduct"
	KindRefund   Kind = "refund"
	KindWin      Kind = "win"
)

// Validation errors
var (
	ErrInvalidKind       = errors.New("invalid audit entry kind")
	ErrInvalidAmount     = errors.New("audit entry amount must be positive")
	ErrMissingBidRef     = errors.New("audit entry kind requires auction and bid references")
	ErrUnexpectedBidRef  = errors.New("audit entry kind does not take auction or bid references")
	ErrSnapshotMismatch  = errors.New("audit entry snapshots do not match its kind and amount")
	ErrMissingUser       = errors.New("audit entry requires a user")
)

// Entry is one immutable audit record. AuctionID and BidID are set for the
// kinds that act on a bid's reservation and absent for bare deposits.
type Entry struct {
	ID            uuid.UUID  `json:"id" bson:"entry_id"`
	UserID        uuid.UUID  `json:"user_id" bson:"user_id"`
	AuctionID     *uuid.UUID `json:"auction_id,omitempty" bson:"auction_id,omitempty"`
	BidID         *uuid.UUID `json:"bid_id,omitempty" bson:"bid_id,omitempty"`
	Kind          Kind       `json:"kind" bson:"kind"`
	Amount        int64      `json:"amount" bson:"amount"`
	BalanceBefore int64      `json:"balance_before" bson:"balance_before"`
	BalanceAfter  int64      `json:"balance_after" bson:"balance_after"`
	FrozenBefore  int64      `json:"frozen_before" bson:"frozen_before"`
	FrozenAfter   int64      `json:"frozen_after" bson:"frozen_after"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

// NewDepositEntry records an external deposit. balanceAfter and frozenAfter
// are the wallet state after the deposit was applied.
func NewDepositEntry(userID uuid.UUID, amount, balanceAfter, frozenAfter int64) *Entry {
	return &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          KindDeposit,
		Amount:        amount,
		BalanceBefore: balanceAfter - amount,
		BalanceAfter:  balanceAfter,
		FrozenBefore:  frozenAfter,
		FrozenAfter:   frozenAfter,
		CreatedAt:     time.Now(),
	}
}

// NewFreezeEntry records a reservation: amount moved from balance to frozen
// for the given bid.
func NewFreezeEntry(userID, auctionID, bidID uuid.UUID, amount, balanceAfter, frozenAfter int64) *Entry {
	return &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		AuctionID:     &auctionID,
		BidID:         &bidID,
		Kind:          KindFreeze,
		Amount:        amount,
		BalanceBefore: balanceAfter + amount,
		BalanceAfter:  balanceAfter,
		FrozenBefore:  frozenAfter - amount,
		FrozenAfter:   frozenAfter,
		CreatedAt:     time.Now(),
	}
}

// NewRefundEntry records a reservation returned to the spendable balance
// when a losing bid is refunded.
func NewRefundEntry(userID, auctionID, bidID uuid.UUID, amount, balanceAfter, frozenAfter int64) *Entry {
	return &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		AuctionID:     &auctionID,
		BidID:         &bidID,
		Kind:          KindRefund,
		Amount:        amount,
		BalanceBefore: balanceAfter - amount,
		BalanceAfter:  balanceAfter,
		FrozenBefore:  frozenAfter + amount,
		FrozenAfter:   frozenAfter,
		CreatedAt:     time.Now(),
	}
}

// NewWinEntry records a capture: the reservation of a winning bid
// permanently deducted from frozen.
func NewWinEntry(userID, auctionID, bidID uuid.UUID, amount, balanceAfter, frozenAfter int64) *Entry {
	return &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		AuctionID:     &auctionID,
		BidID:         &bidID,
		Kind:          KindWin,
		Amount:        amount,
		BalanceBefore: balanceAfter,
		BalanceAfter:  balanceAfter,
		FrozenBefore:  frozenAfter + amount,
		FrozenAfter:   frozenAfter,
		CreatedAt:     time.Now(),
	}
}

// Validate checks the entry against its kind: reference requirements and
// the arithmetic relation between the before/after snapshots.
func (e *Entry) Validate() error {
	if e.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}

	switch e.Kind {
	case KindDeposit:
		if e.AuctionID != nil || e.BidID != nil {
			return ErrUnexpectedBidRef
		}
		if e.BalanceAfter != e.BalanceBefore+e.Amount || e.FrozenAfter != e.FrozenBefore {
			return ErrSnapshotMismatch
		}
	case KindFreeze:
		if e.AuctionID == nil || e.BidID == nil {
			return ErrMissingBidRef
		}
		if e.BalanceAfter != e.BalanceBefore-e.Amount || e.FrozenAfter != e.FrozenBefore+e.Amount {
			return ErrSnapshotMismatch
		}
	case KindUnfreeze, KindRefund:
		if e.AuctionID == nil || e.BidID == nil {
			return ErrMissingBidRef
		}
		if e.BalanceAfter != e.BalanceBefore+e.Amount || e.FrozenAfter != e.FrozenBefore-e.Amount {
			return ErrSnapshotMismatch
		}
	case KindWin:
		if e.AuctionID == nil || e.BidID == nil {
			return ErrMissingBidRef
		}
		if e.BalanceAfter != e.BalanceBefore || e.FrozenAfter != e.FrozenBefore-e.Amount {
			return ErrSnapshotMismatch
		}
	case KindDeduct:
		if e.BalanceAfter != e.BalanceBefore-e.Amount || e.FrozenAfter != e.FrozenBefore {
			return ErrSnapshotMismatch
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}

	return nil
}
