package engine

import "errors"

// Bid admission errors, in the order PlaceBid checks them. Handlers map
// these to client-facing responses; anything else is an internal failure.
var (
	// ErrAuctionNotActive rejects bids on pending or completed auctions.
	ErrAuctionNotActive = errors.New("auction is not active")

	// ErrRoundEnded rejects bids that arrive at or after the round
	// deadline, even if finalization has not run yet.
	ErrRoundEnded = errors.New("bidding round has ended")

	// ErrInvalidAmount rejects non-positive bid amounts.
	ErrInvalidAmount = errors.New("bid amount must be positive")

	// ErrBelowMinimum rejects first bids under the auction's minimum.
	ErrBelowMinimum = errors.New("bid amount is below the auction minimum")

	// ErrMustExceedCurrent rejects raises that do not strictly exceed the
	// user's standing bid.
	ErrMustExceedCurrent = errors.New("raise must exceed the current bid")
)
