package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")

	ErrSelfBid              = errors.New("sellers cannot bid on their own sim")
	ErrInvalidBidAmount     = errors.New("bid amount must be a positive integer")
	ErrNotAuction           = errors.New("sim is not sold by auction")
	ErrAuctionDetailMissing = errors.New("auction sim has no auction detail")
	ErrAuctionEnded         = errors.New("auction has ended")
	ErrAuctionNotEnded      = errors.New("auction has not ended yet")
	ErrBidTooLow            = errors.New("bid must be higher than the current bid")
	ErrAlreadySold          = errors.New("sim already sold")

	ErrNotWinner             = errors.New("only the highest bidder can settle the auction")
	ErrSettlementConflict    = errors.New("auction settlement belongs to another user")
	ErrSettlementNotStarted  = errors.New("auction settlement has not started")
	ErrDeliveryNotRequired   = errors.New("active lines need no delivery")
	ErrInvalidDeliveryMethod = errors.New("unknown delivery method")

	ErrInvalidRole    = errors.New("role must be buyer or seller")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrUnknownGateway = errors.New("unknown payment gateway")
)

// InsufficientBalanceError reports how much more available balance a hold needs.
type InsufficientBalanceError struct {
	Required int64
	Current  int64
}

func (e *InsufficientBalanceError) Shortfall() int64 {
	if e.Required <= e.Current {
		return 0
	}
	return e.Required - e.Current
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d, shortfall %d", e.Required, e.Current, e.Shortfall())
}

// StepError names the settlement step that failed. Steps that finished
// before it stay recorded and are skipped on the next attempt.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return "settlement step " + e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }
