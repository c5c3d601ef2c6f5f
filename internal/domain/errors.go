package domain

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// Offer errors
	ErrInvalidBundle     = errors.New("invalid bundle")
	ErrInvalidItem       = errors.New("invalid item")
	ErrSelfTrade         = errors.New("cannot trade with yourself")
	ErrInvalidAccountID  = errors.New("invalid account id")
	ErrInvalidReference  = errors.New("invalid channel or message id")
	ErrWrongParticipant  = errors.New("caller is not a participant of this trade")
	ErrInvalidState      = errors.New("operation not allowed in current trade state")
	ErrTradeNotFound     = errors.New("trade not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Settlement errors
	ErrConflict           = errors.New("settlement conflict, please try again")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Shortfall names the first item an account cannot cover.
type Shortfall struct {
	Item Item
	Need int64
	Have int64
}

// Missing returns how many units are lacking.
func (s Shortfall) Missing() int64 {
	return s.Need - s.Have
}

// InsufficientFundsError reports which side of a trade lacks which item.
// It unwraps to ErrInsufficientFunds.
type InsufficientFundsError struct {
	Side    Side
	Account snowflake.ID
	Shortfall
}

func (e *InsufficientFundsError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("insufficient funds: account %s needs %s but has %d",
			e.Account, e.Item, e.Have)
	}

	return fmt.Sprintf("insufficient funds: %s %s offers %s but has %d",
		e.Side, e.Account, e.Item, e.Have)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
