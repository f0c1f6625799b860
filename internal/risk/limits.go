// Package risk enforces notional exposure limits at position open.
//
// Settlement is fully collateralized per position, but a single account
// piling leveraged exposure into many markets still concentrates claim
// pressure on the pools backing them. The limiter caps leveraged notional
// (collateral × leverage) both per position and in aggregate per account.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPositionLimitExceeded is returned when a single position's
	// notional exceeds the per-position maximum.
	ErrPositionLimitExceeded = errors.New("risk: position notional limit exceeded")

	// ErrAccountLimitExceeded is returned when the account's aggregate
	// notional across all markets would exceed the account maximum.
	ErrAccountLimitExceeded = errors.New("risk: aggregate account notional limit exceeded")
)

// Limiter enforces notional limits. A zero cap disables that check.
type Limiter struct {
	// MaxPositionNotional is the maximum collateral × leverage for any
	// single position.
	MaxPositionNotional decimal.Decimal

	// MaxAccountNotional is the maximum aggregate notional across all of
	// an account's open positions.
	MaxAccountNotional decimal.Decimal
}

// NewLimiter creates a limiter with the given caps.
func NewLimiter(maxPosition, maxAccount decimal.Decimal) *Limiter {
	return &Limiter{
		MaxPositionNotional: maxPosition,
		MaxAccountNotional:  maxAccount,
	}
}

// CheckLimit validates a prospective open.
//
// Parameters:
//   - notional: the new position's collateral × leverage
//   - existingNotionals: map of market ID → notional for the account's
//     currently active positions in other markets
//
// Returns nil if within limits, or an error describing the violation.
func (l *Limiter) CheckLimit(notional decimal.Decimal, existingNotionals map[string]decimal.Decimal) error {
	if l.MaxPositionNotional.IsPositive() && notional.GreaterThan(l.MaxPositionNotional) {
		return ErrPositionLimitExceeded
	}

	if l.MaxAccountNotional.IsPositive() {
		total := notional
		for _, n := range existingNotionals {
			total = total.Add(n)
		}
		if total.GreaterThan(l.MaxAccountNotional) {
			return ErrAccountLimitExceeded
		}
	}

	return nil
}
