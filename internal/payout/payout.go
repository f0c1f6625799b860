// Package payout implements the leveraged cash-settlement payout formula
// for fixed-strike gas futures.
//
// The payout is a pure function of the frozen settlement price and the
// position parameters:
//
//	delta  = settlement − strike
//	pnl    = delta × quantity          (long)
//	       = −delta × quantity         (short)
//	payout = collateral + pnl × leverage, floored at zero
//
// Maximum loss is bounded by posted collateral; the design deliberately
// does not support debt beyond collateral, so the floor is a clamp, not an
// error. All monetary values use shopspring/decimal — never float64 for
// money.
package payout

import (
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

// PnL computes the signed leveraged profit or loss for a position at the
// given settlement price. Long gains when settlement exceeds strike; short
// is the exact negative for identical quantity and leverage.
func PnL(settlement, strike decimal.Decimal, dir model.Direction, quantity decimal.Decimal, leverage int64) decimal.Decimal {
	delta := settlement.Sub(strike)
	if dir == model.DirectionShort {
		delta = delta.Neg()
	}
	return delta.Mul(quantity).Mul(decimal.NewFromInt(leverage))
}

// Compute returns the amount owed to a position at the given settlement
// price: collateral plus leveraged P&L, floored at zero. A nil,
// zero-quantity, or already-claimed position is owed nothing. Callers must
// only invoke this once the market is settled; the settlement price is
// meaningless before that.
func Compute(settlement, strike decimal.Decimal, pos *model.Position) decimal.Decimal {
	if pos == nil || pos.Claimed || pos.Quantity.IsZero() {
		return decimal.Zero
	}

	total := pos.Collateral.Add(PnL(settlement, strike, pos.Direction, pos.Quantity, pos.Leverage))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
