package payout

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func pos(dir model.Direction, qty, collateral float64, leverage int64) *model.Position {
	return &model.Position{
		Account:    "acct",
		Direction:  dir,
		Quantity:   d(qty),
		Collateral: d(collateral),
		Leverage:   leverage,
		Active:     true,
	}
}

// --- Worked examples ---

func TestCompute_LongWin(t *testing.T) {
	// strike=50, settlement=60, qty=10, leverage=1, collateral=1:
	// payout = 1 + (60-50)*10*1 = 101.
	got := Compute(d(60), d(50), pos(model.DirectionLong, 10, 1, 1))
	if !got.Equal(d(101)) {
		t.Errorf("expected payout 101, got %s", got)
	}
}

func TestCompute_ShortLossFlooredAtZero(t *testing.T) {
	// Same market, short side: 1 + (50-60)*10*1 = -99 → floored to 0.
	got := Compute(d(60), d(50), pos(model.DirectionShort, 10, 1, 1))
	if !got.Equal(decimal.Zero) {
		t.Errorf("expected payout 0, got %s", got)
	}
}

func TestCompute_BreakEvenReturnsCollateral(t *testing.T) {
	// settlement == strike → zero P&L → payout = collateral, both sides.
	for _, dir := range []model.Direction{model.DirectionLong, model.DirectionShort} {
		got := Compute(d(50), d(50), pos(dir, 10, 7, 3))
		if !got.Equal(d(7)) {
			t.Errorf("%s: expected payout 7 at break-even, got %s", dir, got)
		}
	}
}

func TestCompute_LeverageMultipliesPnL(t *testing.T) {
	// delta=2, qty=5, leverage=4, collateral=10 → 10 + 2*5*4 = 50.
	got := Compute(d(52), d(50), pos(model.DirectionLong, 5, 10, 4))
	if !got.Equal(d(50)) {
		t.Errorf("expected payout 50, got %s", got)
	}
}

// --- Properties ---

func TestCompute_NeverNegative(t *testing.T) {
	tests := []struct {
		name       string
		settlement float64
		dir        model.Direction
		leverage   int64
	}{
		{"deep long loss", 1, model.DirectionLong, 1},
		{"deep short loss", 500, model.DirectionShort, 1},
		{"leveraged long loss", 40, model.DirectionLong, 10},
		{"leveraged short loss", 60, model.DirectionShort, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(d(tt.settlement), d(50), pos(tt.dir, 10, 5, tt.leverage))
			if got.IsNegative() {
				t.Errorf("payout must not be negative, got %s", got)
			}
		})
	}
}

func TestPnL_LongMonotonicInSettlement(t *testing.T) {
	prev := PnL(d(10), d(50), model.DirectionLong, d(10), 2)
	for _, s := range []float64{20, 30, 50, 70, 90} {
		cur := PnL(d(s), d(50), model.DirectionLong, d(10), 2)
		if cur.LessThanOrEqual(prev) {
			t.Errorf("long P&L should increase with settlement: %s !> %s at %v", cur, prev, s)
		}
		prev = cur
	}
}

func TestPnL_ShortMonotonicDecreasing(t *testing.T) {
	prev := PnL(d(10), d(50), model.DirectionShort, d(10), 2)
	for _, s := range []float64{20, 30, 50, 70, 90} {
		cur := PnL(d(s), d(50), model.DirectionShort, d(10), 2)
		if cur.GreaterThanOrEqual(prev) {
			t.Errorf("short P&L should decrease with settlement: %s !< %s at %v", cur, prev, s)
		}
		prev = cur
	}
}

func TestPnL_LongShortExactNegatives(t *testing.T) {
	for _, s := range []float64{0, 25, 50, 75, 200} {
		long := PnL(d(s), d(50), model.DirectionLong, d(10), 3)
		short := PnL(d(s), d(50), model.DirectionShort, d(10), 3)
		if !long.Equal(short.Neg()) {
			t.Errorf("long and short P&L should be exact negatives: %s vs %s at %v", long, short, s)
		}
	}
}

// --- Degenerate positions ---

func TestCompute_NilPosition(t *testing.T) {
	if got := Compute(d(60), d(50), nil); !got.Equal(decimal.Zero) {
		t.Errorf("nil position should pay zero, got %s", got)
	}
}

func TestCompute_ZeroQuantity(t *testing.T) {
	p := pos(model.DirectionLong, 0, 5, 1)
	if got := Compute(d(60), d(50), p); !got.Equal(decimal.Zero) {
		t.Errorf("zero-quantity position should pay zero, got %s", got)
	}
}

func TestCompute_AlreadyClaimed(t *testing.T) {
	p := pos(model.DirectionLong, 10, 1, 1)
	p.Claimed = true
	p.Active = false
	if got := Compute(d(60), d(50), p); !got.Equal(decimal.Zero) {
		t.Errorf("claimed position should pay zero, got %s", got)
	}
}
