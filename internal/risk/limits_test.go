package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckLimit_WithinLimits(t *testing.T) {
	limiter := NewLimiter(d(10000), d(50000))

	err := limiter.CheckLimit(d(100), nil)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckLimit_PositionExceeded(t *testing.T) {
	limiter := NewLimiter(d(10000), d(50000))

	// collateral 2000 × leverage 10 = 20000 > 10000.
	err := limiter.CheckLimit(d(20000), nil)
	if err != ErrPositionLimitExceeded {
		t.Errorf("expected ErrPositionLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_AccountAggregateExceeded(t *testing.T) {
	limiter := NewLimiter(d(10000), d(20000))

	existing := map[string]decimal.Decimal{
		"market-a": d(8000),
		"market-b": d(8000),
	}

	// 8000 + 8000 + 5000 = 21000 > 20000.
	err := limiter.CheckLimit(d(5000), existing)
	if err != ErrAccountLimitExceeded {
		t.Errorf("expected ErrAccountLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_AccountAggregateAtLimit(t *testing.T) {
	limiter := NewLimiter(d(10000), d(20000))

	existing := map[string]decimal.Decimal{
		"market-a": d(8000),
		"market-b": d(8000),
	}

	// Exactly at the cap is allowed.
	err := limiter.CheckLimit(d(4000), existing)
	if err != nil {
		t.Errorf("aggregate exactly at limit should pass, got %v", err)
	}
}

func TestCheckLimit_ZeroCapsDisableChecks(t *testing.T) {
	limiter := NewLimiter(decimal.Zero, decimal.Zero)

	existing := map[string]decimal.Decimal{
		"market-a": d(1e12),
	}

	err := limiter.CheckLimit(d(1e12), existing)
	if err != nil {
		t.Errorf("zero caps should disable limits, got %v", err)
	}
}

func TestCheckLimit_NilExistingTreatedAsEmpty(t *testing.T) {
	limiter := NewLimiter(d(10000), d(20000))

	err := limiter.CheckLimit(d(10000), nil)
	if err != nil {
		t.Errorf("nil existing notionals should be treated as empty, got %v", err)
	}
}
