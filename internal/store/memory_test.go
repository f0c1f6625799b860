package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedMarket(t *testing.T, ms *MemoryStore, id string) {
	t.Helper()
	err := ms.CreateMarket(context.Background(), &model.Market{
		ID:        id,
		Strike:    d(50),
		Expiry:    time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed market: %v", err)
	}
}

func TestCreateMarket_Duplicate(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")

	err := ms.CreateMarket(context.Background(), &model.Market{ID: "m1"})
	if !errors.Is(err, ErrMarketExists) {
		t.Errorf("expected ErrMarketExists, got %v", err)
	}
}

func TestSettleMarket_WriteOnce(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	ctx := context.Background()
	at := time.Now().UTC()

	if err := ms.SettleMarket(ctx, "m1", d(62), at); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := ms.SettleMarket(ctx, "m1", d(99), at); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("second settle: expected ErrAlreadySettled, got %v", err)
	}

	m, _ := ms.GetMarket(ctx, "m1")
	if !m.SettlementPrice.Equal(d(62)) {
		t.Errorf("settlement price = %s, want first write 62", m.SettlementPrice)
	}
}

func TestAdjustMarketBalance_NegativeGuard(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	if err := ms.AdjustMarketBalance(ctx, "m1", d(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ms.AdjustMarketBalance(ctx, "m1", d(-150)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdebit: expected ErrInsufficientBalance, got %v", err)
	}

	// The failed debit left the balance untouched.
	m, _ := ms.GetMarket(ctx, "m1")
	if !m.Balance.Equal(d(100)) {
		t.Errorf("balance = %s, want 100", m.Balance)
	}
}

func TestAdjustLiquidity_Invariant(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	if err := ms.AdjustLiquidity(ctx, "m1", "lp1", d(100)); err != nil {
		t.Fatalf("add lp1: %v", err)
	}
	if err := ms.AdjustLiquidity(ctx, "m1", "lp2", d(40)); err != nil {
		t.Fatalf("add lp2: %v", err)
	}
	if err := ms.AdjustLiquidity(ctx, "m1", "lp1", d(-30)); err != nil {
		t.Fatalf("remove lp1: %v", err)
	}

	// Sum of entries always equals the market total; balance moved in
	// lockstep.
	entries, _ := ms.ListLiquidity(ctx, "m1")
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	m, _ := ms.GetMarket(ctx, "m1")
	if !sum.Equal(m.TotalLiquidity) {
		t.Errorf("entry sum %s != total %s", sum, m.TotalLiquidity)
	}
	if !m.TotalLiquidity.Equal(d(110)) || !m.Balance.Equal(d(110)) {
		t.Errorf("total = %s, balance = %s, want 110/110", m.TotalLiquidity, m.Balance)
	}
}

func TestAdjustLiquidity_OverRemoval(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	if err := ms.AdjustLiquidity(ctx, "m1", "lp1", d(50)); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := ms.AdjustLiquidity(ctx, "m1", "lp1", d(-60))
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("expected ErrInsufficientLiquidity, got %v", err)
	}

	// A rejected removal changes nothing.
	m, _ := ms.GetMarket(ctx, "m1")
	if !m.TotalLiquidity.Equal(d(50)) || !m.Balance.Equal(d(50)) {
		t.Errorf("total = %s, balance = %s, want 50/50", m.TotalLiquidity, m.Balance)
	}
}

func TestPosition_OnePerAccountAndClaimFlip(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	pos := &model.Position{
		Account:  "alice",
		MarketID: "m1",
		Quantity: d(10),
		Active:   true,
	}
	if err := ms.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ms.CreatePosition(ctx, pos); !errors.Is(err, ErrPositionExists) {
		t.Errorf("duplicate: expected ErrPositionExists, got %v", err)
	}

	if err := ms.SetPositionClaimed(ctx, "m1", "alice", true); err != nil {
		t.Fatalf("claim: %v", err)
	}
	got, _ := ms.GetPosition(ctx, "m1", "alice")
	if !got.Claimed || got.Active {
		t.Errorf("after claim: %+v", got)
	}

	// The rollback path restores active.
	if err := ms.SetPositionClaimed(ctx, "m1", "alice", false); err != nil {
		t.Fatalf("unclaim: %v", err)
	}
	got, _ = ms.GetPosition(ctx, "m1", "alice")
	if got.Claimed || !got.Active {
		t.Errorf("after rollback: %+v", got)
	}

	// Claimed positions drop out of the active roster but never the
	// position ledger.
	ms.SetPositionClaimed(ctx, "m1", "alice", true)
	active, _ := ms.ListActivePositions(ctx, "m1")
	all, _ := ms.ListPositions(ctx, "m1")
	if len(active) != 0 || len(all) != 1 {
		t.Errorf("active = %d, all = %d, want 0 and 1", len(active), len(all))
	}
}

func TestGetAccountNotionals(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	seedMarket(t, ms, "m2")
	ctx := context.Background()

	ms.CreatePosition(ctx, &model.Position{
		Account: "alice", MarketID: "m1", Quantity: d(1),
		Collateral: d(100), Leverage: 3, Active: true,
	})
	ms.CreatePosition(ctx, &model.Position{
		Account: "alice", MarketID: "m2", Quantity: d(1),
		Collateral: d(50), Leverage: 2, Active: true,
	})
	ms.SetPositionClaimed(ctx, "m2", "alice", true)

	notionals, err := ms.GetAccountNotionals(ctx, "alice")
	if err != nil {
		t.Fatalf("notionals: %v", err)
	}
	if len(notionals) != 1 {
		t.Fatalf("claimed positions must not count, got %v", notionals)
	}
	if !notionals["m1"].Equal(d(300)) {
		t.Errorf("m1 notional = %s, want 300", notionals["m1"])
	}
}

func TestCopyOnReturn(t *testing.T) {
	ms := NewMemoryStore()
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	m, _ := ms.GetMarket(ctx, "m1")
	m.Balance = d(999999)

	fresh, _ := ms.GetMarket(ctx, "m1")
	if fresh.Balance.Equal(d(999999)) {
		t.Error("mutating a returned market must not affect the store")
	}
}
