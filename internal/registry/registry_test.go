package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/store"
)

func newTestRegistry() *Registry {
	r := New(store.NewMemoryStore())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	r.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return r
}

func TestCreateMarket(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	m, err := r.CreateMarket(ctx, "alice", "gas-sep", "september gas", decimal.NewFromInt(50), 24*time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" {
		t.Error("expected generated market ID")
	}
	if !m.Expiry.Equal(m.CreatedAt.Add(24 * time.Hour)) {
		t.Errorf("expiry = %v, want created+24h", m.Expiry)
	}
	if m.Settled {
		t.Error("new market must not be settled")
	}
	if !m.Balance.IsZero() || !m.TotalLiquidity.IsZero() {
		t.Error("new market must start with zero balance and liquidity")
	}

	// Persisted in the store too.
	stored, err := r.store.GetMarket(ctx, m.ID)
	if err != nil {
		t.Fatalf("stored market: %v", err)
	}
	if !stored.Strike.Equal(decimal.NewFromInt(50)) {
		t.Errorf("stored strike = %s, want 50", stored.Strike)
	}
}

func TestCreateMarket_Validation(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	tests := []struct {
		name     string
		mname    string
		strike   decimal.Decimal
		duration time.Duration
		want     error
	}{
		{"empty name", "", decimal.NewFromInt(50), time.Hour, ErrEmptyName},
		{"zero strike", "m", decimal.Zero, time.Hour, ErrInvalidStrike},
		{"negative strike", "m", decimal.NewFromInt(-1), time.Hour, ErrInvalidStrike},
		{"zero duration", "m", decimal.NewFromInt(50), 0, ErrInvalidDuration},
		{"negative duration", "m", decimal.NewFromInt(50), -time.Hour, ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateMarket(ctx, "alice", tt.mname, "", tt.strike, tt.duration)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if r.Count() != 0 {
		t.Errorf("rejected creations must not enter the catalog, count = %d", r.Count())
	}
}

func TestIndexAssignment(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m, err := r.CreateMarket(ctx, "alice", "m", "", decimal.NewFromInt(50), time.Hour)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		// The new market always lands at count-1.
		rec, err := r.Get(r.Count() - 1)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if rec.MarketID != m.ID {
			t.Errorf("index %d holds %s, want %s", r.Count()-1, rec.MarketID, m.ID)
		}
		if rec.Index != i {
			t.Errorf("record index = %d, want %d", rec.Index, i)
		}
	}
	if r.Count() != 5 {
		t.Errorf("count = %d, want 5", r.Count())
	}
}

func TestGet_OutOfRange(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Get(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("empty catalog: got %v, want ErrIndexOutOfRange", err)
	}
	if _, err := r.Get(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("negative index: got %v, want ErrIndexOutOfRange", err)
	}
}

func TestIndicesByCreator(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	creators := []string{"alice", "bob", "alice", "carol", "alice"}
	for _, c := range creators {
		if _, err := r.CreateMarket(ctx, c, "m", "", decimal.NewFromInt(50), time.Hour); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got := r.IndicesByCreator("alice")
	want := []int{0, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("alice indices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("alice indices = %v, want %v", got, want)
			break
		}
	}
	if got := r.IndicesByCreator("nobody"); len(got) != 0 {
		t.Errorf("unknown creator should have no indices, got %v", got)
	}
}

func TestRebuild(t *testing.T) {
	st := store.NewMemoryStore()
	r1 := New(st)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	r1.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		m, err := r1.CreateMarket(ctx, "alice", "m", "", decimal.NewFromInt(50), time.Hour)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, m.ID)
	}

	// A fresh registry over the same store recovers the same ordering.
	r2 := New(st)
	if err := r2.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if r2.Count() != 3 {
		t.Fatalf("rebuilt count = %d, want 3", r2.Count())
	}
	for i, id := range ids {
		rec, err := r2.Get(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if rec.MarketID != id {
			t.Errorf("rebuilt index %d = %s, want %s", i, rec.MarketID, id)
		}
	}
}
