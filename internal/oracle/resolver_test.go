package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// stubSource returns a fixed reading or a fixed error.
type stubSource struct {
	name    string
	reading Reading
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, _ string) (Reading, error) {
	s.calls++
	if s.err != nil {
		return Reading{}, s.err
	}
	return s.reading, nil
}

func TestResolve_PrimaryTierWins(t *testing.T) {
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	primary := &stubSource{name: "primary", reading: Reading{Price: d(4873000000), ObservedAt: observed}}
	secondary := &stubSource{name: "secondary", reading: Reading{Price: d(999), ObservedAt: observed}}

	r := NewResolver([]Tier{
		{Source: primary, Symbol: "GASPRICE", Scale: d(100000000)},
		{Source: secondary, Symbol: "GAS-ALT", Scale: d(1)},
	})

	got := r.Resolve(context.Background())
	if !got.Price.Equal(d(48.73)) {
		t.Errorf("expected scaled price 48.73, got %s", got.Price)
	}
	if !got.ObservedAt.Equal(observed) {
		t.Errorf("expected oracle observation time, got %v", got.ObservedAt)
	}
	if secondary.calls != 0 {
		t.Error("secondary tier should not be consulted when primary succeeds")
	}
}

func TestResolve_FallsThroughToSecondary(t *testing.T) {
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	primary := &stubSource{name: "primary", err: errors.New("connection refused")}
	secondary := &stubSource{name: "secondary", reading: Reading{Price: d(5200), ObservedAt: observed}}

	r := NewResolver([]Tier{
		{Source: primary, Symbol: "GASPRICE", Scale: d(100000000)},
		{Source: secondary, Symbol: "GAS-ALT", Scale: d(100)},
	})

	got := r.Resolve(context.Background())
	if !got.Price.Equal(d(52)) {
		t.Errorf("expected secondary price 52, got %s", got.Price)
	}
	if primary.calls != 1 {
		t.Error("primary tier should have been tried first")
	}
}

func TestResolve_OffsetApplied(t *testing.T) {
	src := &stubSource{name: "src", reading: Reading{Price: d(40), ObservedAt: time.Now()}}
	r := NewResolver([]Tier{{Source: src, Symbol: "GASPRICE", Scale: d(2), Offset: d(5)}})

	got := r.Resolve(context.Background())
	if !got.Price.Equal(d(25)) {
		t.Errorf("expected 40/2+5 = 25, got %s", got.Price)
	}
}

func TestResolve_NonPositivePriceAbsorbed(t *testing.T) {
	bad := &stubSource{name: "bad", reading: Reading{Price: d(0), ObservedAt: time.Now()}}
	good := &stubSource{name: "good", reading: Reading{Price: d(31), ObservedAt: time.Now()}}

	r := NewResolver([]Tier{
		{Source: bad, Symbol: "GASPRICE", Scale: d(1)},
		{Source: good, Symbol: "GAS-ALT", Scale: d(1)},
	})

	got := r.Resolve(context.Background())
	if !got.Price.Equal(d(31)) {
		t.Errorf("zero reading should be skipped, got %s", got.Price)
	}
}

func TestResolve_AllTiersFail_UsesFallback(t *testing.T) {
	primary := &stubSource{name: "primary", err: errors.New("down")}
	secondary := &stubSource{name: "secondary", err: errors.New("also down")}

	r := NewResolver([]Tier{
		{Source: primary, Symbol: "GASPRICE", Scale: d(1)},
		{Source: secondary, Symbol: "GAS-ALT", Scale: d(1)},
	})
	r.Height = func() uint64 { return 19_000_000 }

	got := r.Resolve(context.Background())
	min := decimal.NewFromInt(r.FallbackMin)
	max := decimal.NewFromInt(r.FallbackMax)
	if got.Price.LessThan(min) || got.Price.GreaterThan(max) {
		t.Errorf("fallback price %s outside [%s, %s]", got.Price, min, max)
	}
	if got.ObservedAt.IsZero() {
		t.Error("fallback reading should carry an observation time")
	}
}

func TestResolve_NoTiers_NeverFails(t *testing.T) {
	r := NewResolver(nil)
	got := r.Resolve(context.Background())
	if !got.Price.IsPositive() {
		t.Errorf("resolver must always return a positive price, got %s", got.Price)
	}
}

func TestFallbackPrice_Deterministic(t *testing.T) {
	a := FallbackPrice(12345, 25, 75)
	b := FallbackPrice(12345, 25, 75)
	if !a.Equal(b) {
		t.Errorf("same height must give same price: %s vs %s", a, b)
	}
}

func TestFallbackPrice_Bounded(t *testing.T) {
	min := decimal.NewFromInt(25)
	max := decimal.NewFromInt(75)
	for h := uint64(0); h < 1000; h++ {
		p := FallbackPrice(h, 25, 75)
		if p.LessThan(min) || p.GreaterThan(max) {
			t.Fatalf("height %d: price %s outside [25, 75]", h, p)
		}
	}
}

func TestFallbackPrice_VariesWithHeight(t *testing.T) {
	// Not all heights should hash to the same price.
	first := FallbackPrice(0, 25, 75)
	varied := false
	for h := uint64(1); h < 100; h++ {
		if !FallbackPrice(h, 25, 75).Equal(first) {
			varied = true
			break
		}
	}
	if !varied {
		t.Error("fallback price should vary across heights")
	}
}

// --- HTTP source ---

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "GASPRICE" {
			t.Errorf("expected symbol=GASPRICE, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": "GASPRICE",
			"price":  "4873000000",
			"time":   1735689600000,
		})
	}))
	defer srv.Close()

	src := NewHTTPSource("test", srv.URL, 5*time.Second)
	got, err := src.Fetch(context.Background(), "GASPRICE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Price.Equal(d(4873000000)) {
		t.Errorf("expected raw price 4873000000, got %s", got.Price)
	}
	want := time.UnixMilli(1735689600000).UTC()
	if !got.ObservedAt.Equal(want) {
		t.Errorf("expected observed_at %v, got %v", want, got.ObservedAt)
	}
}

func TestHTTPSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTTPSource("test", srv.URL, 5*time.Second)
	if _, err := src.Fetch(context.Background(), "GASPRICE"); !errors.Is(err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus, got %v", err)
	}
}

func TestHTTPSource_MalformedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"symbol": "GASPRICE", "price": "not-a-number"})
	}))
	defer srv.Close()

	src := NewHTTPSource("test", srv.URL, 5*time.Second)
	if _, err := src.Fetch(context.Background(), "GASPRICE"); err == nil {
		t.Error("expected error for malformed price")
	}
}
