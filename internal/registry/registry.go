// Package registry is the market catalog: it validates creation
// parameters, deploys new markets into the store, and maintains an
// ordered index over every market ever created. Indices are assigned
// in creation order and never reused.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
	"github.com/gasdex/settlement-engine/internal/store"
)

var (
	ErrInvalidStrike   = errors.New("registry: strike must be positive")
	ErrInvalidDuration = errors.New("registry: duration must be positive")
	ErrEmptyName       = errors.New("registry: market name must not be empty")
	ErrIndexOutOfRange = errors.New("registry: no market at index")
)

// Record is one catalog row: the position a market holds in the
// creation-ordered index plus who deployed it and when.
type Record struct {
	Index     int       `json:"index"`
	MarketID  string    `json:"market_id"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry deploys markets and indexes them in creation order.
type Registry struct {
	mu      sync.RWMutex
	store   store.Store
	records []Record
	now     func() time.Time
}

// New creates a registry over the given store.
func New(st store.Store) *Registry {
	return &Registry{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Rebuild loads the catalog from the store, ordered by creation time.
// Call once at startup when the store is persistent.
func (r *Registry) Rebuild(ctx context.Context) error {
	markets, err := r.store.ListMarkets(ctx)
	if err != nil {
		return fmt.Errorf("rebuild registry: %w", err)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.Before(markets[j].CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make([]Record, 0, len(markets))
	for i, m := range markets {
		r.records = append(r.records, Record{
			Index:     i,
			MarketID:  m.ID,
			Creator:   m.Creator,
			CreatedAt: m.CreatedAt,
		})
	}
	return nil
}

// CreateMarket validates the parameters, persists a new market, and
// appends it to the catalog. The returned market's index is Count()-1
// immediately after creation.
func (r *Registry) CreateMarket(ctx context.Context, creator, name, description string, strike decimal.Decimal, duration time.Duration) (*model.Market, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !strike.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidStrike, strike)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidDuration, duration)
	}

	now := r.now()
	m := &model.Market{
		ID:              uuid.New().String(),
		Creator:         creator,
		Name:            name,
		Description:     description,
		Strike:          strike,
		Expiry:          now.Add(duration),
		SettlementPrice: decimal.Zero,
		TotalLiquidity:  decimal.Zero,
		Balance:         decimal.Zero,
		CreatedAt:       now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.CreateMarket(ctx, m); err != nil {
		return nil, fmt.Errorf("create market: %w", err)
	}

	r.records = append(r.records, Record{
		Index:     len(r.records),
		MarketID:  m.ID,
		Creator:   creator,
		CreatedAt: now,
	})
	return m, nil
}

// Count returns how many markets have ever been created.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Get returns the catalog record at a creation-order index.
func (r *Registry) Get(index int) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.records) {
		return Record{}, fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, index, len(r.records))
	}
	return r.records[index], nil
}

// List returns the full catalog in creation order.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// IndicesByCreator returns the indices of every market a creator deployed,
// in creation order.
func (r *Registry) IndicesByCreator(creator string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var indices []int
	for _, rec := range r.records {
		if rec.Creator == creator {
			indices = append(indices, rec.Index)
		}
	}
	return indices
}
