package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) SettleMarket(ctx context.Context, id string, price decimal.Decimal, at time.Time) error {
	if err := s.primary.SettleMarket(ctx, id, price, at); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) AdjustMarketBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	if err := s.primary.AdjustMarketBalance(ctx, id, delta); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) CreatePosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.CreatePosition(ctx, p); err != nil {
		return err
	}
	s.cachePosition(ctx, p)
	return nil
}

func (s *CachedStore) SetPositionClaimed(ctx context.Context, marketID, account string, claimed bool) error {
	if err := s.primary.SetPositionClaimed(ctx, marketID, account, claimed); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(marketID, account))
	return nil
}

func (s *CachedStore) AdjustLiquidity(ctx context.Context, marketID, provider string, delta decimal.Decimal) error {
	if err := s.primary.AdjustLiquidity(ctx, marketID, provider, delta); err != nil {
		return err
	}
	// Liquidity moves the market balance too.
	s.rdb.Del(ctx, marketKey(marketID))
	return nil
}

func (s *CachedStore) UpsertUser(ctx context.Context, u *model.User) error {
	if err := s.primary.UpsertUser(ctx, u); err != nil {
		return err
	}
	s.cacheUser(ctx, u)
	return nil
}

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, entry)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	// Cache miss: read from primary.
	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, marketID, account string) (*model.Position, error) {
	data, err := s.rdb.Get(ctx, positionKey(marketID, account)).Bytes()
	if err == nil {
		var p model.Position
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, marketID, account)
	if err != nil {
		return nil, err
	}

	s.cachePosition(ctx, p)
	return p, nil
}

func (s *CachedStore) GetUser(ctx context.Context, account string) (*model.User, error) {
	data, err := s.rdb.Get(ctx, userKey(account)).Bytes()
	if err == nil {
		var u model.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.GetUser(ctx, account)
	if err != nil {
		return nil, err
	}

	s.cacheUser(ctx, u)
	return u, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListPositions(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.primary.ListPositions(ctx, marketID)
}

func (s *CachedStore) ListActivePositions(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.primary.ListActivePositions(ctx, marketID)
}

func (s *CachedStore) GetAccountNotionals(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	return s.primary.GetAccountNotionals(ctx, account)
}

func (s *CachedStore) GetLiquidity(ctx context.Context, marketID, provider string) (decimal.Decimal, error) {
	return s.primary.GetLiquidity(ctx, marketID, provider)
}

func (s *CachedStore) ListLiquidity(ctx context.Context, marketID string) ([]model.LiquidityEntry, error) {
	return s.primary.ListLiquidity(ctx, marketID)
}

func (s *CachedStore) GetLedgerEntriesByMarket(ctx context.Context, marketID string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByMarket(ctx, marketID)
}

func (s *CachedStore) GetLedgerEntriesByAccount(ctx context.Context, account string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByAccount(ctx, account)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func (s *CachedStore) cachePosition(ctx context.Context, p *model.Position) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKey(p.MarketID, p.Account), data, s.ttl)
	}
}

func (s *CachedStore) cacheUser(ctx context.Context, u *model.User) {
	if data, err := json.Marshal(u); err == nil {
		s.rdb.Set(ctx, userKey(u.Account), data, s.ttl)
	}
}

func marketKey(id string) string { return fmt.Sprintf("market:%s", id) }

func positionKey(marketID, account string) string {
	return fmt.Sprintf("position:%s:%s", marketID, account)
}

func userKey(account string) string { return fmt.Sprintf("user:%s", account) }
