package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	markets   map[string]*model.Market
	positions map[string]map[string]*model.Position       // marketID → account
	liquidity map[string]map[string]*model.LiquidityEntry // marketID → provider
	users     map[string]*model.User
	ledger    []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:   make(map[string]*model.Market),
		positions: make(map[string]map[string]*model.Position),
		liquidity: make(map[string]map[string]*model.LiquidityEntry),
		users:     make(map[string]*model.User),
	}
}

// --- Markets ---

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMarketExists, m.ID)
	}

	// Store a copy to avoid external mutation.
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	return markets, nil
}

func (s *MemoryStore) SettleMarket(_ context.Context, id string, price decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	if m.Settled {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, id)
	}
	m.Settled = true
	m.SettlementPrice = price
	m.SettlementTime = at
	return nil
}

func (s *MemoryStore) AdjustMarketBalance(_ context.Context, id string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	next := m.Balance.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientBalance, m.Balance, delta.Neg())
	}
	m.Balance = next
	return nil
}

// --- Positions ---

func (s *MemoryStore) CreatePosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAccount, ok := s.positions[p.MarketID]
	if !ok {
		byAccount = make(map[string]*model.Position)
		s.positions[p.MarketID] = byAccount
	}
	if _, exists := byAccount[p.Account]; exists {
		return fmt.Errorf("%w: %s in %s", ErrPositionExists, p.Account, p.MarketID)
	}

	cp := *p
	byAccount[p.Account] = &cp
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, marketID, account string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[marketID][account]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrPositionNotFound, account, marketID)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, marketID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions[marketID] {
		positions = append(positions, *p)
	}
	return positions, nil
}

func (s *MemoryStore) ListActivePositions(_ context.Context, marketID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions[marketID] {
		if p.Active {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

func (s *MemoryStore) SetPositionClaimed(_ context.Context, marketID, account string, claimed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[marketID][account]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrPositionNotFound, account, marketID)
	}
	p.Claimed = claimed
	p.Active = !claimed
	return nil
}

func (s *MemoryStore) GetAccountNotionals(_ context.Context, account string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notionals := make(map[string]decimal.Decimal)
	for marketID, byAccount := range s.positions {
		if p, ok := byAccount[account]; ok && p.Active {
			notionals[marketID] = p.Notional()
		}
	}
	return notionals, nil
}

// --- Liquidity ---

func (s *MemoryStore) AdjustLiquidity(_ context.Context, marketID, provider string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[marketID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, marketID)
	}

	byProvider, ok := s.liquidity[marketID]
	if !ok {
		byProvider = make(map[string]*model.LiquidityEntry)
		s.liquidity[marketID] = byProvider
	}

	entry, ok := byProvider[provider]
	if !ok {
		entry = &model.LiquidityEntry{
			MarketID: marketID,
			Provider: provider,
			Amount:   decimal.Zero,
			JoinedAt: time.Now().UTC(),
		}
		byProvider[provider] = entry
	}

	next := entry.Amount.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: provider %s has %s, removing %s",
			ErrInsufficientLiquidity, provider, entry.Amount, delta.Neg())
	}

	// Entry, market total, and fund balance move in the same step.
	entry.Amount = next
	m.TotalLiquidity = m.TotalLiquidity.Add(delta)
	m.Balance = m.Balance.Add(delta)
	return nil
}

func (s *MemoryStore) GetLiquidity(_ context.Context, marketID, provider string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.liquidity[marketID][provider]
	if !ok {
		return decimal.Zero, nil
	}
	return entry.Amount, nil
}

func (s *MemoryStore) ListLiquidity(_ context.Context, marketID string) ([]model.LiquidityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []model.LiquidityEntry
	for _, e := range s.liquidity[marketID] {
		entries = append(entries, *e)
	}
	return entries, nil
}

// --- Users ---

func (s *MemoryStore) UpsertUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.users[u.Account] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, account string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[account]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, account)
	}
	cp := *u
	return &cp, nil
}

// --- Ledger ---

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntriesByMarket(_ context.Context, marketID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.MarketID == marketID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetLedgerEntriesByAccount(_ context.Context, account string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.Account == account {
			result = append(result, e)
		}
	}
	return result, nil
}
