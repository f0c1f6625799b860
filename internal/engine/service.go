// Package engine provides the HTTP handlers and business logic for the
// market lifecycle: opening positions, settling against the oracle, and
// claiming payouts.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/funds"
	"github.com/gasdex/settlement-engine/internal/instrument"
	"github.com/gasdex/settlement-engine/internal/metrics"
	"github.com/gasdex/settlement-engine/internal/model"
	"github.com/gasdex/settlement-engine/internal/oracle"
	"github.com/gasdex/settlement-engine/internal/registry"
	"github.com/gasdex/settlement-engine/internal/risk"
	"github.com/gasdex/settlement-engine/internal/store"
)

var (
	// ErrMarketClosed is returned for opens after expiry or settlement.
	ErrMarketClosed = errors.New("engine: market no longer accepts positions")

	// ErrNotExpired is returned for settle attempts before expiry.
	ErrNotExpired = errors.New("engine: market has not reached expiry")

	// ErrNotSettled is returned for claims before settlement.
	ErrNotSettled = errors.New("engine: market is not settled")

	// ErrAlreadyClaimed is returned for a second claim on a position.
	ErrAlreadyClaimed = errors.New("engine: payout already claimed")

	// ErrStalePrice is returned when the resolved observation predates the
	// expiry by more than the staleness tolerance. Settlement can be
	// retried once the oracle recovers.
	ErrStalePrice = errors.New("engine: price observation too stale to settle")

	// ErrNotRegistered gates position opens on the identity record.
	ErrNotRegistered = errors.New("engine: account is not registered")
)

// defaultStalenessTolerance bounds how far before expiry a price
// observation may have been taken and still settle the market.
const defaultStalenessTolerance = time.Hour

// Service handles market lifecycle operations. Uses a mutex for
// serialized mutation (single-instance). For horizontal scaling, replace
// with distributed locking or database-level optimistic concurrency.
type Service struct {
	store      store.Store
	registry   *registry.Registry
	resolver   *oracle.Resolver
	transferer funds.Transferer
	limiter    *risk.Limiter
	tolerance  time.Duration
	now        func() time.Time
	mu         sync.Mutex
	wsHub      *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new settlement service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, reg *registry.Registry, resolver *oracle.Resolver, transferer funds.Transferer, limiter *risk.Limiter, hub *WSHub) *Service {
	return &Service{
		store:      st,
		registry:   reg,
		resolver:   resolver,
		transferer: transferer,
		limiter:    limiter,
		tolerance:  defaultStalenessTolerance,
		now:        func() time.Time { return time.Now().UTC() },
		wsHub:      hub,
	}
}

// SetStalenessTolerance overrides the settlement staleness window.
// Non-positive values keep the default.
func (s *Service) SetStalenessTolerance(d time.Duration) {
	if d > 0 {
		s.tolerance = d
	}
}

// --- Request/Response types ---

// OpenPositionRequest is the JSON body for position opens. Deposited is
// the native value actually supplied with the request; it must match
// Collateral exactly for native collateral and be zero otherwise.
type OpenPositionRequest struct {
	Account         string           `json:"account"`
	Direction       model.Direction  `json:"direction,omitempty"` // custom endpoint only
	Quantity        decimal.Decimal  `json:"quantity"`
	Collateral      decimal.Decimal  `json:"collateral"`
	Deposited       decimal.Decimal  `json:"deposited"`
	Leverage        int64            `json:"leverage,omitempty"`         // default 1
	MarginMode      model.MarginMode `json:"margin_mode,omitempty"`      // default ISOLATED
	EntryStyle      model.EntryStyle `json:"entry_style,omitempty"`      // default MARKET
	TriggerPrice    decimal.Decimal  `json:"trigger_price,omitempty"`    // limit/stop only
	CollateralAsset model.Asset      `json:"collateral_asset,omitempty"` // default NATIVE
	SettlementAsset model.Asset      `json:"settlement_asset,omitempty"` // default NATIVE
}

// --- HTTP Handlers ---

// OpenLong handles POST /api/v1/markets/{marketID}/positions/long
func (s *Service) OpenLong(w http.ResponseWriter, r *http.Request) {
	s.openPosition(w, r, model.DirectionLong, false)
}

// OpenShort handles POST /api/v1/markets/{marketID}/positions/short
func (s *Service) OpenShort(w http.ResponseWriter, r *http.Request) {
	s.openPosition(w, r, model.DirectionShort, false)
}

// OpenCustom handles POST /api/v1/markets/{marketID}/positions/custom
// The direction comes from the request body.
func (s *Service) OpenCustom(w http.ResponseWriter, r *http.Request) {
	s.openPosition(w, r, "", true)
}

func (s *Service) openPosition(w http.ResponseWriter, r *http.Request, direction model.Direction, fromBody bool) {
	marketID := chi.URLParam(r, "marketID")

	var req OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}
	if fromBody {
		direction = req.Direction
	}

	// Convenience defaults for the common market-entry open.
	if req.Leverage == 0 {
		req.Leverage = 1
	}
	if req.MarginMode == "" {
		req.MarginMode = model.MarginIsolated
	}
	if req.EntryStyle == "" {
		req.EntryStyle = model.EntryMarket
	}
	if req.CollateralAsset == "" {
		req.CollateralAsset = model.AssetNative
	}
	if req.SettlementAsset == "" {
		req.SettlementAsset = model.AssetNative
	}

	ctx := r.Context()

	// Serialize lifecycle mutations.
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.GetUser(ctx, req.Account)
	if err != nil || !user.Registered {
		metrics.PositionRejections.WithLabelValues("unregistered").Inc()
		writeError(w, ErrNotRegistered.Error(), http.StatusConflict)
		return
	}

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	now := s.now()
	if !market.Trading(now) {
		metrics.PositionRejections.WithLabelValues("market_closed").Inc()
		writeError(w, ErrMarketClosed.Error(), http.StatusConflict)
		return
	}

	pos := &model.Position{
		Account:         req.Account,
		MarketID:        marketID,
		Direction:       direction,
		Quantity:        req.Quantity,
		Collateral:      req.Collateral,
		Leverage:        req.Leverage,
		MarginMode:      req.MarginMode,
		EntryStyle:      req.EntryStyle,
		TriggerPrice:    req.TriggerPrice,
		CollateralAsset: req.CollateralAsset,
		SettlementAsset: req.SettlementAsset,
		Active:          true,
		OpenedAt:        now,
	}

	if err := instrument.ValidatePosition(pos); err != nil {
		metrics.PositionRejections.WithLabelValues("invalid").Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := funds.CheckDeposit(req.CollateralAsset, req.Collateral, req.Deposited); err != nil {
		metrics.PositionRejections.WithLabelValues("deposit").Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// --- Notional limit check ---
	notionals, err := s.store.GetAccountNotionals(ctx, req.Account)
	if err != nil {
		writeError(w, "failed to check notional limits", http.StatusInternalServerError)
		return
	}
	// An existing position in this market fails as a duplicate below;
	// don't double-count it against the account cap here.
	delete(notionals, marketID)
	if err := s.limiter.CheckLimit(pos.Notional(), notionals); err != nil {
		metrics.PositionRejections.WithLabelValues("risk_limit").Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	if err := s.store.CreatePosition(ctx, pos); err != nil {
		metrics.PositionRejections.WithLabelValues("duplicate").Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	// Native collateral enters the market's fund pot. Non-native
	// collateral is recorded without value movement.
	if req.CollateralAsset == model.AssetNative {
		if err := s.store.AdjustMarketBalance(ctx, marketID, req.Deposited); err != nil {
			writeError(w, "failed to credit market balance", http.StatusInternalServerError)
			return
		}
		s.recordLedger(ctx, marketID, req.Account, model.LedgerDeposit, req.CollateralAsset, req.Deposited)
	}

	metrics.PositionsOpened.WithLabelValues(string(direction)).Inc()
	slog.Info("position opened",
		"market_id", marketID,
		"account", req.Account,
		"direction", direction,
		"qty", req.Quantity.String(),
		"collateral", req.Collateral.String(),
		"leverage", req.Leverage,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{
			Type:      EventPositionOpened,
			MarketID:  marketID,
			Account:   req.Account,
			Direction: string(direction),
			Quantity:  req.Quantity.String(),
			Amount:    req.Collateral.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pos)
}

// recordLedger appends an immutable value-movement record. Ledger write
// failures are logged, never surfaced: the movement itself already
// happened.
func (s *Service) recordLedger(ctx context.Context, marketID, account string, kind model.LedgerKind, asset model.Asset, amount decimal.Decimal) {
	entry := &model.LedgerEntry{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		Account:   account,
		Kind:      kind,
		Asset:     asset,
		Amount:    amount,
		Timestamp: s.now(),
	}
	if err := s.store.InsertLedgerEntry(ctx, entry); err != nil {
		slog.Error("ledger write failed",
			"market_id", marketID,
			"account", account,
			"kind", kind,
			"err", err,
		)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
