package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/funds"
	"github.com/gasdex/settlement-engine/internal/metrics"
	"github.com/gasdex/settlement-engine/internal/model"
	"github.com/gasdex/settlement-engine/internal/store"
)

// LiquidityRequest is the JSON body for liquidity adds and removals.
// Deposited applies to adds only and must equal Amount.
type LiquidityRequest struct {
	Provider  string          `json:"provider"`
	Amount    decimal.Decimal `json:"amount"`
	Deposited decimal.Decimal `json:"deposited,omitempty"`
}

// AddLiquidity handles POST /api/v1/markets/{marketID}/liquidity/add
//
// The provider's entry, the market's total, and the fund balance move in
// one atomic store call, so the pool invariant (sum of entries == total)
// holds at every observable point.
func (s *Service) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req LiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		writeError(w, "provider is required", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	if err := funds.CheckDeposit(model.AssetNative, req.Amount, req.Deposited); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.AdjustLiquidity(ctx, marketID, req.Provider, req.Amount); err != nil {
		if errors.Is(err, store.ErrMarketNotFound) {
			writeError(w, "market not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to add liquidity", http.StatusInternalServerError)
		return
	}

	s.recordLedger(ctx, marketID, req.Provider, model.LedgerLiquidityAdd, model.AssetNative, req.Amount)

	metrics.LiquidityOps.WithLabelValues("add").Inc()
	slog.Info("liquidity added",
		"market_id", marketID,
		"provider", req.Provider,
		"amount", req.Amount.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{
			Type:     EventLiquidityAdded,
			MarketID: marketID,
			Account:  req.Provider,
			Amount:   req.Amount.String(),
		})
	}

	s.writeLiquidity(w, r, marketID, req.Provider)
}

// RemoveLiquidity handles POST /api/v1/markets/{marketID}/liquidity/remove
//
// Removal is bounded by the provider's own recorded contribution and by
// the market's fund balance. It is not gated on market state: a provider
// can withdraw after settlement, ahead of unclaimed payouts.
func (s *Service) RemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req LiquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		writeError(w, "provider is required", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The market balance can be lower than the provider's entry once
	// payouts have drawn on the pool; check it up front so the atomic
	// adjustment cannot push it negative.
	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	if market.Balance.LessThan(req.Amount) {
		writeError(w, store.ErrInsufficientBalance.Error(), http.StatusConflict)
		return
	}

	if err := s.store.AdjustLiquidity(ctx, marketID, req.Provider, req.Amount.Neg()); err != nil {
		if errors.Is(err, store.ErrInsufficientLiquidity) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to remove liquidity", http.StatusInternalServerError)
		return
	}

	if err := s.transferer.Transfer(ctx, marketID, req.Provider, model.AssetNative, req.Amount); err != nil {
		// Restore the pool; nothing left the market.
		s.store.AdjustLiquidity(ctx, marketID, req.Provider, req.Amount)
		writeError(w, "withdrawal transfer failed", http.StatusInternalServerError)
		return
	}

	s.recordLedger(ctx, marketID, req.Provider, model.LedgerLiquidityRemove, model.AssetNative, req.Amount)

	metrics.LiquidityOps.WithLabelValues("remove").Inc()
	slog.Info("liquidity removed",
		"market_id", marketID,
		"provider", req.Provider,
		"amount", req.Amount.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{
			Type:     EventLiquidityRemoved,
			MarketID: marketID,
			Account:  req.Provider,
			Amount:   req.Amount.String(),
		})
	}

	s.writeLiquidity(w, r, marketID, req.Provider)
}

// writeLiquidity responds with the provider's current contribution.
func (s *Service) writeLiquidity(w http.ResponseWriter, r *http.Request, marketID, provider string) {
	amount, err := s.store.GetLiquidity(r.Context(), marketID, provider)
	if err != nil {
		writeError(w, "failed to read liquidity", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.LiquidityEntry{
		MarketID: marketID,
		Provider: provider,
		Amount:   amount,
	})
}
