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
	"github.com/gasdex/settlement-engine/internal/payout"
	"github.com/gasdex/settlement-engine/internal/store"
)

// ClaimRequest is the JSON body for POST /markets/{marketID}/claim.
type ClaimRequest struct {
	Account string `json:"account"`
}

// ClaimResponse reports the released payout.
type ClaimResponse struct {
	MarketID string          `json:"market_id"`
	Account  string          `json:"account"`
	Payout   decimal.Decimal `json:"payout"`
	Asset    model.Asset     `json:"asset"`
}

// Settle handles POST /api/v1/markets/{marketID}/settle
//
// Anyone may trigger settlement once the market has expired. The price is
// resolved through the oracle fallback chain; an observation taken more
// than the staleness tolerance before expiry is rejected so settlement
// can be retried when the oracle recovers. Once recorded, the settlement
// price is final and every later read returns the stored value, never a
// fresh resolution.
func (s *Service) Settle(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	if market.Settled {
		writeError(w, store.ErrAlreadySettled.Error(), http.StatusConflict)
		return
	}

	now := s.now()
	if now.Before(market.Expiry) {
		writeError(w, ErrNotExpired.Error(), http.StatusConflict)
		return
	}

	reading := s.resolver.Resolve(ctx)
	if reading.ObservedAt.Before(market.Expiry.Add(-s.tolerance)) {
		writeError(w, ErrStalePrice.Error(), http.StatusConflict)
		return
	}

	if err := s.store.SettleMarket(ctx, marketID, reading.Price, now); err != nil {
		if errors.Is(err, store.ErrAlreadySettled) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to record settlement", http.StatusInternalServerError)
		return
	}

	metrics.SettlementsTotal.Inc()
	metrics.ActiveMarkets.Dec()
	slog.Info("market settled",
		"market_id", marketID,
		"price", reading.Price.String(),
		"observed_at", reading.ObservedAt,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{
			Type:     EventMarketSettled,
			MarketID: marketID,
			Price:    reading.Price.String(),
		})
	}

	market.Settled = true
	market.SettlementPrice = reading.Price
	market.SettlementTime = now

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// Claim handles POST /api/v1/markets/{marketID}/claim
//
// State flips before value moves: the position is marked claimed and the
// balance debited, then the transfer runs. If the transfer fails, both
// steps roll back so the claim can be retried.
func (s *Service) Claim(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	if !market.Settled {
		writeError(w, ErrNotSettled.Error(), http.StatusConflict)
		return
	}

	pos, err := s.store.GetPosition(ctx, marketID, req.Account)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}
	if pos.Claimed {
		writeError(w, ErrAlreadyClaimed.Error(), http.StatusConflict)
		return
	}

	amount := payout.Compute(market.SettlementPrice, market.Strike, pos)

	if err := s.store.SetPositionClaimed(ctx, marketID, req.Account, true); err != nil {
		writeError(w, "failed to mark position claimed", http.StatusInternalServerError)
		return
	}

	if amount.IsPositive() {
		if err := s.store.AdjustMarketBalance(ctx, marketID, amount.Neg()); err != nil {
			// Roll the claim flag back; nothing moved.
			s.store.SetPositionClaimed(ctx, marketID, req.Account, false)
			if errors.Is(err, store.ErrInsufficientBalance) {
				writeError(w, err.Error(), http.StatusConflict)
				return
			}
			writeError(w, "failed to debit market balance", http.StatusInternalServerError)
			return
		}

		if err := s.transferer.Transfer(ctx, marketID, req.Account, pos.SettlementAsset, amount); err != nil {
			// Roll back both steps so the claim can be retried.
			s.store.AdjustMarketBalance(ctx, marketID, amount)
			s.store.SetPositionClaimed(ctx, marketID, req.Account, false)
			if errors.Is(err, funds.ErrUnsupportedAsset) {
				writeError(w, err.Error(), http.StatusConflict)
				return
			}
			writeError(w, "payout transfer failed", http.StatusInternalServerError)
			return
		}

		s.recordLedger(ctx, marketID, req.Account, model.LedgerPayout, pos.SettlementAsset, amount)
	}

	metrics.ClaimsTotal.Inc()
	slog.Info("payout claimed",
		"market_id", marketID,
		"account", req.Account,
		"payout", amount.String(),
		"asset", pos.SettlementAsset,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{
			Type:     EventPayoutClaimed,
			MarketID: marketID,
			Account:  req.Account,
			Payout:   amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClaimResponse{
		MarketID: marketID,
		Account:  req.Account,
		Payout:   amount,
		Asset:    pos.SettlementAsset,
	})
}
