package engine

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gasdex/settlement-engine/internal/model"
	"github.com/gasdex/settlement-engine/internal/oracle"
)

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// GetPrice handles GET /api/v1/markets/{marketID}/price
//
// Before settlement this is a live resolution through the fallback chain
// and carries no state change; after settlement it always returns the
// recorded settlement price.
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	ctx := r.Context()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	var reading oracle.Reading
	if market.Settled {
		reading = oracle.Reading{Price: market.SettlementPrice, ObservedAt: market.SettlementTime}
	} else {
		reading = s.resolver.Resolve(ctx)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reading)
}

// GetSummary handles GET /api/v1/markets/{marketID}/summary
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	ctx := r.Context()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	// Participants are everyone who ever opened a position; claimed
	// positions still count.
	positions, err := s.store.ListPositions(ctx, marketID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.MarketSummary{
		MarketID:         market.ID,
		Strike:           market.Strike,
		Expiry:           market.Expiry,
		Settled:          market.Settled,
		SettlementPrice:  market.SettlementPrice,
		TotalLiquidity:   market.TotalLiquidity,
		ParticipantCount: len(positions),
	})
}

// GetInfo handles GET /api/v1/markets/{marketID}/info
func (s *Service) GetInfo(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.MarketInfo{
		MarketID:        market.ID,
		Creator:         market.Creator,
		Name:            market.Name,
		Description:     market.Description,
		Strike:          market.Strike,
		Expiry:          market.Expiry,
		Settled:         market.Settled,
		SettlementPrice: market.SettlementPrice,
	})
}

// ListMarketPositions handles GET /api/v1/markets/{marketID}/positions
// Returns every position ever opened; ?active=true narrows to active.
func (s *Service) ListMarketPositions(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	ctx := r.Context()

	if _, err := s.store.GetMarket(ctx, marketID); err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	var positions []model.Position
	var err error
	if r.URL.Query().Get("active") == "true" {
		positions, err = s.store.ListActivePositions(ctx, marketID)
	} else {
		positions, err = s.store.ListPositions(ctx, marketID)
	}
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// GetPosition handles GET /api/v1/markets/{marketID}/positions/{account}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	account := chi.URLParam(r, "account")

	pos, err := s.store.GetPosition(r.Context(), marketID, account)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// ListLiquidity handles GET /api/v1/markets/{marketID}/liquidity
func (s *Service) ListLiquidity(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	ctx := r.Context()

	if _, err := s.store.GetMarket(ctx, marketID); err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	entries, err := s.store.ListLiquidity(ctx, marketID)
	if err != nil {
		writeError(w, "failed to load liquidity", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LiquidityEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetMarketHistory handles GET /api/v1/markets/{marketID}/history
// Returns the immutable value-movement ledger for the market.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	entries, err := s.store.GetLedgerEntriesByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetAccountHistory handles GET /api/v1/accounts/{account}/history
// Returns the account's value movements across all markets.
func (s *Service) GetAccountHistory(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	entries, err := s.store.GetLedgerEntriesByAccount(r.Context(), account)
	if err != nil {
		writeError(w, "failed to get account history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
