package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/metrics"
	"github.com/gasdex/settlement-engine/internal/model"
	"github.com/gasdex/settlement-engine/internal/registry"
)

// CreateMarketRequest is the JSON body for market creation. Duration is
// seconds from now until expiry.
type CreateMarketRequest struct {
	Creator     string          `json:"creator"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Strike      decimal.Decimal `json:"strike"`
	Duration    int64           `json:"duration_seconds"`
}

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.registry.CreateMarket(r.Context(), req.Creator, req.Name, req.Description,
		req.Strike, time.Duration(req.Duration)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrEmptyName),
			errors.Is(err, registry.ErrInvalidStrike),
			errors.Is(err, registry.ErrInvalidDuration):
			writeError(w, err.Error(), http.StatusBadRequest)
		default:
			writeError(w, "failed to create market", http.StatusInternalServerError)
		}
		return
	}

	metrics.ActiveMarkets.Inc()
	slog.Info("market created",
		"market_id", market.ID,
		"creator", req.Creator,
		"strike", market.Strike.String(),
		"expiry", market.Expiry,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(Event{
			Type:     EventMarketCreated,
			MarketID: market.ID,
			Account:  req.Creator,
			Price:    market.Strike.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(market)
}

// ListMarkets handles GET /api/v1/markets
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// CountMarkets handles GET /api/v1/markets/count
func (s *Service) CountMarkets(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"count": s.registry.Count()})
}

// GetMarketByIndex handles GET /api/v1/markets/index/{index}
// Indices are creation-ordered and never reused.
func (s *Service) GetMarketByIndex(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, "index must be an integer", http.StatusBadRequest)
		return
	}

	rec, err := s.registry.Get(index)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	market, err := s.store.GetMarket(r.Context(), rec.MarketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// ListMarketsByCreator handles GET /api/v1/markets/creator/{account}
// Returns the creation-order indices of the creator's markets.
func (s *Service) ListMarketsByCreator(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	indices := s.registry.IndicesByCreator(account)
	if indices == nil {
		indices = []int{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"creator": account,
		"indices": indices,
	})
}
