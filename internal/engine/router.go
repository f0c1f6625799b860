package engine

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/v1 route tree for the settlement engine.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	// WebSocket endpoint for real-time lifecycle events.
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}

	// Market catalog.
	r.Get("/markets", s.ListMarkets)
	r.Post("/markets", s.CreateMarket)
	r.Get("/markets/count", s.CountMarkets)
	r.Get("/markets/index/{index}", s.GetMarketByIndex)
	r.Get("/markets/creator/{account}", s.ListMarketsByCreator)

	// Market views.
	r.Get("/markets/{marketID}", s.GetMarket)
	r.Get("/markets/{marketID}/price", s.GetPrice)
	r.Get("/markets/{marketID}/summary", s.GetSummary)
	r.Get("/markets/{marketID}/info", s.GetInfo)
	r.Get("/markets/{marketID}/history", s.GetMarketHistory)
	r.Get("/markets/{marketID}/liquidity", s.ListLiquidity)

	// Position ledger.
	r.Post("/markets/{marketID}/positions/long", s.OpenLong)
	r.Post("/markets/{marketID}/positions/short", s.OpenShort)
	r.Post("/markets/{marketID}/positions/custom", s.OpenCustom)
	r.Get("/markets/{marketID}/positions", s.ListMarketPositions)
	r.Get("/markets/{marketID}/positions/{account}", s.GetPosition)

	// Liquidity pool.
	r.Post("/markets/{marketID}/liquidity/add", s.AddLiquidity)
	r.Post("/markets/{marketID}/liquidity/remove", s.RemoveLiquidity)

	// Settlement lifecycle.
	r.Post("/markets/{marketID}/settle", s.Settle)
	r.Post("/markets/{marketID}/claim", s.Claim)

	// Identity.
	r.Post("/users/register", s.RegisterUser)
	r.Post("/users/login", s.Login)

	// Account views.
	r.Get("/accounts/{account}/history", s.GetAccountHistory)

	return r
}
