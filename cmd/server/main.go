package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gasdex/settlement-engine/internal/config"
	"github.com/gasdex/settlement-engine/internal/engine"
	"github.com/gasdex/settlement-engine/internal/funds"
	"github.com/gasdex/settlement-engine/internal/metrics"
	"github.com/gasdex/settlement-engine/internal/oracle"
	"github.com/gasdex/settlement-engine/internal/registry"
	"github.com/gasdex/settlement-engine/internal/risk"
	"github.com/gasdex/settlement-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid redis URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Market catalog ---
	reg := registry.New(st)
	if err := reg.Rebuild(context.Background()); err != nil {
		slog.Error("failed to rebuild market catalog", "err", err)
		os.Exit(1)
	}
	slog.Info("market catalog loaded", "count", reg.Count())

	if markets, err := st.ListMarkets(context.Background()); err == nil {
		trading := 0
		for _, m := range markets {
			if m.Trading(time.Now().UTC()) {
				trading++
			}
		}
		metrics.ActiveMarkets.Set(float64(trading))
	}

	// --- Oracle fallback chain ---
	var tiers []oracle.Tier
	for _, t := range []config.OracleTier{cfg.OraclePrimary, cfg.OracleSecondary} {
		if t.Endpoint == "" {
			continue
		}
		tiers = append(tiers, oracle.Tier{
			Source: oracle.NewHTTPSource(t.Name, t.Endpoint, 10*time.Second),
			Symbol: t.Symbol,
			Scale:  t.Scale,
			Offset: t.Offset,
		})
	}
	resolver := oracle.NewResolver(tiers)
	resolver.FallbackMin = cfg.FallbackMin
	resolver.FallbackMax = cfg.FallbackMax
	if len(tiers) == 0 {
		slog.Warn("no oracle endpoints configured, every settlement will use the deterministic fallback")
	}

	// --- Notional limits ---
	limiter := risk.NewLimiter(cfg.MaxPositionNotional, cfg.MaxAccountNotional)

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Settlement service ---
	svc := engine.NewService(st, reg, resolver, funds.NewNativeTransferer(), limiter, wsHub)
	svc.SetStalenessTolerance(cfg.StalenessTolerance)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settlement-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/api/v1", svc.Routes())

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("settlement-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down settlement-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("settlement-engine stopped")
}
