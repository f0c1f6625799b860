// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PositionsOpened counts positions opened, partitioned by direction.
	PositionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasdex_positions_opened_total",
		Help: "Total number of positions opened",
	}, []string{"direction"})

	// PositionRejections counts opens rejected before reaching the ledger,
	// partitioned by reason.
	PositionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasdex_position_rejections_total",
		Help: "Position opens rejected at validation or risk checks",
	}, []string{"reason"})

	// SettlementsTotal counts completed market settlements.
	SettlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasdex_settlements_total",
		Help: "Total number of markets settled",
	})

	// ClaimsTotal counts successful payout claims.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasdex_claims_total",
		Help: "Total number of payouts claimed",
	})

	// LiquidityOps counts liquidity movements, partitioned by direction.
	LiquidityOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasdex_liquidity_ops_total",
		Help: "Liquidity additions and removals",
	}, []string{"op"})

	// OracleFallbacks counts price resolutions that fell past a source,
	// partitioned by source name.
	OracleFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasdex_oracle_fallbacks_total",
		Help: "Price resolutions that skipped a failing source",
	}, []string{"source"})

	// ActiveMarkets tracks the number of markets still accepting opens.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasdex_active_markets",
		Help: "Number of currently trading markets",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasdex_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasdex_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gasdex_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
