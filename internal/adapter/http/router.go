package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/adapter/http/handler"
	"github.com/iho/cardtrade/internal/adapter/http/middleware"
	"github.com/iho/cardtrade/internal/infrastructure/metrics"
	"github.com/iho/cardtrade/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TradeHandler   *handler.TradeHandler
	BalanceHandler *handler.BalanceHandler
	CatalogHandler *handler.CatalogHandler // optional
	HealthHandler  *handler.HealthHandler

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// Verifier checks bearer tokens. Nil trusts the X-Account-ID header.
	Verifier    middleware.TokenVerifier
	RateLimiter *middleware.RateLimiter

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	// IsPending reports whether a stored idempotency value is the in-flight marker.
	IsPending func([]byte) bool
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recover(cfg.Metrics))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Verifier))

		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.IsPending).Wrap)
		}

		// Trades
		r.Route("/trades", func(r chi.Router) {
			r.Post("/", cfg.TradeHandler.Propose)
			r.Get("/", cfg.TradeHandler.List)
			r.Get("/active", cfg.TradeHandler.Active)
			r.Post("/cancel-latest", cfg.TradeHandler.CancelLatest)
			r.Get("/{id}", cfg.TradeHandler.Get)
			r.Get("/{id}/events", cfg.TradeHandler.History)
			r.Post("/{id}/respond", cfg.TradeHandler.Respond)
			r.Post("/{id}/confirm", cfg.TradeHandler.Confirm)
			r.Post("/{id}/cancel", cfg.TradeHandler.Cancel)
			r.Put("/{id}/message", cfg.TradeHandler.AttachMessage)
		})

		// Holdings
		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/inventory", cfg.BalanceHandler.Inventory)
			r.Get("/wallet", cfg.BalanceHandler.Wallet)
		})

		r.With(middleware.RequireAdmin).Post("/admin/accounts/{account}/grant", cfg.BalanceHandler.Grant)

		if cfg.CatalogHandler != nil {
			r.Route("/catalog", func(r chi.Router) {
				r.Get("/suggest", cfg.CatalogHandler.Suggest)
				r.Get("/resolve", cfg.CatalogHandler.Resolve)
			})
		}
	})

	return r
}
