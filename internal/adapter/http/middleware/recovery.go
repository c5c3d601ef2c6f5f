package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/infrastructure/metrics"
)

// Recover turns a handler panic into a 500 carrying the request id, so a
// caller can quote it when reporting a failed trade action. Panics unwind
// past the request metrics middleware and are counted here instead.
func Recover(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				route := routePattern(r)
				if m != nil {
					m.HTTPPanics.WithLabelValues(r.Method, route).Inc()
				}

				reqID := chimiddleware.GetReqID(r.Context())

				zerolog.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("route", route).
					Msg("handler panicked")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":      "internal server error",
					"request_id": reqID,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
