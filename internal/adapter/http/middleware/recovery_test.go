package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cardtrade/internal/infrastructure/metrics"
)

func TestRecoverReturns500WithRequestID(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Recover(m))
	r.Post("/api/v1/trades/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/3/confirm", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-9")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error","request_id":"req-9"}`, rr.Body.String())

	panics := testutil.ToFloat64(m.HTTPPanics.WithLabelValues(http.MethodPost, "/api/v1/trades/{id}/confirm"))
	assert.Equal(t, float64(1), panics)
}

func TestRecoverWithoutMetrics(t *testing.T) {
	rr := httptest.NewRecorder()

	Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRecoverRepanicsOnAbort(t *testing.T) {
	handler := Recover(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
