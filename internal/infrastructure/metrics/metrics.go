package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Trade metrics
	TradesProposed   prometheus.Counter
	TradesResponded  prometheus.Counter
	TradesConfirmed  prometheus.Counter
	TradesCanceled   *prometheus.CounterVec
	TradesSettled    prometheus.Counter
	SettlementErrors *prometheus.CounterVec
	SettleDuration   prometheus.Histogram
	ItemsMoved       *prometheus.CounterVec

	// Balance metrics
	BalanceOperations *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPPanics   *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	f := promauto.With(reg)

	return &Metrics{
		// Trade metrics
		TradesProposed: f.NewCounter(prometheus.CounterOpts{
			Name: "cardtrade_trades_proposed_total",
			Help: "Total number of trades proposed",
		}),
		TradesResponded: f.NewCounter(prometheus.CounterOpts{
			Name: "cardtrade_trades_responded_total",
			Help: "Total number of receiver offers recorded",
		}),
		TradesConfirmed: f.NewCounter(prometheus.CounterOpts{
			Name: "cardtrade_trade_confirmations_total",
			Help: "Total number of confirmations recorded",
		}),
		TradesCanceled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_trades_canceled_total",
				Help: "Total number of canceled trades by reason",
			},
			[]string{"reason"},
		),
		TradesSettled: f.NewCounter(prometheus.CounterOpts{
			Name: "cardtrade_trades_settled_total",
			Help: "Total number of trades settled",
		}),
		SettlementErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_settlement_errors_total",
				Help: "Total number of failed settlement attempts by type",
			},
			[]string{"error_type"},
		),
		SettleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardtrade_settlement_duration_seconds",
			Help:    "Duration of settlement attempts",
			Buckets: prometheus.DefBuckets,
		}),
		ItemsMoved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_items_moved_total",
				Help: "Units moved between accounts by settled trades",
			},
			[]string{"kind"},
		),

		// Balance metrics
		BalanceOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_balance_operations_total",
				Help: "Total direct balance operations by type",
			},
			[]string{"operation"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardtrade_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPPanics: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_http_panics_total",
				Help: "Handler panics recovered by route",
			},
			[]string{"method", "path"},
		),

		// Cache metrics
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_cache_lookups_total",
				Help: "Trade cache lookups by result",
			},
			[]string{"result"},
		),

		// Outbox metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_events_published_total",
				Help: "Outbox events relayed by type and status",
			},
			[]string{"event_type", "status"},
		),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardtrade_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"key"},
		),
	}
}
