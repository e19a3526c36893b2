// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trading metrics
	TradesTotal       *prometheus.CounterVec
	TradeErrors       *prometheus.CounterVec
	SlippageRejects   prometheus.Counter
	QuoteLatency      prometheus.Histogram
	ExecutionLatency  *prometheus.HistogramVec
	RealizedOutBelow  prometheus.Counter
	IndeterminateOpen prometheus.Gauge

	// Reconciliation metrics
	ReconcileRuns    prometheus.Counter
	ReconcileSettled prometheus.Counter

	// Venue metrics
	VenueResolutions *prometheus.CounterVec
	MigrationHints   prometheus.Counter

	// Solana metrics
	RPCCallLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulTrade     prometheus.Gauge
	LastSuccessfulReconcile prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on the default
// registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsFor(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsFor registers all metrics on the given registerer. Tests use
// this with a fresh registry.
func NewMetricsFor(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solsniper"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TradesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_total",
			Help:      "Total number of trades by side, venue, and final status",
		}, []string{"side", "venue", "status"}),
		TradeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_errors_total",
			Help:      "Total number of trade pipeline errors by stage",
		}, []string{"stage"}),
		SlippageRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "slippage_rejects_total",
			Help:      "Total number of trades rejected by the pre-submit slippage recheck",
		}),
		QuoteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "quote_latency_seconds",
			Help:      "Resolve-and-quote latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ExecutionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "execution_latency_seconds",
			Help:      "Submit-to-terminal-state latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		RealizedOutBelow: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_below_expected_total",
			Help:      "Total number of confirmed trades that realized less than the expected output",
		}),
		IndeterminateOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "indeterminate_open",
			Help:      "Number of execution records currently awaiting reconciliation",
		}),

		ReconcileRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation passes",
		}),
		ReconcileSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "records_settled_total",
			Help:      "Total number of records settled by reconciliation",
		}),

		VenueResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "resolutions_total",
			Help:      "Total number of venue resolutions by venue kind",
		}, []string{"venue"}),
		MigrationHints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "migration_hints_total",
			Help:      "Total number of curve migration hints observed",
		}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		LastSuccessfulTrade: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_trade_timestamp",
			Help:      "Unix timestamp of the last confirmed trade",
		}),
		LastSuccessfulReconcile: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_reconcile_timestamp",
			Help:      "Unix timestamp of the last reconciliation pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
