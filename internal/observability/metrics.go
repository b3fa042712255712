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
	// Watcher metrics
	LogEventsReceived      prometheus.Counter
	TransactionsFetched    prometheus.Counter
	TransactionFetchMisses prometheus.Counter

	// Detection metrics
	SwapsDetected   *prometheus.CounterVec
	NonSwapsSkipped prometheus.Counter
	DetectionErrors *prometheus.CounterVec

	// Classification metrics
	TradesClassified       *prometheus.CounterVec
	HeuristicResolutions   *prometheus.CounterVec
	RouterTradesUnresolved prometheus.Counter
	MigrationOverrides     prometheus.Counter

	// Execution metrics
	TradesAccepted     prometheus.Counter
	TradesCompleted    prometheus.Counter
	TradesFailed       *prometheus.CounterVec
	TradesRetried      prometheus.Counter
	DuplicatesRejected prometheus.Counter
	TradesInFlight     prometheus.Gauge

	// Latency metrics
	DetectionLatency prometheus.Histogram
	ExecutionLatency prometheus.Histogram
	RPCCallLatency   *prometheus.HistogramVec

	// Cache metrics
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	PacketsCached prometheus.Gauge

	// Health metrics
	WSConnected     prometheus.Gauge
	HighestSlotSeen prometheus.Gauge
	UptimeSeconds   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "copybot"
	}

	return &Metrics{
		// Watcher metrics
		LogEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "log_events_received_total",
			Help:      "Total number of log notifications received for tracked wallets",
		}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transactions fetched over RPC",
		}),
		TransactionFetchMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "transaction_fetch_misses_total",
			Help:      "Total number of signatures the RPC node had not indexed yet",
		}),

		// Detection metrics
		SwapsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "swaps_detected_total",
			Help:      "Total number of swaps detected by trade type",
		}, []string{"trade_type"}),
		NonSwapsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "non_swaps_skipped_total",
			Help:      "Total number of transactions classified as non-swaps",
		}),
		DetectionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "errors_total",
			Help:      "Total number of detection errors by type",
		}, []string{"error_type"}),

		// Classification metrics
		TradesClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "trades_classified_total",
			Help:      "Total number of trades classified by venue",
		}, []string{"venue"}),
		HeuristicResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "heuristic_resolutions_total",
			Help:      "Total number of venues resolved by fallback heuristics by method",
		}, []string{"method"}),
		RouterTradesUnresolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "router_trades_unresolved_total",
			Help:      "Total number of aggregator trades with no resolvable inner venue",
		}),
		MigrationOverrides: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "migration_overrides_total",
			Help:      "Total number of trades rerouted from a closed bonding curve to its AMM",
		}),

		// Execution metrics
		TradesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_accepted_total",
			Help:      "Total number of trades accepted for reconstruction",
		}),
		TradesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_completed_total",
			Help:      "Total number of trades submitted successfully",
		}),
		TradesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_failed_total",
			Help:      "Total number of terminally failed trades by error category",
		}, []string{"category"}),
		TradesRetried: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_retried_total",
			Help:      "Total number of retry attempts after transient failures",
		}),
		DuplicatesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duplicates_rejected_total",
			Help:      "Total number of submissions rejected because the signature was already in flight",
		}),
		TradesInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_in_flight",
			Help:      "Current number of non-terminal trade records",
		}),

		// Latency metrics
		DetectionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "latency_seconds",
			Help:      "Time from log notification to classified trade in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ExecutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "latency_seconds",
			Help:      "Time from acceptance to submission in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by store",
		}, []string{"store"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by store",
		}, []string{"store"}),
		PacketsCached: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "packets_cached",
			Help:      "Current number of transaction packets held in cache",
		}),

		// Health metrics
		WSConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "ws_connected",
			Help:      "Whether the log subscription websocket is connected (1/0)",
		}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
