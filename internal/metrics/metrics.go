package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pool metrics
	AssetCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omnipool_asset_count",
		Help: "Total number of assets in the omnipool",
	})

	AssetFee = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omnipool_asset_fee_ratio",
			Help: "Current asset fee as a fraction",
		},
		[]string{"asset"},
	)

	ProtocolFee = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omnipool_protocol_fee_ratio",
			Help: "Current protocol fee as a fraction",
		},
		[]string{"asset"},
	)

	LiquidityOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_liquidity_operations_total",
			Help: "Total number of liquidity operations",
		},
		[]string{"op", "status"},
	)

	// Intent metrics
	IntentsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_intents_submitted_total",
			Help: "Total number of intent submissions",
		},
		[]string{"swap_type", "status"},
	)

	IntentsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omnipool_intents_pending",
		Help: "Number of intents waiting to be resolved",
	})

	IntentsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omnipool_intents_resolved_total",
		Help: "Total number of resolved intents applied",
	})

	IntentsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omnipool_intents_expired_total",
		Help: "Total number of intents dropped after their deadline",
	})

	// Solver metrics
	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omnipool_solve_duration_seconds",
		Help:    "Solver run duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	})

	SolveOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_solve_outcomes_total",
			Help: "Solver runs by outcome",
		},
		[]string{"outcome"},
	)

	// Executor metrics
	Proposals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_proposals_total",
			Help: "Solution proposals by result",
		},
		[]string{"result"},
	)

	Rounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_rounds_total",
			Help: "Closed rounds by outcome",
		},
		[]string{"outcome"},
	)

	CurrentRound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omnipool_current_round",
		Help: "Currently open round",
	})

	SolutionScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omnipool_solution_score",
		Help:    "Score of applied solutions",
		Buckets: prometheus.ExponentialBuckets(1_000_000, 4, 10),
	})

	FinalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omnipool_finalize_duration_seconds",
		Help:    "Round finalization duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"kind", "status"},
	)

	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omnipool_quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omnipool_quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	QuoteCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omnipool_quote_cache_size",
		Help: "Current number of entries in quote cache",
	})

	// Persistence metrics
	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "omnipool_persist_duration_seconds",
		Help:    "State persistence duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnipool_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omnipool_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
