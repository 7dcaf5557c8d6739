package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_runs_total",
			Help: "Total number of rebalancing runs by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rebalancer_run_duration_seconds",
		Help:    "Rebalancing run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	LastRunFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rebalancer_last_run_failed",
		Help: "1 when the most recent rebalancing run returned an error, 0 otherwise",
	})

	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rebalancer_portfolio_value",
		Help: "Portfolio value in the numeraire at the last snapshot",
	})

	AssetWeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rebalancer_asset_weight_percent",
			Help: "Current weight of an asset in the portfolio",
		},
		[]string{"coin"},
	)

	// Planner metrics
	PlanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_plan_errors_total",
			Help: "Total number of rejected plans by reason",
		},
		[]string{"reason"},
	)

	PlannedTrades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_planned_trades_total",
			Help: "Total number of planned trade instructions by kind",
		},
		[]string{"kind"},
	)

	SkippedLegs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_skipped_legs_total",
			Help: "Total number of planned legs dropped because their amount truncated to zero",
		},
		[]string{"kind", "to"},
	)

	// Swap metrics
	Swaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_swaps_total",
			Help: "Total number of executed swaps",
		},
		[]string{"kind", "status"},
	)

	SwapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rebalancer_swap_duration_seconds",
		Help:    "Swap execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	PendingIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rebalancer_pending_trade_intents",
		Help: "Trade intents left pending by an interrupted run",
	})
)
