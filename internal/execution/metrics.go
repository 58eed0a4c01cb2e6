package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal tracks trade submissions by side and outcome code.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_execution_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"side", "outcome"},
	)

	// BusyRejectionsTotal tracks buys rejected because a trade was in flight.
	BusyRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_execution_busy_rejections_total",
		Help: "Total number of buys rejected while another trade held the flag",
	})

	// SellQueueDepth tracks the number of queued sell jobs.
	SellQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sniper_execution_sell_queue_depth",
		Help: "Current number of sell jobs waiting in the queue",
	})

	// DeferredMarks tracks tokens currently marked unsellable.
	DeferredMarks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sniper_execution_deferred_marks",
		Help: "Current number of tokens with a deferred-sell mark",
	})

	// TradeDurationSeconds tracks submit-to-confirmation latency per side.
	TradeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sniper_execution_trade_duration_seconds",
			Help:    "Duration from submission to confirmation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"side"},
	)
)
