package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal tracks accepted trade events.
	EventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_monitor_events_total",
		Help: "Total number of trade events processed",
	})

	// EventsClassifiedTotal tracks events by classification.
	EventsClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_monitor_events_classified_total",
			Help: "Trade events by classification",
		},
		[]string{"kind"},
	)

	// EventsDroppedTotal tracks events dropped before dispatch.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_monitor_events_dropped_total",
			Help: "Trade events dropped before callback dispatch",
		},
		[]string{"reason"},
	)

	// ReconnectsTotal tracks subscription reconnect attempts.
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_monitor_reconnects_total",
		Help: "Total number of subscription reconnect attempts",
	})

	// CheckpointBlock tracks the last persisted block number.
	CheckpointBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sniper_monitor_checkpoint_block",
		Help: "Last fully processed block number",
	})
)
