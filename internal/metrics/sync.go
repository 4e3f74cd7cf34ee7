package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutboundSends counts outbound clipboard send attempts.
	OutboundSends = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "outbound_total",
			Help:      "Total number of outbound clipboard sync attempts",
		},
		[]string{"outcome"}, // sent, dropped_loop, unsupported, send_fail
	)

	// InboundReceives counts inbound clipboard frames processed.
	InboundReceives = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "inbound_total",
			Help:      "Total number of inbound clipboard frames processed",
		},
		[]string{"outcome"}, // delivered_foreground, queued_notification, decrypt_fail, parse_fail
	)

	// SweepDeletions counts rows deleted by the background sweeper.
	SweepDeletions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "sweep_deletions_total",
			Help:      "Total number of clipboard rows deleted by the TTL sweeper",
		},
		[]string{},
	)

	// PendingUnsynced is a gauge of clipboard items not yet synced.
	PendingUnsynced = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pending_unsynced",
			Help:      "Number of clipboard items with synced=false",
		},
	)
)
