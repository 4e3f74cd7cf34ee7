package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState is a gauge of the current ConnectionState value per transport.
	ConnectionState = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connection_state",
			Help:      "Current connection state (0=Disconnected,1=Connecting,2=Connected,3=Disconnecting)",
		},
		[]string{"transport"}, // primary, fallback
	)

	// ReconnectAttempts counts reconnection attempts.
	ReconnectAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts",
		},
		[]string{"transport"},
	)

	// CloseCodes counts observed close codes.
	CloseCodes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "close_total",
			Help:      "Total number of connection closes by code class",
		},
		[]string{"transport", "code_class"}, // normal, policy_violation, abrupt
	)

	// HandshakeOutcomes counts session handshake outcomes.
	HandshakeOutcomes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "outcomes_total",
			Help:      "Total number of session key handshake outcomes",
		},
		[]string{"outcome"}, // ok, rejected, wrap_fail, policy_violation
	)
)
