package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CryptoOperations tracks AES-GCM and RSA-OAEP operations.
	CryptoOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operations_total",
			Help:      "Total number of cryptographic operations",
		},
		[]string{"operation", "outcome"}, // seal/open/wrap/unwrap, success/auth_fail/error
	)

	// CryptoOperationDuration tracks crypto operation durations.
	CryptoOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operation_duration_seconds",
			Help:      "Duration of cryptographic operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
