// Package metrics exposes clipcore's Prometheus instrumentation, registered
// against a private registry so the process can host other registries
// (e.g. in tests) without collisions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clipcore"

// Registry is the private Prometheus registry all clipcore metrics register
// against.
var Registry = prometheus.NewRegistry()
