package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "resto"
	subsystem = "resilience"
)

// Breaker and retry collectors, labelled by the guarded target.
var (
	// BreakerState is 0 while closed, 1 while open and 2 while half-open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "breaker_state",
		Help:      "Breaker position per target (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes per target.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "breaker_opened_total",
		Help:      "Times a target's breaker opened and callers fell back.",
	}, []string{"target"})

	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "retries_total",
		Help:      "Statements re-sent after a transient storage error.",
	}, []string{"target"})
)
