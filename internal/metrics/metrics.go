// Package metrics holds the prometheus instruments of the launch flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Launches counts launch attempts by outcome.
var Launches *prometheus.CounterVec //nolint:gochecknoglobals

// Launch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeChoice   = "account_choice"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Init registers the counters. Call once at service start.
func Init(service string) {
	if Launches != nil {
		return
	}

	Launches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "lti_launches_total",
			Help:        "Number of launch attempts, differentiated by outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"outcome"},
	)
}
