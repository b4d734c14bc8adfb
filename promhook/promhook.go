// Package promhook exposes escalation outcomes as Prometheus metrics.
package promhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tufeibaba/escalate"
)

var (
	// Outcomes counts escalated failures by the step that claimed them.
	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalate_outcomes_total",
			Help: "Escalated task failures by outcome",
		},
		[]string{"outcome"},
	)
)

// Hook returns an [escalate.Option] that counts every escalation outcome
// in [Outcomes]:
//
//	esc := escalate.NewEscalator(promhook.Hook())
func Hook() escalate.Option {
	return escalate.WithOnOutcome(func(o escalate.Outcome) {
		Outcomes.WithLabelValues(o.String()).Inc()
	})
}
