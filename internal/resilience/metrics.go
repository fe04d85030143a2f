package resilience

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/backend-koperasi/internal/obs"
)

var (
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	outboundRequests   *prometheus.CounterVec
)

// MustRegisterMetrics registers breaker and outbound request collectors. Registering
// twice against the same registry reuses the existing collectors.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	breakerState = obs.RegisterOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state per target: 0 closed, 1 open, 2 half open.",
	}, []string{"target"}))
	breakerTransitions = obs.RegisterOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state transitions.",
	}, []string{"target", "from", "to"}))
	outboundRequests = obs.RegisterOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_requests_total",
		Help:      "Outgoing HTTP calls by target and outcome.",
	}, []string{"target", "outcome"}))
}

func setStateGauge(target string, s State) {
	if breakerState != nil {
		breakerState.WithLabelValues(target).Set(float64(s))
	}
}

func recordTransition(target string, from, to State) {
	if breakerTransitions != nil {
		breakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	}
}

func recordOutbound(target, outcome string) {
	if outboundRequests != nil {
		outboundRequests.WithLabelValues(target, outcome).Inc()
	}
}
