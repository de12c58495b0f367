// Package metrics exposes Prometheus counters for play sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the session metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	ruleApplications     *prometheus.CounterVec
	constraintViolations *prometheus.CounterVec
	worldFacts           prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil registry
// returns a nil Collector.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		return nil
	}
	c := &Collector{
		ruleApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ifkit",
			Name:      "rule_applications_total",
			Help:      "Rule applications by outcome",
		}, []string{"rule", "outcome"}),

		constraintViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ifkit",
			Name:      "constraint_violations_total",
			Help:      "Constraint violations that rolled back a rule application",
		}, []string{"constraint"}),

		worldFacts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ifkit",
			Name:      "world_facts",
			Help:      "Facts currently holding in the session world",
		}),
	}
	reg.MustRegister(c.ruleApplications, c.constraintViolations, c.worldFacts)
	return c
}

// RuleApplied counts one application of rule with the given outcome.
func (c *Collector) RuleApplied(rule, outcome string) {
	if c == nil {
		return
	}
	c.ruleApplications.WithLabelValues(rule, outcome).Inc()
}

// ConstraintViolated counts one violation of each named constraint.
func (c *Collector) ConstraintViolated(names ...string) {
	if c == nil {
		return
	}
	for _, n := range names {
		c.constraintViolations.WithLabelValues(n).Inc()
	}
}

// SetWorldFacts records the current world size.
func (c *Collector) SetWorldFacts(n int) {
	if c == nil {
		return
	}
	c.worldFacts.Set(float64(n))
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
