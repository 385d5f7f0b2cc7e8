package store

import (
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
)

// FallbackTotal counts store calls converted into a StoreFault, per command.
var FallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "flash_store_fallback_total",
		Help: "Total number of store calls that ended in the circuit breaker fallback.",
	},
	[]string{"command"},
)

func init() {
	prometheus.MustRegister(FallbackTotal)
}

// stateCollector is a Prometheus Collector that lazily reports the state of every
// breaker in a registry at scrape time.
type stateCollector struct {
	desc     *prometheus.Desc
	breakers *Breakers
}

// stateReg is the Prometheus registerer used for the state collector.
// Exposed as a variable so tests can substitute an isolated registry.
var stateReg prometheus.Registerer = prometheus.DefaultRegisterer

func registerStateCollector(b *Breakers) *stateCollector {
	c := &stateCollector{
		desc: prometheus.NewDesc(
			"flash_circuit_breaker_state",
			"Circuit breaker state per store command (0 closed, 1 half-open, 2 open).",
			[]string{"command"},
			nil,
		),
		breakers: b,
	}
	_ = stateReg.Register(c)
	return c
}

func (c *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *stateCollector) Collect(ch chan<- prometheus.Metric) {
	for cmd, state := range c.breakers.States() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, stateValue(state), cmd)
	}
}

func stateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return 0
	}
}
