package gadget

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Directive outcomes.
const (
	OutcomeDispatched = "dispatched"
	OutcomeMalformed  = "malformed"
	OutcomeIgnored    = "ignored"
	OutcomeUnknown    = "unknown"
	OutcomeFailed     = "failed"
)

// Metrics records what happens to incoming directives.
type Metrics struct {
	// Directives counts directives by outcome.
	Directives *prometheus.CounterVec
	// CommandDuration records how long each command's motion takes.
	CommandDuration *prometheus.HistogramVec
	// Connected is 1 while the directive link is up.
	Connected prometheus.Gauge
}

// NewMetrics creates the gadget metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Directives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armgadget_directives_total",
				Help: "Directives received, by outcome.",
			},
			[]string{"outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "armgadget_command_duration_seconds",
				Help:    "Time spent running a command's motion sequence.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 6, 10},
			},
			[]string{"command"},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "armgadget_link_connected",
				Help: "Whether the directive link is connected (1) or not (0).",
			},
		),
	}
	reg.MustRegister(m.Directives, m.CommandDuration, m.Connected)
	return m
}
