package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts scheduler activity. A nil *Metrics records nothing.
type Metrics struct {
	cycles     prometheus.Counter
	installs   *prometheus.CounterVec
	finishes   prometheus.Counter
	interrupts prometheus.Counter
	conflicts  prometheus.Counter
	running    prometheus.Gauge
}

// NewMetrics registers scheduler metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Control cycles executed.",
		}),
		installs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scheduler",
			Name:      "installs_total",
			Help:      "Tasks installed, by source.",
		}, []string{"source"}),
		finishes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scheduler",
			Name:      "finishes_total",
			Help:      "Tasks that finished on their own.",
		}),
		interrupts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scheduler",
			Name:      "interrupts_total",
			Help:      "Explicit tasks interrupted by eviction or cancellation.",
		}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskbot",
			Subsystem: "scheduler",
			Name:      "conflicts_total",
			Help:      "Installs rejected because a non-interruptible task held a resource.",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskbot",
			Subsystem: "scheduler",
			Name:      "running_tasks",
			Help:      "Explicit top-level tasks currently running.",
		}),
	}
}

func (m *Metrics) cycle(running int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.running.Set(float64(running))
}

func (m *Metrics) install(source string) {
	if m == nil {
		return
	}
	m.installs.WithLabelValues(source).Inc()
}

func (m *Metrics) finish() {
	if m == nil {
		return
	}
	m.finishes.Inc()
}

func (m *Metrics) interrupt() {
	if m == nil {
		return
	}
	m.interrupts.Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
