// Package metrics exposes the inhibit state of every checker to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"preventsleep/internal/agent"
)

const namespace = "prevent_sleep"

// Recorder turns agent snapshots into Prometheus metrics. It implements
// agent.Observer.
type Recorder struct {
	inhibited      *prometheus.GaugeVec
	state          *prometheus.GaugeVec
	inhibitCalls   *prometheus.CounterVec
	uninhibitCalls *prometheus.CounterVec
	loops          prometheus.Counter
}

// NewRecorder creates unregistered collectors
func NewRecorder() *Recorder {
	return &Recorder{
		inhibited: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inhibited",
				Help:      "Whether sleep is currently inhibited for the checker (1 = inhibited).",
			}, []string{"checker"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Current state of the checker (1 = current state, 0 = other states).",
			}, []string{"checker", "state"},
		),
		inhibitCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inhibit_calls_total",
				Help:      "Number of inhibitor locks acquired.",
			}, []string{"checker"},
		),
		uninhibitCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uninhibit_calls_total",
				Help:      "Number of inhibitor locks released after the grace period.",
			}, []string{"checker"},
		),
		loops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loops_total",
				Help:      "Number of completed check loops.",
			},
		),
	}
}

// Register registers all collectors with r. Collectors that are already
// registered are kept.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	cs := []prometheus.Collector{r.inhibited, r.state, r.inhibitCalls, r.uninhibitCalls, r.loops}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Observe implements agent.Observer
func (r *Recorder) Observe(_ int, snapshots []agent.Snapshot) {
	r.loops.Inc()

	for _, s := range snapshots {
		inhibited := 0.0
		if s.Inhibited {
			inhibited = 1
		}
		r.inhibited.WithLabelValues(s.Checker).Set(inhibited)

		for _, state := range agent.States {
			value := 0.0
			if state == s.State {
				value = 1
			}
			r.state.WithLabelValues(s.Checker, string(state)).Set(value)
		}

		if !s.Changed {
			continue
		}
		switch s.Action {
		case agent.ActionInhibit:
			r.inhibitCalls.WithLabelValues(s.Checker).Inc()
		case agent.ActionUninhibit:
			r.uninhibitCalls.WithLabelValues(s.Checker).Inc()
		}
	}
}
