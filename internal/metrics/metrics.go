// Package metrics exports engine measurements to Prometheus.
package metrics

import (
	"github.com/dkeye/callstate/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "callstate"

// Metrics implements app.Recorder on a private registry.
type Metrics struct {
	registry          *prometheus.Registry
	StateVersion      prometheus.Gauge
	ActiveCalls       prometheus.Gauge
	RenderTransitions *prometheus.CounterVec
	RenderFailures    prometheus.Counter
	OperationErrors   *prometheus.CounterVec
	IDRenames         prometheus.Counter
	IDReuse           prometheus.Counter
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		StateVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_version",
			Help:      "Version of the latest committed snapshot",
		}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Calls in the active map of the latest snapshot",
		}),
		RenderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_transitions_total",
			Help:      "Render state transitions by target state",
		}, []string{"to"}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "View creations that failed",
		}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed SDK operations by target",
		}, []string{"target"}),
		IDRenames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_renames_total",
			Help:      "Recorded call id renames",
		}),
		IDReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_reuse_total",
			Help:      "Renames that reused an id already mapped elsewhere",
		}),
	}
	r.MustRegister(m.StateVersion, m.ActiveCalls, m.RenderTransitions, m.RenderFailures,
		m.OperationErrors, m.IDRenames, m.IDReuse)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) StateCommitted(st *domain.State) {
	m.StateVersion.Set(float64(st.Version))
	m.ActiveCalls.Set(float64(len(st.Calls)))
}

func (m *Metrics) RenderTransition(to domain.RenderStatus) {
	m.RenderTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) RenderFailed()                             { m.RenderFailures.Inc() }
func (m *Metrics) OperationFailed(target domain.ErrorTarget) { m.OperationErrors.WithLabelValues(string(target)).Inc() }
func (m *Metrics) CallRenamed()                              { m.IDRenames.Inc() }
func (m *Metrics) IDReused()                                 { m.IDReuse.Inc() }
