package judge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "factbase"

// Metrics counts the work done by judge runs. All methods are safe on a
// nil *Metrics, which records nothing.
type Metrics struct {
	// TuplesProcessed counts JoinOnce tuples marked seen.
	// Labels: judge, mode (draw, maybe, consider)
	TuplesProcessed *prometheus.CounterVec

	// CursorUnits counts Iterate units persisted.
	// Labels: judge, label (cursor label), outcome (advanced, idle)
	CursorUnits *prometheus.CounterVec

	// Providers counts Incremate provider outcomes.
	// Labels: judge, outcome (ran, present, budget)
	Providers *prometheus.CounterVec

	// FactsInserted counts facts created by the runtime.
	// Labels: judge
	FactsInserted *prometheus.CounterVec
}

// NewMetrics creates the judge counters and registers them with reg.
// Use a fresh prometheus.NewRegistry per process or test.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TuplesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tuples_processed_total",
			Help:      "Join tuples processed and marked seen",
		}, []string{"judge", "mode"}),
		CursorUnits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cursor_units_total",
			Help:      "Partition cursor units persisted",
		}, []string{"judge", "label", "outcome"}),
		Providers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "providers_total",
			Help:      "Incremate provider outcomes",
		}, []string{"judge", "outcome"}),
		FactsInserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "facts_inserted_total",
			Help:      "Facts inserted by judges",
		}, []string{"judge"}),
	}
}

func (m *Metrics) tuple(judge string, mode Mode) {
	if m == nil {
		return
	}
	m.TuplesProcessed.WithLabelValues(judge, mode.String()).Inc()
}

func (m *Metrics) unit(judge, label string, advanced bool) {
	if m == nil {
		return
	}
	outcome := "idle"
	if advanced {
		outcome = "advanced"
	}
	m.CursorUnits.WithLabelValues(judge, label, outcome).Inc()
}

func (m *Metrics) provider(judge, outcome string) {
	if m == nil {
		return
	}
	m.Providers.WithLabelValues(judge, outcome).Inc()
}

func (m *Metrics) inserted(judge string) {
	if m == nil {
		return
	}
	m.FactsInserted.WithLabelValues(judge).Inc()
}
