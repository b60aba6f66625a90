// Package obs wires closure store lifecycle notifications into Prometheus
// metrics.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"lineagecore/pkg/dag"
)

// MetricsObserver implements dag.Observer by counting lifecycle events per
// scope.
type MetricsObserver struct {
	linksCreated    *prometheus.CounterVec
	linksRemoved    *prometheus.CounterVec
	closureInserted *prometheus.CounterVec
	rebuilds        *prometheus.CounterVec
	rebuildEntries  *prometheus.CounterVec
	scopeResets     *prometheus.CounterVec
}

var _ dag.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver registers the counters with reg and returns the
// observer. Pass prometheus.DefaultRegisterer outside of tests.
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	m := &MetricsObserver{
		linksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineagecore",
			Name:      "links_created_total",
			Help:      "Parent/child links inserted, including root markers.",
		}, []string{"scope"}),
		linksRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineagecore",
			Name:      "links_removed_total",
			Help:      "Parent/child links removed, including root markers.",
		}, []string{"scope"}),
		closureInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineagecore",
			Name:      "closure_entries_inserted_total",
			Help:      "Closure entries inserted by link, rebuild, or seeding.",
		}, []string{"scope"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineagecore",
			Name:      "rebuilds_total",
			Help:      "Closure rebuild traversals completed.",
		}, []string{"scope"}),
		rebuildEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineagecore",
			Name:      "rebuild_entries_total",
			Help:      "Closure entries re-inserted by rebuild traversals.",
		}, []string{"scope"}),
		scopeResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineagecore",
			Name:      "scope_resets_total",
			Help:      "Reset operations committed.",
		}, []string{"scope"}),
	}
	reg.MustRegister(m.linksCreated, m.linksRemoved, m.closureInserted, m.rebuilds, m.rebuildEntries, m.scopeResets)
	return m
}

func (m *MetricsObserver) LinkCreated(scope string, _ dag.Link) {
	m.linksCreated.WithLabelValues(scope).Inc()
}

func (m *MetricsObserver) LinkRemoved(scope string, _ dag.Link) {
	m.linksRemoved.WithLabelValues(scope).Inc()
}

func (m *MetricsObserver) ClosureInserted(scope string, _ dag.ClosureEntry) {
	m.closureInserted.WithLabelValues(scope).Inc()
}

func (m *MetricsObserver) RebuildStarted(string, string) {}

func (m *MetricsObserver) RebuildFinished(scope, _ string, inserted int) {
	m.rebuilds.WithLabelValues(scope).Inc()
	m.rebuildEntries.WithLabelValues(scope).Add(float64(inserted))
}

func (m *MetricsObserver) ScopeReset(scope string, _ int) {
	m.scopeResets.WithLabelValues(scope).Inc()
}
