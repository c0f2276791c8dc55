package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	SearchOpSync    = "sync"
	SearchOpRemove  = "remove"
	SearchOpReindex = "reindex"

	ResultOK    = "ok"
	ResultError = "error"
)

// SearchSyncMetrics counts index writes so dropped syncs are visible.
type SearchSyncMetrics struct {
	operations *prometheus.CounterVec
	indexed    prometheus.Gauge
}

// NewSearchSyncMetrics registers the search sync metrics on reg.
func NewSearchSyncMetrics(reg prometheus.Registerer) *SearchSyncMetrics {
	if reg == nil {
		return &SearchSyncMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "sync_operations_total",
		Help:      "Search index write operations by outcome.",
	}, []string{"op", "result"})
	indexed := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "reindex_documents",
		Help:      "Documents written by the last full reindex.",
	})
	reg.MustRegister(operations, indexed)
	return &SearchSyncMetrics{operations: operations, indexed: indexed}
}

// Observe records one operation; err decides the result label.
func (m *SearchSyncMetrics) Observe(op string, err error) {
	if m == nil || m.operations == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(normalizeLabel(op), result).Inc()
}

func (m *SearchSyncMetrics) SetReindexed(count int) {
	if m == nil || m.indexed == nil {
		return
	}
	m.indexed.Set(float64(count))
}

// Operations exposes the operation counter for assertions.
func (m *SearchSyncMetrics) Operations() *prometheus.CounterVec {
	return m.operations
}

func (m *SearchSyncMetrics) Reindexed() prometheus.Gauge {
	return m.indexed
}
