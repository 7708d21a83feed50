package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the extraction stage.
type Metrics struct {
	// Pointers created by grounding outcome
	PointersCreated *prometheus.CounterVec

	// Reverification runs that flipped a pointer to NOT_FOUND
	PointersOrphaned prometheus.Counter

	// Extractor collaborator latency
	ExtractLatency prometheus.Histogram
}

// New creates a new Metrics instance with all extraction metrics registered.
func New() *Metrics {
	return &Metrics{
		PointersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_pointers_created_total",
			Help: "Source pointers created, by grounding match type",
		}, []string{"match_type"}),

		PointersOrphaned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "normative_pointers_orphaned_total",
			Help: "Pointers that lost grounding after an evidence text change",
		}),

		ExtractLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "normative_extract_duration_seconds",
			Help:    "Duration of extractor collaborator calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// IncrementPointersCreated records a created pointer by match type.
func (m *Metrics) IncrementPointersCreated(matchType string) {
	if m != nil {
		m.PointersCreated.WithLabelValues(matchType).Inc()
	}
}

// IncrementPointersOrphaned records a pointer flipping to NOT_FOUND.
func (m *Metrics) IncrementPointersOrphaned() {
	if m != nil {
		m.PointersOrphaned.Inc()
	}
}

// ObserveExtractLatency records the duration of one collaborator call.
func (m *Metrics) ObserveExtractLatency(seconds float64) {
	if m != nil {
		m.ExtractLatency.Observe(seconds)
	}
}
