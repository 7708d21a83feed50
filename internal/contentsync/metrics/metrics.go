package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the content-sync queue.
type Metrics struct {
	// New events recorded, by event type
	EventsEnqueued *prometheus.CounterVec

	// Events handed to the queue backend
	EventsDrained prometheus.Counter

	// Terminal worker outcomes, by status (DONE, DEAD_LETTERED, SKIPPED)
	EventsCompleted *prometheus.CounterVec

	// Dead-lettered events by fixed reason code
	DeadLettered *prometheus.CounterVec
}

// New creates a new Metrics instance with all content-sync metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_sync_events_enqueued_total",
			Help: "Content-sync events recorded, by event type",
		}, []string{"event_type"}),

		EventsDrained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "normative_sync_events_drained_total",
			Help: "Content-sync events handed to the queue backend",
		}),

		EventsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_sync_events_completed_total",
			Help: "Content-sync events reaching a terminal status",
		}, []string{"status"}),

		DeadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_sync_events_dead_lettered_total",
			Help: "Content-sync events dead-lettered, by reason",
		}, []string{"reason"}),
	}
}

// IncrementEnqueued records a newly recorded event.
func (m *Metrics) IncrementEnqueued(eventType string) {
	if m != nil {
		m.EventsEnqueued.WithLabelValues(eventType).Inc()
	}
}

// IncrementDrained records an event handed to the backend.
func (m *Metrics) IncrementDrained() {
	if m != nil {
		m.EventsDrained.Inc()
	}
}

// IncrementCompleted records an event reaching a terminal status.
func (m *Metrics) IncrementCompleted(status string) {
	if m != nil {
		m.EventsCompleted.WithLabelValues(status).Inc()
	}
}

// IncrementDeadLettered records a dead-lettered event by reason.
func (m *Metrics) IncrementDeadLettered(reason string) {
	if m != nil {
		m.DeadLettered.WithLabelValues(reason).Inc()
	}
}
