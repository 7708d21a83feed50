package contentsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	csmetrics "normative/internal/contentsync/metrics"
	"normative/pkg/platform/sentinel"
	"normative/pkg/requestcontext"
)

// QueueBackend delivers a drained event to the external queue. Delivery is
// keyed by the deterministic event id so at-least-once redelivery collapses
// on the consumer side.
type QueueBackend interface {
	EnqueueJob(ctx context.Context, eventID string, payload []byte) error
}

// Dispatcher owns the durable event table: it records rule changes as rows
// and drains them to the queue backend.
type Dispatcher struct {
	store   Store
	backend QueueBackend
	metrics *csmetrics.Metrics
	log     *slog.Logger
}

func NewDispatcher(store Store, backend QueueBackend, m *csmetrics.Metrics, log *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, backend: backend, metrics: m, log: log}
}

// Enqueue records a rule change as a PENDING event and returns its id.
// Idempotent: re-emitting the same logical change (same rule, type, and
// effective date) while a row exists is a no-op. Runs on the context
// transaction when one is present, so callers can commit the event together
// with the state change that caused it.
func (d *Dispatcher) Enqueue(ctx context.Context, change RuleChange) (string, error) {
	id := EventID(change.RuleID, change.Type, change.EffectiveFrom)

	payload, err := json.Marshal(change.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	now := requestcontext.Now(ctx)
	ev := &Event{
		ID:            id,
		RuleID:        change.RuleID,
		Type:          change.Type,
		EffectiveFrom: change.EffectiveFrom,
		Status:        StatusPending,
		Payload:       payload,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.store.Insert(ctx, ev); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			d.log.Debug("sync event already recorded", "event", id, "rule", change.RuleID.String())
			return id, nil
		}
		return "", fmt.Errorf("record sync event: %w", err)
	}
	d.metrics.IncrementEnqueued(string(change.Type))
	return id, nil
}

// DrainPending pushes PENDING events to the queue backend in creation order
// and marks them ENQUEUED. A backend failure leaves the event PENDING for the
// next drain; the drain continues with the remaining events and reports the
// first failure. Returns the number of events handed to the backend.
func (d *Dispatcher) DrainPending(ctx context.Context) (int, error) {
	pending, err := d.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending events: %w", err)
	}

	var drained int
	var firstErr error
	for _, ev := range pending {
		if err := d.backend.EnqueueJob(ctx, ev.ID, ev.Payload); err != nil {
			d.log.Error("queue backend rejected event", "event", ev.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("enqueue event %s: %w", ev.ID, err)
			}
			continue
		}
		change := StatusChange{Status: StatusEnqueued, ExpectedVersion: ev.Version, Attempts: ev.Attempts}
		if err := d.store.UpdateStatus(ctx, ev.ID, change); err != nil {
			// A concurrent drain won the race; the event is already on its way.
			if errors.Is(err, sentinel.ErrStaleVersion) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("mark event %s enqueued: %w", ev.ID, err)
			}
			continue
		}
		drained++
		d.metrics.IncrementDrained()
	}
	return drained, firstErr
}
