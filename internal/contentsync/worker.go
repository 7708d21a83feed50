package contentsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	csmetrics "normative/internal/contentsync/metrics"
	"normative/pkg/platform/sentinel"
)

// Handler applies one event to the downstream content system. Errors are
// classified with DeadLetterError (unrecoverable, fixed reason), SkipError
// (no longer relevant), or TransientError (retry with backoff). An
// unclassified error is treated as transient with reason DB_WRITE_FAILED.
type Handler interface {
	Handle(ctx context.Context, ev *Event) error
}

// DeadLetterError marks an event as unprocessable. The worker dead-letters it
// immediately, without burning the remaining attempts.
type DeadLetterError struct {
	Reason DeadLetterReason
	Note   string
}

func (e *DeadLetterError) Error() string {
	return fmt.Sprintf("dead letter (%s): %s", e.Reason, e.Note)
}

// SkipError marks an event as no longer relevant, e.g. the rule was
// superseded before the event was processed.
type SkipError struct {
	Note string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped: %s", e.Note)
}

// TransientError wraps a retryable failure. Reason is the dead-letter code
// used if the retry budget runs out.
type TransientError struct {
	Reason DeadLetterReason
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient (%s): %v", e.Reason, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Worker processes enqueued events with bounded retries. All status writes go
// through the store's compare-and-swap, so two workers racing on the same
// event cannot both win.
type Worker struct {
	store       Store
	handler     Handler
	maxAttempts int
	baseBackoff time.Duration
	metrics     *csmetrics.Metrics
	log         *slog.Logger
}

func NewWorker(store Store, handler Handler, maxAttempts int, baseBackoff time.Duration, m *csmetrics.Metrics, log *slog.Logger) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Worker{
		store:       store,
		handler:     handler,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		metrics:     m,
		log:         log,
	}
}

// ProcessEnqueued claims and processes every ENQUEUED event once. Events
// another worker claims mid-flight are skipped silently.
func (w *Worker) ProcessEnqueued(ctx context.Context) error {
	events, err := w.store.ListByStatus(ctx, StatusEnqueued)
	if err != nil {
		return fmt.Errorf("list enqueued events: %w", err)
	}
	for _, ev := range events {
		if err := w.Process(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// RequeueStale returns PROCESSING events whose claim went stale back to
// ENQUEUED. A worker that crashed or lost its context mid-claim leaves the
// row PROCESSING; without this sweep the event would never run again.
// olderThan bounds how long a live worker may legitimately hold a claim, so
// it must exceed the worst-case handler time including retries and backoff.
// The requeue is a compare-and-swap: a claim that advances concurrently is
// left alone.
func (w *Worker) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	events, err := w.store.ListByStatus(ctx, StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing events: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	requeued := 0
	for _, ev := range events {
		if ev.UpdatedAt.After(cutoff) {
			continue
		}
		change := StatusChange{Status: StatusEnqueued, ExpectedVersion: ev.Version, Attempts: ev.Attempts}
		if err := w.store.UpdateStatus(ctx, ev.ID, change); err != nil {
			if errors.Is(err, sentinel.ErrStaleVersion) {
				continue
			}
			return requeued, fmt.Errorf("requeue event %s: %w", ev.ID, err)
		}
		w.log.Info("stale claim requeued", "event", ev.ID, "attempts", ev.Attempts)
		requeued++
	}
	return requeued, nil
}

// Process runs one event to a terminal status: DONE, SKIPPED, or
// DEAD_LETTERED. A lost claim race returns nil; a context cancellation leaves
// the event PROCESSING for a later sweep.
func (w *Worker) Process(ctx context.Context, ev *Event) error {
	claim := StatusChange{Status: StatusProcessing, ExpectedVersion: ev.Version, Attempts: ev.Attempts}
	if err := w.store.UpdateStatus(ctx, ev.ID, claim); err != nil {
		if errors.Is(err, sentinel.ErrStaleVersion) {
			return nil
		}
		return fmt.Errorf("claim event %s: %w", ev.ID, err)
	}
	version := ev.Version + 1

	attempts := ev.Attempts
	var lastTransient *TransientError
	for attempts < w.maxAttempts {
		attempts++
		err := w.handler.Handle(ctx, ev)
		if err == nil {
			return w.finish(ctx, ev, version, attempts, StatusChange{Status: StatusDone})
		}

		var dle *DeadLetterError
		if errors.As(err, &dle) {
			w.log.Warn("event dead-lettered", "event", ev.ID, "reason", string(dle.Reason), "note", dle.Note)
			w.metrics.IncrementDeadLettered(string(dle.Reason))
			return w.finish(ctx, ev, version, attempts, StatusChange{
				Status:           StatusDeadLettered,
				DeadLetterReason: dle.Reason,
				Note:             dle.Note,
			})
		}
		var skip *SkipError
		if errors.As(err, &skip) {
			return w.finish(ctx, ev, version, attempts, StatusChange{Status: StatusSkipped, Note: skip.Note})
		}

		lastTransient = &TransientError{Reason: ReasonDBWriteFailed, Err: err}
		var te *TransientError
		if errors.As(err, &te) {
			lastTransient = te
		}
		w.log.Warn("event attempt failed", "event", ev.ID, "attempt", attempts, "error", err)

		if attempts < w.maxAttempts {
			if err := sleep(ctx, w.backoff(attempts)); err != nil {
				return err
			}
		}
	}

	w.metrics.IncrementDeadLettered(string(lastTransient.Reason))
	return w.finish(ctx, ev, version, attempts, StatusChange{
		Status:           StatusDeadLettered,
		DeadLetterReason: lastTransient.Reason,
		Note:             lastTransient.Error(),
	})
}

func (w *Worker) finish(ctx context.Context, ev *Event, version, attempts int, change StatusChange) error {
	change.ExpectedVersion = version
	change.Attempts = attempts
	if err := w.store.UpdateStatus(ctx, ev.ID, change); err != nil {
		return fmt.Errorf("finish event %s: %w", ev.ID, err)
	}
	w.metrics.IncrementCompleted(string(change.Status))
	return nil
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := w.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
