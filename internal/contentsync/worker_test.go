package contentsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"normative/pkg/domain"
)

type scriptedHandler struct {
	errs  []error
	calls int
}

func (h *scriptedHandler) Handle(context.Context, *Event) error {
	defer func() { h.calls++ }()
	if h.calls < len(h.errs) {
		return h.errs[h.calls]
	}
	return nil
}

type WorkerSuite struct {
	suite.Suite
	ctx        context.Context
	store      *InMemoryStore
	backend    *MemoryBackend
	dispatcher *Dispatcher
}

func (s *WorkerSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.backend = NewMemoryBackend()
	s.dispatcher = NewDispatcher(s.store, s.backend, nil, log)
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) enqueuedEvent() *Event {
	id, err := s.dispatcher.Enqueue(s.ctx, RuleChange{
		RuleID:        domain.NewRuleID(),
		Type:          EventRuleReleased,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload:       map[string]string{"conceptSlug": "pdv-opca-stopa"},
	})
	s.Require().NoError(err)
	_, err = s.dispatcher.DrainPending(s.ctx)
	s.Require().NoError(err)
	ev, err := s.store.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return ev
}

func (s *WorkerSuite) newWorker(h Handler, maxAttempts int) *Worker {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(s.store, h, maxAttempts, time.Millisecond, nil, log)
}

func (s *WorkerSuite) TestSuccessMarksDone() {
	ev := s.enqueuedEvent()
	h := &scriptedHandler{}
	s.Require().NoError(s.newWorker(h, 3).Process(s.ctx, ev))

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusDone, got.Status)
	s.Equal(1, got.Attempts)
	s.Equal(1, h.calls)
}

func (s *WorkerSuite) TestTransientFailureRetriesThenSucceeds() {
	ev := s.enqueuedEvent()
	h := &scriptedHandler{errs: []error{
		&TransientError{Reason: ReasonRepoWriteFailed, Err: errors.New("git push timeout")},
		&TransientError{Reason: ReasonRepoWriteFailed, Err: errors.New("git push timeout")},
	}}
	s.Require().NoError(s.newWorker(h, 3).Process(s.ctx, ev))

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusDone, got.Status)
	s.Equal(3, got.Attempts)
}

func (s *WorkerSuite) TestTransientExhaustionDeadLetters() {
	ev := s.enqueuedEvent()
	boom := &TransientError{Reason: ReasonRepoWriteFailed, Err: errors.New("git push timeout")}
	h := &scriptedHandler{errs: []error{boom, boom, boom}}
	s.Require().NoError(s.newWorker(h, 3).Process(s.ctx, ev))

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusDeadLettered, got.Status)
	s.Equal(ReasonRepoWriteFailed, got.DeadLetterReason)
	s.Equal(3, got.Attempts, "retry budget is bounded")
}

func (s *WorkerSuite) TestPermanentFailureDeadLettersImmediately() {
	ev := s.enqueuedEvent()
	h := &scriptedHandler{errs: []error{
		&DeadLetterError{Reason: ReasonUnmappedConcept, Note: "no content page for concept pdv-prag"},
	}}
	s.Require().NoError(s.newWorker(h, 5).Process(s.ctx, ev))

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusDeadLettered, got.Status)
	s.Equal(ReasonUnmappedConcept, got.DeadLetterReason)
	s.Equal(1, got.Attempts, "permanent failures must not burn retries")
	s.Equal(1, h.calls)
}

func (s *WorkerSuite) TestSkipErrorMarksSkipped() {
	ev := s.enqueuedEvent()
	h := &scriptedHandler{errs: []error{&SkipError{Note: "rule superseded before sync"}}}
	s.Require().NoError(s.newWorker(h, 3).Process(s.ctx, ev))

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusSkipped, got.Status)
}

func (s *WorkerSuite) TestUnclassifiedErrorIsTransient() {
	ev := s.enqueuedEvent()
	h := &scriptedHandler{errs: []error{errors.New("connection reset"), errors.New("connection reset")}}
	s.Require().NoError(s.newWorker(h, 2).Process(s.ctx, ev))

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusDeadLettered, got.Status)
	s.Equal(ReasonDBWriteFailed, got.DeadLetterReason)
}

func (s *WorkerSuite) TestRequeueStaleReclaimsAbandonedEvents() {
	ev := s.enqueuedEvent()

	// A worker claims the event and dies before finishing.
	claim := StatusChange{Status: StatusProcessing, ExpectedVersion: ev.Version, Attempts: ev.Attempts}
	s.Require().NoError(s.store.UpdateStatus(s.ctx, ev.ID, claim))
	s.store.mu.Lock()
	s.store.rows[ev.ID].UpdatedAt = time.Now().Add(-10 * time.Minute)
	s.store.mu.Unlock()

	w := s.newWorker(&scriptedHandler{}, 3)
	n, err := w.RequeueStale(s.ctx, 5*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusEnqueued, got.Status)

	// The reclaimed event runs to completion on the next pass.
	s.Require().NoError(w.ProcessEnqueued(s.ctx))
	got, err = s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusDone, got.Status)
}

func (s *WorkerSuite) TestRequeueStaleLeavesLiveClaimsAlone() {
	ev := s.enqueuedEvent()
	claim := StatusChange{Status: StatusProcessing, ExpectedVersion: ev.Version, Attempts: ev.Attempts}
	s.Require().NoError(s.store.UpdateStatus(s.ctx, ev.ID, claim))

	n, err := s.newWorker(&scriptedHandler{}, 3).RequeueStale(s.ctx, 5*time.Minute)
	s.Require().NoError(err)
	s.Equal(0, n)

	got, err := s.store.FindByID(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusProcessing, got.Status, "a fresh claim belongs to its worker")
}

func (s *WorkerSuite) TestLostClaimRaceIsSilent() {
	ev := s.enqueuedEvent()

	// Another worker claims the event first.
	other := s.newWorker(&scriptedHandler{}, 3)
	s.Require().NoError(other.ProcessEnqueued(s.ctx))

	// Our snapshot still carries the pre-claim version.
	h := &scriptedHandler{}
	s.Require().NoError(s.newWorker(h, 3).Process(s.ctx, ev))
	s.Equal(0, h.calls, "losing the claim must not invoke the handler")
}
