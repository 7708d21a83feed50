package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"normative/internal/contentsync"
	"normative/pkg/platform/sentinel"
)

// ContentRepo is the downstream content system that consumes rule changes.
type ContentRepo interface {
	ApplyRuleChange(ctx context.Context, eventID string, payload json.RawMessage) error
}

// Repo errors the handler maps to fixed dead-letter reasons.
var (
	ErrPatchConflict   = errors.New("content patch conflict")
	ErrContentNotFound = errors.New("content not found")
)

// SyncHandler consumes content-sync events: it validates the event against
// the rule corpus and forwards it to the content repo. Unrecoverable
// conditions map to the fixed dead-letter vocabulary so operators can triage
// by category.
type SyncHandler struct {
	rules Store
	repo  ContentRepo
	log   *slog.Logger
}

func NewSyncHandler(store Store, repo ContentRepo, log *slog.Logger) *SyncHandler {
	return &SyncHandler{rules: store, repo: repo, log: log}
}

func (h *SyncHandler) Handle(ctx context.Context, ev *contentsync.Event) error {
	var p eventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return &contentsync.DeadLetterError{Reason: contentsync.ReasonInvalidPayload, Note: err.Error()}
	}
	if p.ConceptSlug == "" || p.Value == "" {
		return &contentsync.DeadLetterError{Reason: contentsync.ReasonInvalidPayload, Note: "payload missing conceptSlug or value"}
	}
	if _, ok := ConceptBySlug(p.ConceptSlug); !ok {
		return &contentsync.DeadLetterError{Reason: contentsync.ReasonUnmappedConcept, Note: "no concept mapping for " + p.ConceptSlug}
	}

	rule, err := h.rules.FindByID(ctx, ev.RuleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &contentsync.DeadLetterError{Reason: contentsync.ReasonContentNotFound, Note: "rule " + ev.RuleID.String() + " no longer exists"}
		}
		return &contentsync.TransientError{Reason: contentsync.ReasonDBWriteFailed, Err: err}
	}
	if len(rule.PointerIDs) == 0 {
		return &contentsync.DeadLetterError{Reason: contentsync.ReasonMissingPointers, Note: "rule " + ev.RuleID.String() + " cites no pointers"}
	}
	// A reset that landed after this event was raised makes it stale: the
	// rule will re-enter the pipeline and raise fresh events.
	if ev.Type != contentsync.EventConfidenceDropped && ev.Type != contentsync.EventSourceChanged && rule.Status == StatusDraft {
		return &contentsync.SkipError{Note: "rule returned to draft before sync"}
	}

	if err := h.repo.ApplyRuleChange(ctx, ev.ID, ev.Payload); err != nil {
		switch {
		case errors.Is(err, ErrPatchConflict):
			return &contentsync.DeadLetterError{Reason: contentsync.ReasonPatchConflict, Note: err.Error()}
		case errors.Is(err, ErrContentNotFound):
			return &contentsync.DeadLetterError{Reason: contentsync.ReasonContentNotFound, Note: err.Error()}
		default:
			return &contentsync.TransientError{Reason: contentsync.ReasonRepoWriteFailed, Err: err}
		}
	}
	h.log.Info("rule change applied downstream", "event", ev.ID, "rule", ev.RuleID.String(), "type", string(ev.Type))
	return nil
}

// WebhookContentRepo delivers rule changes to an external content system over
// HTTP. The endpoint's status codes carry the patch semantics: 404 means the
// target content does not exist, 409 means it was concurrently modified.
type WebhookContentRepo struct {
	url    string
	client *http.Client
}

func NewWebhookContentRepo(url string) *WebhookContentRepo {
	return &WebhookContentRepo{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *WebhookContentRepo) ApplyRuleChange(ctx context.Context, eventID string, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", eventID)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post rule change: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: endpoint returned 404", ErrContentNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: endpoint returned 409", ErrPatchConflict)
	default:
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
}
