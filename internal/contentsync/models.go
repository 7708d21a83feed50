// Package contentsync is the durable at-least-once queue that notifies
// external content systems of rule changes. Events are keyed by a
// deterministic id so re-emitting the same logical change is a no-op, and
// rows carry an optimistic version counter so concurrent workers cannot
// clobber each other's status updates.
package contentsync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"normative/pkg/domain"
)

// EventType labels the downstream-relevant change an event describes.
type EventType string

const (
	EventRuleReleased      EventType = "RULE_RELEASED"
	EventRuleSuperseded    EventType = "RULE_SUPERSEDED"
	EventRuleEffective     EventType = "RULE_EFFECTIVE"
	EventSourceChanged     EventType = "SOURCE_CHANGED"
	EventConfidenceDropped EventType = "CONFIDENCE_DROPPED"
)

// Status is the queue lifecycle state of an event.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusEnqueued     Status = "ENQUEUED"
	StatusProcessing   Status = "PROCESSING"
	StatusDone         Status = "DONE"
	StatusFailed       Status = "FAILED"
	StatusDeadLettered Status = "DEAD_LETTERED"
	StatusSkipped      Status = "SKIPPED"
)

// Active reports whether the event is still in flight. Enqueuing the same
// logical change while an active row exists is a no-op.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusEnqueued || s == StatusProcessing
}

// DeadLetterReason is the fixed vocabulary for unprocessable events.
// Operators triage by category, so free-text reasons are not allowed.
type DeadLetterReason string

const (
	ReasonUnmappedConcept DeadLetterReason = "UNMAPPED_CONCEPT"
	ReasonInvalidPayload  DeadLetterReason = "INVALID_PAYLOAD"
	ReasonMissingPointers DeadLetterReason = "MISSING_POINTERS"
	ReasonContentNotFound DeadLetterReason = "CONTENT_NOT_FOUND"
	ReasonPatchConflict   DeadLetterReason = "PATCH_CONFLICT"
	ReasonRepoWriteFailed DeadLetterReason = "REPO_WRITE_FAILED"
	ReasonDBWriteFailed   DeadLetterReason = "DB_WRITE_FAILED"
)

// Event is one durable queue entry.
type Event struct {
	ID            string // deterministic, see EventID
	RuleID        domain.RuleID
	Type          EventType
	EffectiveFrom time.Time
	Status        Status
	// Version is the optimistic lock counter; every status update checks and
	// increments it.
	Version          int
	Attempts         int
	DeadLetterReason DeadLetterReason
	Note             string
	Payload          json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RuleChange describes one downstream-relevant change to enqueue.
type RuleChange struct {
	RuleID        domain.RuleID
	Type          EventType
	EffectiveFrom time.Time
	Payload       any
}

// EventID derives the deterministic event id from the change's semantic key.
// It is a pure function of (ruleID, type, effectiveFrom): the idempotent
// enqueue guarantee depends on this never being random.
func EventID(ruleID domain.RuleID, t EventType, effectiveFrom time.Time) string {
	key := fmt.Sprintf("%s|%s|%s", ruleID.String(), t, effectiveFrom.UTC().Format("2006-01-02"))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
