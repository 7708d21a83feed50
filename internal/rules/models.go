// Package rules composes grounded source pointers into regulatory rules and
// drives each rule through its review lifecycle. A rule is the reviewed,
// releasable unit: one normative value for one concept over one effective
// interval, backed by citable pointers only.
package rules

import (
	"time"

	"normative/pkg/domain"
)

// ValueType describes how a rule's value string is interpreted downstream.
type ValueType string

const (
	ValueNumber  ValueType = "number"
	ValuePercent ValueType = "percent"
	ValueDate    ValueType = "date"
	ValueText    ValueType = "text"
	ValueMoney   ValueType = "money"
)

// RiskTier ranks the blast radius of publishing a wrong value. T0 is the
// highest: a bad T0 value misleads every downstream consumer.
type RiskTier string

const (
	TierT0 RiskTier = "T0"
	TierT1 RiskTier = "T1"
	TierT2 RiskTier = "T2"
	TierT3 RiskTier = "T3"
)

// Status is the review lifecycle state of a rule.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusPublished     Status = "PUBLISHED"
)

// transitions is the closed edge set of the rule lifecycle. The only
// backward edges lead to DRAFT: that is the reset used when backing evidence
// is invalidated, and it must be explicit.
var transitions = map[Status][]Status{
	StatusDraft:         {StatusPendingReview},
	StatusPendingReview: {StatusApproved, StatusRejected, StatusDraft},
	StatusApproved:      {StatusPublished, StatusDraft},
	StatusRejected:      {StatusDraft},
	StatusPublished:     {StatusDraft},
}

// CanTransition reports whether from → to is a legal lifecycle edge. Every
// status write in this package goes through this table; there is no second
// place where legality is decided.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RegulatoryRule is one reviewed normative value.
type RegulatoryRule struct {
	ID             domain.RuleID
	ConceptSlug    string
	Title          string
	Value          string
	ValueType      ValueType
	RiskTier       RiskTier
	Status         Status
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	// Confidence is the minimum confidence of the contributing pointers. A
	// rule is never more trustworthy than its weakest citation.
	Confidence float64
	PointerIDs []domain.PointerID
	// Version is the optimistic lock counter for concurrent review writes.
	Version      int
	SupersedesID *domain.RuleID
	ReviewedBy   string
	ReviewNote   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Cites reports whether the rule cites the given pointer.
func (r *RegulatoryRule) Cites(id domain.PointerID) bool {
	for _, p := range r.PointerIDs {
		if p == id {
			return true
		}
	}
	return false
}

// EffectiveOn reports whether the rule's [from, until) interval covers the
// given date.
func (r *RegulatoryRule) EffectiveOn(date time.Time) bool {
	if date.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveUntil == nil || date.Before(*r.EffectiveUntil)
}

// Overlaps reports whether two effective intervals intersect. Open-ended
// intervals extend to infinity.
func (r *RegulatoryRule) Overlaps(other *RegulatoryRule) bool {
	if r.EffectiveUntil != nil && !other.EffectiveFrom.Before(*r.EffectiveUntil) {
		return false
	}
	if other.EffectiveUntil != nil && !r.EffectiveFrom.Before(*other.EffectiveUntil) {
		return false
	}
	return true
}
