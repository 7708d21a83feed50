// Package conflict detects and arbitrates contradictions between rules: two
// non-rejected rules for the same concept whose effective intervals overlap
// while their values differ. Policy resolution is conservative; a full tie is
// left OPEN for a human.
package conflict

import (
	"strings"
	"time"

	"normative/pkg/domain"
)

// Status of a conflict.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
)

// DecidedBy names the policy step (or human) that picked the winner.
type DecidedBy string

const (
	DecidedByAuthority  DecidedBy = "policy-authority"
	DecidedByRecency    DecidedBy = "policy-recency"
	DecidedByConfidence DecidedBy = "policy-confidence"
	DecidedByHuman      DecidedBy = "human"
)

// RegulatoryConflict records one contradiction between two rules. The pair is
// order-normalized (RuleA < RuleB by id string) so re-detection finds the
// existing row instead of creating a mirrored duplicate.
type RegulatoryConflict struct {
	ID          domain.ConflictID
	ConceptSlug string
	RuleA       domain.RuleID
	RuleB       domain.RuleID
	Status      Status
	WinnerID    *domain.RuleID
	DecidedBy   DecidedBy
	Reason      string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// normalizePair orders two rule ids so (a, b) and (b, a) name the same pair.
func normalizePair(a, b domain.RuleID) (domain.RuleID, domain.RuleID) {
	if strings.Compare(a.String(), b.String()) > 0 {
		return b, a
	}
	return a, b
}
