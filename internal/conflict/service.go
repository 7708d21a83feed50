package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"normative/internal/evidence"
	"normative/internal/extraction"
	"normative/internal/grounding"
	"normative/internal/rules"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/sentinel"
	"normative/pkg/requestcontext"
)

// RuleSource supplies the rules under arbitration. Wired to the rules store.
type RuleSource interface {
	FindByID(ctx context.Context, id domain.RuleID) (*rules.RegulatoryRule, error)
	ListByConcept(ctx context.Context, conceptSlug string) ([]*rules.RegulatoryRule, error)
}

// PointerSource resolves the pointers a rule cites. Wired to the extraction
// store.
type PointerSource interface {
	ListByIDs(ctx context.Context, ids []domain.PointerID) ([]*extraction.SourcePointer, error)
}

// EvidenceSource resolves evidence rows for authority ranking. Wired to the
// evidence store.
type EvidenceSource interface {
	FindByID(ctx context.Context, id domain.EvidenceID) (*evidence.Evidence, error)
}

// Service detects contradictions and resolves them by policy.
type Service struct {
	store     Store
	ruleSrc   RuleSource
	pointers  PointerSource
	evidences EvidenceSource
	log       *slog.Logger
}

func NewService(store Store, ruleSrc RuleSource, pointers PointerSource, evidences EvidenceSource, log *slog.Logger) *Service {
	return &Service{store: store, ruleSrc: ruleSrc, pointers: pointers, evidences: evidences, log: log}
}

// Detect scans a concept's non-rejected rules for contradictions: overlapping
// effective intervals with differing normalized values. Exactly one conflict
// row exists per rule pair; re-detection of a known pair is a no-op.
func (s *Service) Detect(ctx context.Context, conceptSlug string) ([]*RegulatoryConflict, error) {
	all, err := s.ruleSrc.ListByConcept(ctx, conceptSlug)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	var candidates []*rules.RegulatoryRule
	for _, r := range all {
		if r.Status != rules.StatusRejected {
			candidates = append(candidates, r)
		}
	}

	var created []*RegulatoryConflict
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if !a.Overlaps(b) {
				continue
			}
			if grounding.Normalize(a.Value) == grounding.Normalize(b.Value) {
				continue
			}
			if _, err := s.store.FindByPair(ctx, a.ID, b.ID); err == nil {
				continue
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				return created, fmt.Errorf("look up conflict pair: %w", err)
			}

			ruleA, ruleB := normalizePair(a.ID, b.ID)
			c := &RegulatoryConflict{
				ID:          domain.NewConflictID(),
				ConceptSlug: conceptSlug,
				RuleA:       ruleA,
				RuleB:       ruleB,
				Status:      StatusOpen,
				Reason:      fmt.Sprintf("overlapping intervals with values %q and %q", a.Value, b.Value),
				CreatedAt:   requestcontext.Now(ctx),
			}
			if err := s.store.Create(ctx, c); err != nil {
				return created, fmt.Errorf("create conflict: %w", err)
			}
			s.log.Info("conflict detected", "concept", conceptSlug,
				"rule_a", ruleA.String(), "rule_b", ruleB.String())
			created = append(created, c)
		}
	}
	return created, nil
}

// Resolve applies the arbitration policy to an open conflict: source
// authority first, then recency of effect, then confidence. A full tie stays
// OPEN; policy never guesses.
func (s *Service) Resolve(ctx context.Context, id domain.ConflictID) (*RegulatoryConflict, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load conflict: %w", err)
	}
	if c.Status != StatusOpen {
		return c, nil
	}

	a, err := s.ruleSrc.FindByID(ctx, c.RuleA)
	if err != nil {
		return nil, fmt.Errorf("load rule a: %w", err)
	}
	b, err := s.ruleSrc.FindByID(ctx, c.RuleB)
	if err != nil {
		return nil, fmt.Errorf("load rule b: %w", err)
	}

	winner, decidedBy, reason := s.arbitrate(ctx, a, b)
	if winner == nil {
		s.log.Info("conflict tie, staying open", "conflict", id.String())
		return c, nil
	}

	now := requestcontext.Now(ctx)
	c.Status = StatusResolved
	c.WinnerID = &winner.ID
	c.DecidedBy = decidedBy
	c.Reason = reason
	c.ResolvedAt = &now
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("persist resolution: %w", err)
	}
	return c, nil
}

// ResolveByHuman records a human arbitration decision for an open conflict.
func (s *Service) ResolveByHuman(ctx context.Context, id domain.ConflictID, winner domain.RuleID, actor, reason string) (*RegulatoryConflict, error) {
	if actor == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "human resolution requires an actor")
	}
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load conflict: %w", err)
	}
	if c.Status != StatusOpen {
		return nil, domainerrors.New(domainerrors.CodeIllegalTransition,
			fmt.Sprintf("conflict %s is already %s", id, c.Status))
	}
	if winner != c.RuleA && winner != c.RuleB {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput,
			fmt.Sprintf("rule %s is not part of conflict %s", winner, id))
	}

	now := requestcontext.Now(ctx)
	c.Status = StatusResolved
	c.WinnerID = &winner
	c.DecidedBy = DecidedByHuman
	c.Reason = fmt.Sprintf("%s: %s", actor, reason)
	c.ResolvedAt = &now
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("persist resolution: %w", err)
	}
	return c, nil
}

// arbitrate picks a winner or returns nil on a full tie.
func (s *Service) arbitrate(ctx context.Context, a, b *rules.RegulatoryRule) (*rules.RegulatoryRule, DecidedBy, string) {
	rankA := s.bestAuthority(ctx, a)
	rankB := s.bestAuthority(ctx, b)
	if rankA != rankB {
		winner := a
		if rankB < rankA {
			winner = b
		}
		return winner, DecidedByAuthority,
			fmt.Sprintf("authority rank %d beats %d", min(rankA, rankB), max(rankA, rankB))
	}

	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		winner := a
		if b.EffectiveFrom.After(a.EffectiveFrom) {
			winner = b
		}
		return winner, DecidedByRecency,
			fmt.Sprintf("later effective date %s wins", winner.EffectiveFrom.Format("2006-01-02"))
	}

	if a.Confidence != b.Confidence {
		winner := a
		if b.Confidence > a.Confidence {
			winner = b
		}
		return winner, DecidedByConfidence,
			fmt.Sprintf("higher confidence %.2f wins", winner.Confidence)
	}

	return nil, "", ""
}

// bestAuthority is the best (lowest) authority rank among the evidence
// sources backing a rule. Missing evidence rows are soft references and are
// skipped.
func (s *Service) bestAuthority(ctx context.Context, rule *rules.RegulatoryRule) int {
	pointers, err := s.pointers.ListByIDs(ctx, rule.PointerIDs)
	if err != nil {
		return unrankedAuthority
	}
	best := unrankedAuthority
	for _, p := range pointers {
		ev, err := s.evidences.FindByID(ctx, p.EvidenceID)
		if err != nil {
			continue
		}
		if rank := AuthorityRank(ev.SourceURL); rank < best {
			best = rank
		}
	}
	return best
}
