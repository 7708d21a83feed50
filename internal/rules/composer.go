package rules

import (
	"context"
	"fmt"
	"time"

	"normative/internal/extraction"
	"normative/internal/grounding"
	"normative/pkg/domain"
	"normative/pkg/requestcontext"
)

// PointerSource supplies the source pointers extracted from an evidence.
// Wired to the extraction store.
type PointerSource interface {
	ListByEvidence(ctx context.Context, evidenceID domain.EvidenceID) ([]*extraction.SourcePointer, error)
}

// ComposeReport summarizes one composition run.
type ComposeReport struct {
	RulesCreated int
	// UnmappedDomains lists extractor domain labels with no concept table
	// row. They never become rules and need a table extension.
	UnmappedDomains []string
	// SkippedNotCitable counts pointers excluded because their quote did not
	// verify against the evidence text.
	SkippedNotCitable int
}

// Compose groups the citable pointers of an evidence by concept and emits one
// DRAFT rule per concept. The rule's confidence is the minimum of its
// contributing pointers; pointers whose quote failed verification are never
// cited.
func (s *Service) Compose(ctx context.Context, evidenceID domain.EvidenceID, effectiveFrom time.Time) ([]*RegulatoryRule, ComposeReport, error) {
	pointers, err := s.pointers.ListByEvidence(ctx, evidenceID)
	if err != nil {
		return nil, ComposeReport{}, fmt.Errorf("list pointers: %w", err)
	}

	var report ComposeReport
	grouped := make(map[string][]*extraction.SourcePointer)
	concepts := make(map[string]Concept)
	seenUnmapped := make(map[string]bool)
	for _, p := range pointers {
		if !p.Citable() {
			report.SkippedNotCitable++
			continue
		}
		concept, ok := Classify(p.Domain)
		if !ok {
			if !seenUnmapped[p.Domain] {
				seenUnmapped[p.Domain] = true
				report.UnmappedDomains = append(report.UnmappedDomains, p.Domain)
				s.log.Warn("no concept mapping for extractor domain", "domain", p.Domain, "evidence", evidenceID.String())
			}
			continue
		}
		grouped[concept.Slug] = append(grouped[concept.Slug], p)
		concepts[concept.Slug] = concept
	}

	now := requestcontext.Now(ctx)
	var created []*RegulatoryRule
	for slug, group := range grouped {
		concept := concepts[slug]
		rule := composeRule(concept, group, effectiveFrom, now)
		if prev := s.currentPublished(ctx, slug, rule.Value); prev != nil {
			rule.SupersedesID = &prev.ID
		}
		if err := s.store.Create(ctx, rule); err != nil {
			return created, report, fmt.Errorf("create rule for %s: %w", slug, err)
		}
		s.metrics.IncrementComposed(string(rule.RiskTier))
		created = append(created, rule)
		report.RulesCreated++
	}
	return created, report, nil
}

// composeRule folds one concept's pointers into a draft rule. The value comes
// from the most confident pointer; the rule confidence is the group minimum.
func composeRule(concept Concept, group []*extraction.SourcePointer, effectiveFrom, now time.Time) *RegulatoryRule {
	best := group[0]
	minConfidence := group[0].Confidence
	ids := make([]domain.PointerID, 0, len(group))
	for _, p := range group {
		ids = append(ids, p.ID)
		if p.Confidence > best.Confidence {
			best = p
		}
		if p.Confidence < minConfidence {
			minConfidence = p.Confidence
		}
	}
	return &RegulatoryRule{
		ID:            domain.NewRuleID(),
		ConceptSlug:   concept.Slug,
		Title:         concept.Title,
		Value:         best.ExtractedValue,
		ValueType:     concept.ValueType,
		RiskTier:      concept.Tier,
		Status:        StatusDraft,
		EffectiveFrom: effectiveFrom,
		Confidence:    minConfidence,
		PointerIDs:    ids,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// currentPublished returns the published rule the new value would supersede,
// or nil when the concept has no effective published rule with a different
// value.
func (s *Service) currentPublished(ctx context.Context, slug, newValue string) *RegulatoryRule {
	existing, err := s.store.ListByConcept(ctx, slug)
	if err != nil {
		return nil
	}
	var latest *RegulatoryRule
	for _, r := range existing {
		if r.Status != StatusPublished || r.EffectiveUntil != nil {
			continue
		}
		if grounding.Normalize(r.Value) == grounding.Normalize(newValue) {
			continue
		}
		if latest == nil || r.EffectiveFrom.After(latest.EffectiveFrom) {
			latest = r
		}
	}
	return latest
}
