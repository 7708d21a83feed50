package rules

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"normative/internal/contentsync"
	"normative/internal/extraction"
	"normative/internal/grounding"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/tx"
)

type RulesServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *InMemoryStore
	pointers  *extraction.InMemoryStore
	syncStore *contentsync.InMemoryStore
	svc       *Service
}

func (s *RulesServiceSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.pointers = extraction.NewInMemoryStore()
	s.syncStore = contentsync.NewInMemoryStore()
	dispatcher := contentsync.NewDispatcher(s.syncStore, contentsync.NewMemoryBackend(), nil, log)
	s.svc = NewService(s.store, s.pointers, dispatcher, &tx.MutexRunner{}, 0.85, nil, log)
}

func TestRulesServiceSuite(t *testing.T) {
	suite.Run(t, new(RulesServiceSuite))
}

func (s *RulesServiceSuite) addPointer(evidenceID domain.EvidenceID, domainLabel, value string, confidence float64, match grounding.MatchType) *extraction.SourcePointer {
	p := &extraction.SourcePointer{
		ID:             domain.NewPointerID(),
		EvidenceID:     evidenceID,
		Domain:         domainLabel,
		ExtractedValue: value,
		ExactQuote:     "quote for " + domainLabel,
		Confidence:     confidence,
		MatchType:      match,
		CreatedAt:      time.Now(),
	}
	s.Require().NoError(s.pointers.Create(s.ctx, p))
	return p
}

func (s *RulesServiceSuite) seedRule(tier RiskTier, status Status, confidence float64) *RegulatoryRule {
	rule := &RegulatoryRule{
		ID:            domain.NewRuleID(),
		ConceptSlug:   "pdv-opca-stopa",
		Title:         "Opća stopa PDV-a",
		Value:         "25",
		ValueType:     ValuePercent,
		RiskTier:      tier,
		Status:        status,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Confidence:    confidence,
		PointerIDs:    []domain.PointerID{domain.NewPointerID()},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	s.Require().NoError(s.store.Create(s.ctx, rule))
	return rule
}

func (s *RulesServiceSuite) eventsOfType(t contentsync.EventType) []*contentsync.Event {
	pending, err := s.syncStore.ListPending(s.ctx)
	s.Require().NoError(err)
	var out []*contentsync.Event
	for _, ev := range pending {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *RulesServiceSuite) TestComposeGroupsGroundedPointersByConcept() {
	evID := domain.NewEvidenceID()
	s.addPointer(evID, "vat-rate", "25", 0.95, grounding.MatchGrounded)
	s.addPointer(evID, "vat-rate", "25", 0.88, grounding.MatchGrounded)
	s.addPointer(evID, "vat-threshold", "60000", 0.80, grounding.MatchGrounded)
	s.addPointer(evID, "vat-threshold", "99000", 0.70, grounding.MatchNotFound)
	s.addPointer(evID, "crypto-tax-rate", "10", 0.90, grounding.MatchGrounded)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	created, report, err := s.svc.Compose(s.ctx, evID, from)
	s.Require().NoError(err)
	s.Equal(2, report.RulesCreated)
	s.Equal(1, report.SkippedNotCitable, "NOT_FOUND pointers are never cited")
	s.Equal([]string{"crypto-tax-rate"}, report.UnmappedDomains)

	byConcept := make(map[string]*RegulatoryRule)
	for _, r := range created {
		byConcept[r.ConceptSlug] = r
	}

	rate := byConcept["pdv-opca-stopa"]
	s.Require().NotNil(rate)
	s.Equal(StatusDraft, rate.Status)
	s.Equal(TierT0, rate.RiskTier)
	s.Equal("25", rate.Value)
	s.InDelta(0.88, rate.Confidence, 1e-9, "rule confidence is the weakest citation")
	s.Len(rate.PointerIDs, 2)

	threshold := byConcept["pdv-prag"]
	s.Require().NotNil(threshold)
	s.Equal(ValueMoney, threshold.ValueType)
	s.Len(threshold.PointerIDs, 1)
}

func (s *RulesServiceSuite) TestComposeLinksSupersededPublishedRule() {
	old := s.seedRule(TierT0, StatusPublished, 0.9)

	evID := domain.NewEvidenceID()
	s.addPointer(evID, "vat-rate", "23", 0.92, grounding.MatchGrounded)

	created, _, err := s.svc.Compose(s.ctx, evID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().Len(created, 1)
	s.Require().NotNil(created[0].SupersedesID)
	s.Equal(old.ID, *created[0].SupersedesID)
}

func (s *RulesServiceSuite) TestSubmitHoldsHighRiskForHumanReview() {
	rule := s.seedRule(TierT0, StatusDraft, 0.99)

	got, err := s.svc.Submit(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(StatusPendingReview, got.Status, "T0 never auto-approves, whatever the confidence")
}

func (s *RulesServiceSuite) TestSubmitAutoApprovesLowRiskAboveFloor() {
	rule := s.seedRule(TierT3, StatusDraft, 0.9)

	got, err := s.svc.Submit(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(StatusApproved, got.Status)
	s.Equal("auto-reviewer", got.ReviewedBy)
}

func (s *RulesServiceSuite) TestSubmitHoldsLowRiskBelowFloor() {
	rule := s.seedRule(TierT3, StatusDraft, 0.6)

	got, err := s.svc.Submit(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(StatusPendingReview, got.Status)
}

func (s *RulesServiceSuite) TestDecideRequiresHumanForHighRisk() {
	rule := s.seedRule(TierT1, StatusPendingReview, 0.99)

	_, err := s.svc.Decide(s.ctx, rule.ID, true, "", "")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))

	got, err := s.svc.Decide(s.ctx, rule.ID, true, "ana.horvat", "checked against NN 35/2025")
	s.Require().NoError(err)
	s.Equal(StatusApproved, got.Status)
	s.Equal("ana.horvat", got.ReviewedBy)
}

func (s *RulesServiceSuite) TestDecideRejectRequiresHuman() {
	rule := s.seedRule(TierT3, StatusPendingReview, 0.99)

	_, err := s.svc.Decide(s.ctx, rule.ID, false, "", "")
	s.Require().Error(err)

	got, err := s.svc.Decide(s.ctx, rule.ID, false, "ana.horvat", "value contradicts the gazette")
	s.Require().NoError(err)
	s.Equal(StatusRejected, got.Status)
}

func (s *RulesServiceSuite) TestIllegalTransitionIsRejected() {
	rule := s.seedRule(TierT2, StatusDraft, 0.9)

	_, err := s.svc.Decide(s.ctx, rule.ID, true, "ana.horvat", "")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeIllegalTransition))
}

func (s *RulesServiceSuite) TestMarkPublishedEmitsEffectiveEvent() {
	rule := s.seedRule(TierT2, StatusApproved, 0.9)

	got, err := s.svc.MarkPublished(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(StatusPublished, got.Status)

	events := s.eventsOfType(contentsync.EventRuleEffective)
	s.Require().Len(events, 1)
	s.Equal(rule.ID, events[0].RuleID)
}

func (s *RulesServiceSuite) TestMarkPublishedClosesSupersededInterval() {
	old := s.seedRule(TierT0, StatusPublished, 0.9)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	successor := &RegulatoryRule{
		ID:            domain.NewRuleID(),
		ConceptSlug:   old.ConceptSlug,
		Title:         old.Title,
		Value:         "23",
		ValueType:     ValuePercent,
		RiskTier:      TierT0,
		Status:        StatusApproved,
		EffectiveFrom: from,
		Confidence:    0.95,
		SupersedesID:  &old.ID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	s.Require().NoError(s.store.Create(s.ctx, successor))

	_, err := s.svc.MarkPublished(s.ctx, successor.ID)
	s.Require().NoError(err)

	oldNow, err := s.store.FindByID(s.ctx, old.ID)
	s.Require().NoError(err)
	s.Equal(StatusPublished, oldNow.Status, "supersession closes the interval, it does not unpublish")
	s.Require().NotNil(oldNow.EffectiveUntil)
	s.True(oldNow.EffectiveUntil.Equal(from))

	s.Len(s.eventsOfType(contentsync.EventRuleSuperseded), 1)
}

func (s *RulesServiceSuite) TestResetRulesCitingInvalidatedPointer() {
	evID := domain.NewEvidenceID()
	p := s.addPointer(evID, "vat-rate", "25", 0.95, grounding.MatchGrounded)

	published := s.seedRule(TierT0, StatusPublished, 0.95)
	published.PointerIDs = []domain.PointerID{p.ID}
	s.Require().NoError(s.store.Update(s.ctx, published))

	unrelated := s.seedRule(TierT2, StatusApproved, 0.9)

	s.Require().NoError(s.svc.ResetRulesCiting(s.ctx, p.ID, "quote no longer found in source"))

	got, err := s.store.FindByID(s.ctx, published.ID)
	s.Require().NoError(err)
	s.Equal(StatusDraft, got.Status)

	other, err := s.store.FindByID(s.ctx, unrelated.ID)
	s.Require().NoError(err)
	s.Equal(StatusApproved, other.Status, "rules not citing the pointer are untouched")

	s.Len(s.eventsOfType(contentsync.EventSourceChanged), 1)
}

func (s *RulesServiceSuite) TestEffectiveRulePicksCoveringPublishedRule() {
	old := s.seedRule(TierT0, StatusPublished, 0.9)
	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old.EffectiveUntil = &until
	s.Require().NoError(s.store.Update(s.ctx, old))

	current := s.seedRule(TierT0, StatusPublished, 0.95)
	current.Value = "23"
	current.EffectiveFrom = until
	s.Require().NoError(s.store.Update(s.ctx, current))

	got, err := s.svc.EffectiveRule(s.ctx, "pdv-opca-stopa", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal("23", got.Value)

	got, err = s.svc.EffectiveRule(s.ctx, "pdv-opca-stopa", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal("25", got.Value)

	_, err = s.svc.EffectiveRule(s.ctx, "pdv-opca-stopa", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}
