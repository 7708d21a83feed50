package release

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"normative/internal/contentsync"
	"normative/internal/extraction"
	"normative/internal/rules"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/tx"
)

type ReleaseServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ruleStore *rules.InMemoryStore
	syncStore *contentsync.InMemoryStore
	store     *InMemoryStore
	svc       *Service
}

func (s *ReleaseServiceSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.ruleStore = rules.NewInMemoryStore()
	s.syncStore = contentsync.NewInMemoryStore()
	s.store = NewInMemoryStore()

	runner := &tx.MutexRunner{}
	dispatcher := contentsync.NewDispatcher(s.syncStore, contentsync.NewMemoryBackend(), nil, log)
	publisher := rules.NewService(s.ruleStore, extraction.NewInMemoryStore(), dispatcher, runner, 0.85, nil, log)
	s.svc = NewService(s.store, s.ruleStore, publisher, dispatcher, runner, nil, log)
}

func TestReleaseServiceSuite(t *testing.T) {
	suite.Run(t, new(ReleaseServiceSuite))
}

func (s *ReleaseServiceSuite) approvedRule(slug, value string, tier rules.RiskTier) *rules.RegulatoryRule {
	concept, ok := rules.ConceptBySlug(slug)
	s.Require().True(ok)
	rule := &rules.RegulatoryRule{
		ID:            domain.NewRuleID(),
		ConceptSlug:   slug,
		Title:         concept.Title,
		Value:         value,
		ValueType:     concept.ValueType,
		RiskTier:      tier,
		Status:        rules.StatusApproved,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Confidence:    0.9,
		PointerIDs:    []domain.PointerID{domain.NewPointerID()},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	s.Require().NoError(s.ruleStore.Create(s.ctx, rule))
	return rule
}

func (s *ReleaseServiceSuite) TestCreateReleasePublishesMembers() {
	a := s.approvedRule("pdv-opca-stopa", "25", rules.TierT0)
	b := s.approvedRule("pdv-prag", "60000", rules.TierT1)

	rel, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{a.ID, b.ID})
	s.Require().NoError(err)
	s.Equal("1.0.0", rel.Version)
	s.Equal(TypeMajor, rel.ReleaseType, "a T0 member forces a major bump")
	s.Len(rel.Changelog, 2)
	s.Len(rel.ContentHash, 64)

	for _, id := range []domain.RuleID{a.ID, b.ID} {
		rule, err := s.ruleStore.FindByID(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(rules.StatusPublished, rule.Status)
	}

	released := 0
	pending, err := s.syncStore.ListPending(s.ctx)
	s.Require().NoError(err)
	for _, ev := range pending {
		if ev.Type == contentsync.EventRuleReleased {
			released++
		}
	}
	s.Equal(2, released, "every member gets a RULE_RELEASED event")
}

func (s *ReleaseServiceSuite) TestMajorBumpSurvivesLowRiskNoise() {
	ids := []domain.RuleID{s.approvedRule("pdv-opca-stopa", "25", rules.TierT0).ID}
	for i := 0; i < 50; i++ {
		ids = append(ids, s.approvedRule("dnevnica", "30", rules.TierT3).ID)
	}

	rel, err := s.svc.CreateRelease(s.ctx, ids)
	s.Require().NoError(err)
	s.Equal(TypeMajor, rel.ReleaseType)
	s.Equal("1.0.0", rel.Version)
}

func (s *ReleaseServiceSuite) TestVersionChain() {
	first, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{s.approvedRule("pdv-prag", "60000", rules.TierT1).ID})
	s.Require().NoError(err)
	s.Equal("0.1.0", first.Version)

	second, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{s.approvedRule("dnevnica", "30", rules.TierT3).ID})
	s.Require().NoError(err)
	s.Equal("0.1.1", second.Version)

	third, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{s.approvedRule("dohodak-stopa", "20", rules.TierT0).ID})
	s.Require().NoError(err)
	s.Equal("1.0.0", third.Version)
}

func (s *ReleaseServiceSuite) TestOnlyApprovedRulesCanBeReleased() {
	draft := s.approvedRule("pdv-prag", "60000", rules.TierT1)
	draft.Status = rules.StatusDraft
	s.Require().NoError(s.ruleStore.Update(s.ctx, draft))

	_, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{draft.ID})
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeIllegalTransition))
}

func (s *ReleaseServiceSuite) TestVerifyReleaseDetectsTampering() {
	rule := s.approvedRule("pdv-prag", "60000", rules.TierT1)
	rel, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{rule.ID})
	s.Require().NoError(err)
	s.NotEmpty(rel.Bundle)

	verified, err := s.svc.VerifyRelease(s.ctx, rel.ID)
	s.Require().NoError(err)
	s.Equal(rel.ContentHash, verified.ContentHash)

	// Tamper with the stored bundle snapshot behind the release's back.
	s.store.mu.Lock()
	s.store.rows[rel.ID].Bundle[0] ^= 0xff
	s.store.mu.Unlock()

	_, err = s.svc.VerifyRelease(s.ctx, rel.ID)
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeIntegrity), "a hash mismatch must block serving")

	_, err = s.svc.LatestVerified(s.ctx)
	s.Require().Error(err)
}

func (s *ReleaseServiceSuite) TestSupersessionKeepsPriorReleasesVerifiable() {
	old := s.approvedRule("pdv-prag", "60000", rules.TierT1)
	first, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{old.ID})
	s.Require().NoError(err)

	// A successor closes the predecessor's effective interval when it is
	// published. That mutation must not invalidate the release already cut.
	successor := s.approvedRule("pdv-prag", "70000", rules.TierT1)
	successor.SupersedesID = &old.ID
	successor.EffectiveFrom = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.ruleStore.Update(s.ctx, successor))

	second, err := s.svc.CreateRelease(s.ctx, []domain.RuleID{successor.ID})
	s.Require().NoError(err)

	closed, err := s.ruleStore.FindByID(s.ctx, old.ID)
	s.Require().NoError(err)
	s.Require().NotNil(closed.EffectiveUntil, "predecessor interval must be closed")

	verified, err := s.svc.VerifyRelease(s.ctx, first.ID)
	s.Require().NoError(err, "supersession must not break verification of earlier releases")
	s.Equal(first.ContentHash, verified.ContentHash)

	latest, err := s.svc.LatestVerified(s.ctx)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}
