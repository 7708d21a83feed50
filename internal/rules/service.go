package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"normative/internal/contentsync"
	rulesmetrics "normative/internal/rules/metrics"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/tx"
	"normative/pkg/requestcontext"
)

// SyncNotifier records downstream-relevant rule changes. Wired to the
// content-sync dispatcher; its Enqueue runs on the context transaction, which
// is how transitions and their events commit atomically.
type SyncNotifier interface {
	Enqueue(ctx context.Context, change contentsync.RuleChange) (string, error)
}

// Service composes rules from pointers and drives the review lifecycle.
type Service struct {
	store            Store
	pointers         PointerSource
	sync             SyncNotifier
	runner           tx.Runner
	autoApproveFloor float64
	metrics          *rulesmetrics.Metrics
	log              *slog.Logger
}

func NewService(store Store, pointers PointerSource, sync SyncNotifier, runner tx.Runner, autoApproveFloor float64, m *rulesmetrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		store:            store,
		pointers:         pointers,
		sync:             sync,
		runner:           runner,
		autoApproveFloor: autoApproveFloor,
		metrics:          m,
		log:              log,
	}
}

// eventPayload is the JSON body attached to sync events emitted by rule
// transitions.
type eventPayload struct {
	ConceptSlug    string  `json:"conceptSlug"`
	Value          string  `json:"value"`
	ValueType      string  `json:"valueType"`
	EffectiveFrom  string  `json:"effectiveFrom"`
	EffectiveUntil *string `json:"effectiveUntil,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

func payloadFor(rule *RegulatoryRule, reason string) eventPayload {
	p := eventPayload{
		ConceptSlug:   rule.ConceptSlug,
		Value:         rule.Value,
		ValueType:     string(rule.ValueType),
		EffectiveFrom: rule.EffectiveFrom.UTC().Format("2006-01-02"),
		Reason:        reason,
	}
	if rule.EffectiveUntil != nil {
		until := rule.EffectiveUntil.UTC().Format("2006-01-02")
		p.EffectiveUntil = &until
	}
	return p
}

// Submit moves a draft into review. Rules in the low-risk tiers that clear
// the confidence floor are approved in the same unit without a human
// reviewer; T0 and T1 always wait for one.
func (s *Service) Submit(ctx context.Context, id domain.RuleID) (*RegulatoryRule, error) {
	var out *RegulatoryRule
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		rule, err := s.transition(ctx, id, StatusPendingReview, "", "")
		if err != nil {
			return err
		}
		if s.autoApprovable(rule) {
			rule, err = s.transition(ctx, id, StatusApproved, "auto-reviewer", fmt.Sprintf("confidence %.2f above floor %.2f", rule.Confidence, s.autoApproveFloor))
			if err != nil {
				return err
			}
			s.metrics.IncrementAutoApprovals()
		}
		out = rule
		return nil
	})
	return out, err
}

func (s *Service) autoApprovable(rule *RegulatoryRule) bool {
	if rule.RiskTier == TierT0 || rule.RiskTier == TierT1 {
		return false
	}
	return rule.Confidence >= s.autoApproveFloor
}

// Decide records a review decision. An empty actor is the automatic
// reviewer, which may only approve low-risk rules above the confidence
// floor; everything else needs a named human.
func (s *Service) Decide(ctx context.Context, id domain.RuleID, approve bool, actor, note string) (*RegulatoryRule, error) {
	target := StatusApproved
	if !approve {
		target = StatusRejected
	}

	var out *RegulatoryRule
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		rule, err := s.store.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load rule: %w", err)
		}
		if actor == "" {
			if !approve {
				return domainerrors.New(domainerrors.CodeInvalidInput, "rejection requires a human reviewer")
			}
			if !s.autoApprovable(rule) {
				return domainerrors.New(domainerrors.CodeInvalidInput,
					fmt.Sprintf("rule %s (%s, confidence %.2f) requires a human reviewer", id, rule.RiskTier, rule.Confidence))
			}
			actor = "auto-reviewer"
		}
		out, err = s.transition(ctx, id, target, actor, note)
		return err
	})
	return out, err
}

// MarkPublished records a rule's inclusion in a release. When the rule
// supersedes a published predecessor, the predecessor's effective interval is
// closed at the new rule's start and a RULE_SUPERSEDED event is recorded in
// the same unit. Joins the caller's transaction when one is open.
func (s *Service) MarkPublished(ctx context.Context, id domain.RuleID) (*RegulatoryRule, error) {
	var out *RegulatoryRule
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		rule, err := s.transition(ctx, id, StatusPublished, "", "")
		if err != nil {
			return err
		}
		if _, err := s.sync.Enqueue(ctx, contentsync.RuleChange{
			RuleID:        rule.ID,
			Type:          contentsync.EventRuleEffective,
			EffectiveFrom: rule.EffectiveFrom,
			Payload:       payloadFor(rule, ""),
		}); err != nil {
			return fmt.Errorf("enqueue effective event: %w", err)
		}
		if rule.SupersedesID != nil {
			if err := s.supersede(ctx, *rule.SupersedesID, rule); err != nil {
				return err
			}
		}
		out = rule
		return nil
	})
	return out, err
}

// supersede closes the predecessor's effective interval at the successor's
// start. This is the one permitted mutation of a published rule.
func (s *Service) supersede(ctx context.Context, oldID domain.RuleID, successor *RegulatoryRule) error {
	old, err := s.store.FindByID(ctx, oldID)
	if err != nil {
		return fmt.Errorf("load superseded rule: %w", err)
	}
	if old.Status != StatusPublished || old.EffectiveUntil != nil {
		return nil
	}
	until := successor.EffectiveFrom
	old.EffectiveUntil = &until
	if err := s.store.Update(ctx, old); err != nil {
		return fmt.Errorf("close superseded interval: %w", err)
	}
	reason := fmt.Sprintf("superseded by rule %s", successor.ID)
	if _, err := s.sync.Enqueue(ctx, contentsync.RuleChange{
		RuleID:        old.ID,
		Type:          contentsync.EventRuleSuperseded,
		EffectiveFrom: until,
		Payload:       payloadFor(old, reason),
	}); err != nil {
		return fmt.Errorf("enqueue superseded event: %w", err)
	}
	return nil
}

// ResetToDraft force-resets a rule after its backing evidence was
// invalidated. The reset and its CONFIDENCE_DROPPED event commit together.
func (s *Service) ResetToDraft(ctx context.Context, id domain.RuleID, reason string) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.reset(ctx, id, reason, contentsync.EventConfidenceDropped)
	})
}

// ResetRulesCiting resets every rule citing an invalidated pointer. It is the
// callback the extraction service invokes when a pointer loses grounding.
func (s *Service) ResetRulesCiting(ctx context.Context, pointerID domain.PointerID, reason string) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		citing, err := s.store.ListCitingPointer(ctx, pointerID)
		if err != nil {
			return fmt.Errorf("list rules citing pointer: %w", err)
		}
		for _, rule := range citing {
			if rule.Status == StatusDraft {
				continue
			}
			if err := s.reset(ctx, rule.ID, reason, contentsync.EventSourceChanged); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) reset(ctx context.Context, id domain.RuleID, reason string, eventType contentsync.EventType) error {
	rule, err := s.transition(ctx, id, StatusDraft, "", reason)
	if err != nil {
		return err
	}
	s.metrics.IncrementResets()
	s.log.Info("rule reset to draft", "rule", id.String(), "reason", reason)
	_, err = s.sync.Enqueue(ctx, contentsync.RuleChange{
		RuleID:        rule.ID,
		Type:          eventType,
		EffectiveFrom: requestcontext.Now(ctx),
		Payload:       payloadFor(rule, reason),
	})
	if err != nil {
		return fmt.Errorf("enqueue reset event: %w", err)
	}
	return nil
}

// transition applies one legal lifecycle edge and persists it.
func (s *Service) transition(ctx context.Context, id domain.RuleID, to Status, actor, note string) (*RegulatoryRule, error) {
	rule, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}
	if !CanTransition(rule.Status, to) {
		return nil, domainerrors.New(domainerrors.CodeIllegalTransition,
			fmt.Sprintf("rule %s: %s -> %s is not a legal transition", id, rule.Status, to))
	}
	rule.Status = to
	if actor != "" {
		rule.ReviewedBy = actor
	}
	if note != "" {
		rule.ReviewNote = note
	}
	rule.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}
	rule.Version++
	s.metrics.IncrementTransition(string(to))
	return rule, nil
}

// EffectiveRule returns the published rule for a concept that covers the
// given date.
func (s *Service) EffectiveRule(ctx context.Context, conceptSlug string, date time.Time) (*RegulatoryRule, error) {
	rules, err := s.store.ListByConcept(ctx, conceptSlug)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	var match *RegulatoryRule
	for _, r := range rules {
		if r.Status != StatusPublished || !r.EffectiveOn(date) {
			continue
		}
		if match == nil || r.EffectiveFrom.After(match.EffectiveFrom) {
			match = r
		}
	}
	if match == nil {
		return nil, domainerrors.New(domainerrors.CodeNotFound,
			fmt.Sprintf("no published rule for %s effective on %s", conceptSlug, date.Format("2006-01-02")))
	}
	return match, nil
}
