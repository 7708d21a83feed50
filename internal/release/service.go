package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"normative/internal/contentsync"
	releasemetrics "normative/internal/release/metrics"
	"normative/internal/rules"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
	"normative/pkg/requestcontext"
)

// RuleSource loads release member rules. Wired to the rules store.
type RuleSource interface {
	ListByIDs(ctx context.Context, ids []domain.RuleID) ([]*rules.RegulatoryRule, error)
}

// RulePublisher flips approved rules to published, including supersession of
// their predecessors. Wired to the rules service.
type RulePublisher interface {
	MarkPublished(ctx context.Context, id domain.RuleID) (*rules.RegulatoryRule, error)
}

// SyncNotifier records RULE_RELEASED events. Wired to the content-sync
// dispatcher.
type SyncNotifier interface {
	Enqueue(ctx context.Context, change contentsync.RuleChange) (string, error)
}

// Service cuts and verifies releases.
type Service struct {
	store     Store
	ruleSrc   RuleSource
	publisher RulePublisher
	sync      SyncNotifier
	runner    tx.Runner
	metrics   *releasemetrics.Metrics
	log       *slog.Logger
}

func NewService(store Store, ruleSrc RuleSource, publisher RulePublisher, sync SyncNotifier, runner tx.Runner, m *releasemetrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		ruleSrc:   ruleSrc,
		publisher: publisher,
		sync:      sync,
		runner:    runner,
		metrics:   m,
		log:       log,
	}
}

// CreateRelease cuts a release from a set of approved rules: computes the
// semver bump from the members' risk tiers, hashes the canonical bundle, and
// in one unit records the release, publishes every member and enqueues their
// RULE_RELEASED events.
func (s *Service) CreateRelease(ctx context.Context, ruleIDs []domain.RuleID) (*RuleRelease, error) {
	if len(ruleIDs) == 0 {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "a release needs at least one rule")
	}
	members, err := s.ruleSrc.ListByIDs(ctx, ruleIDs)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	if len(members) != len(ruleIDs) {
		return nil, domainerrors.New(domainerrors.CodeNotFound,
			fmt.Sprintf("release references %d rules, found %d", len(ruleIDs), len(members)))
	}
	for _, r := range members {
		if r.Status != rules.StatusApproved {
			return nil, domainerrors.New(domainerrors.CodeIllegalTransition,
				fmt.Sprintf("rule %s is %s, only approved rules can be released", r.ID, r.Status))
		}
	}

	bump := BumpFor(members)
	prev := ""
	if latest, err := s.store.Latest(ctx); err == nil {
		prev = latest.Version
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("load previous release: %w", err)
	}
	version, err := NextVersion(prev, bump)
	if err != nil {
		return nil, err
	}
	bundle, err := CanonicalJSON(members)
	if err != nil {
		return nil, err
	}
	hash := HashBundle(bundle)

	rel := &RuleRelease{
		ID:          domain.NewReleaseID(),
		Version:     version,
		ReleaseType: bump,
		ContentHash: hash,
		Bundle:      bundle,
		Changelog:   changelog(members),
		RuleIDs:     ruleIDs,
		CreatedAt:   requestcontext.Now(ctx),
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, rel); err != nil {
			return fmt.Errorf("record release: %w", err)
		}
		for _, r := range members {
			published, err := s.publisher.MarkPublished(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("publish rule %s: %w", r.ID, err)
			}
			if _, err := s.sync.Enqueue(ctx, contentsync.RuleChange{
				RuleID:        published.ID,
				Type:          contentsync.EventRuleReleased,
				EffectiveFrom: published.EffectiveFrom,
				Payload: map[string]string{
					"conceptSlug":    published.ConceptSlug,
					"value":          published.Value,
					"releaseVersion": version,
					"contentHash":    hash,
				},
			}); err != nil {
				return fmt.Errorf("enqueue released event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementReleases(string(bump))
	s.log.Info("release cut", "version", version, "type", string(bump),
		"rules", len(members), "content_hash", hash)
	return rel, nil
}

// VerifyRelease recomputes the content hash from the stored bundle snapshot
// and compares it to the recorded one. Verification never re-serializes the
// member rules: a later release supersedes them and closes their effective
// intervals, and that must not invalidate releases already cut. A mismatch
// means the row was tampered with and the release must not be served.
func (s *Service) VerifyRelease(ctx context.Context, id domain.ReleaseID) (*RuleRelease, error) {
	rel, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load release: %w", err)
	}
	hash := HashBundle(rel.Bundle)
	if hash != rel.ContentHash {
		s.metrics.IncrementIntegrityFailures()
		return nil, domainerrors.New(domainerrors.CodeIntegrity,
			fmt.Sprintf("release %s content hash mismatch: stored %s, computed %s", rel.Version, rel.ContentHash, hash))
	}
	return rel, nil
}

// LatestVerified returns the most recent release after verifying its content
// hash.
func (s *Service) LatestVerified(ctx context.Context) (*RuleRelease, error) {
	rel, err := s.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest release: %w", err)
	}
	return s.VerifyRelease(ctx, rel.ID)
}

func changelog(members []*rules.RegulatoryRule) []string {
	out := make([]string, 0, len(members))
	for _, r := range members {
		out = append(out, fmt.Sprintf("%s: %s (%s, effective %s)",
			r.ConceptSlug, r.Value, r.RiskTier, r.EffectiveFrom.UTC().Format("2006-01-02")))
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) || domainerrors.HasCode(err, domainerrors.CodeNotFound)
}
