package rules

import (
	"context"
	"sort"
	"sync"
	"time"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.RuleID]*RegulatoryRule
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[domain.RuleID]*RegulatoryRule)}
}

func copyRule(r *RegulatoryRule) *RegulatoryRule {
	cp := *r
	cp.PointerIDs = append([]domain.PointerID(nil), r.PointerIDs...)
	return &cp
}

func (s *InMemoryStore) Create(_ context.Context, rule *RegulatoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[rule.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.rows[rule.ID] = copyRule(rule)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.RuleID) (*RegulatoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRule(row), nil
}

func (s *InMemoryStore) ListByConcept(_ context.Context, conceptSlug string) ([]*RegulatoryRule, error) {
	return s.list(func(r *RegulatoryRule) bool { return r.ConceptSlug == conceptSlug })
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]*RegulatoryRule, error) {
	return s.list(func(r *RegulatoryRule) bool { return r.Status == status })
}

func (s *InMemoryStore) ListByIDs(_ context.Context, ids []domain.RuleID) ([]*RegulatoryRule, error) {
	want := make(map[domain.RuleID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.list(func(r *RegulatoryRule) bool { return want[r.ID] })
}

func (s *InMemoryStore) ListCitingPointer(_ context.Context, pointerID domain.PointerID) ([]*RegulatoryRule, error) {
	return s.list(func(r *RegulatoryRule) bool { return r.Cites(pointerID) })
}

func (s *InMemoryStore) list(match func(*RegulatoryRule) bool) ([]*RegulatoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RegulatoryRule
	for _, row := range s.rows {
		if match(row) {
			out = append(out, copyRule(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, rule *RegulatoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rule.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if row.Version != rule.Version {
		return sentinel.ErrStaleVersion
	}
	cp := copyRule(rule)
	cp.Version++
	cp.UpdatedAt = time.Now()
	s.rows[rule.ID] = cp
	return nil
}
