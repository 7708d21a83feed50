package conflict

import (
	"context"
	"sort"
	"sync"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.ConflictID]*RegulatoryConflict
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[domain.ConflictID]*RegulatoryConflict)}
}

func (s *InMemoryStore) Create(_ context.Context, c *RegulatoryConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[c.ID]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *c
	s.rows[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ConflictID) (*RegulatoryConflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *InMemoryStore) FindByPair(_ context.Context, a, b domain.RuleID) (*RegulatoryConflict, error) {
	a, b = normalizePair(a, b)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.RuleA == a && row.RuleB == b {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListOpen(_ context.Context) ([]*RegulatoryConflict, error) {
	return s.list(func(c *RegulatoryConflict) bool { return c.Status == StatusOpen })
}

func (s *InMemoryStore) ListByConcept(_ context.Context, conceptSlug string) ([]*RegulatoryConflict, error) {
	return s.list(func(c *RegulatoryConflict) bool { return c.ConceptSlug == conceptSlug })
}

func (s *InMemoryStore) list(match func(*RegulatoryConflict) bool) ([]*RegulatoryConflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RegulatoryConflict
	for _, row := range s.rows {
		if match(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, c *RegulatoryConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *c
	s.rows[c.ID] = &cp
	return nil
}
