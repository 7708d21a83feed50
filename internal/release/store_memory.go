package release

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
	rows map[domain.ReleaseID]*RuleRelease
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[domain.ReleaseID]*RuleRelease)}
}

func copyRelease(r *RuleRelease) *RuleRelease {
	cp := *r
	cp.Bundle = append([]byte(nil), r.Bundle...)
	cp.Changelog = append([]string(nil), r.Changelog...)
	cp.RuleIDs = append([]domain.RuleID(nil), r.RuleIDs...)
	return &cp
}

func (s *InMemoryStore) Create(_ context.Context, rel *RuleRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[rel.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.rows[rel.ID] = copyRelease(rel)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ReleaseID) (*RuleRelease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRelease(row), nil
}

func (s *InMemoryStore) Latest(_ context.Context) (*RuleRelease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *RuleRelease
	for _, row := range s.rows {
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return copyRelease(latest), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*RuleRelease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RuleRelease
	for _, row := range s.rows {
		out = append(out, copyRelease(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
