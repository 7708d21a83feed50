package extraction

import (
	"context"
	"sort"
	"sync"
	"time"

	"normative/internal/grounding"
	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
)

// InMemoryStore keeps pointers in a map for tests and single-process runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	pointers map[domain.PointerID]*SourcePointer
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{pointers: make(map[domain.PointerID]*SourcePointer)}
}

func (s *InMemoryStore) Create(_ context.Context, p *SourcePointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pointers[p.ID]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *p
	s.pointers[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.PointerID) (*SourcePointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pointers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListByEvidence(_ context.Context, evidenceID domain.EvidenceID) ([]*SourcePointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SourcePointer
	for _, p := range s.pointers {
		if p.EvidenceID == evidenceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortPointers(out)
	return out, nil
}

func (s *InMemoryStore) ListByIDs(_ context.Context, ids []domain.PointerID) ([]*SourcePointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SourcePointer
	for _, id := range ids {
		if p, ok := s.pointers[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByMatchType(_ context.Context, mt grounding.MatchType) ([]*SourcePointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SourcePointer
	for _, p := range s.pointers {
		if p.MatchType == mt {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortPointers(out)
	return out, nil
}

func (s *InMemoryStore) UpdateMatchType(_ context.Context, id domain.PointerID, mt grounding.MatchType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pointers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.MatchType = mt
	now := time.Now()
	p.VerifiedAt = &now
	return nil
}

func (s *InMemoryStore) ReassignEvidence(_ context.Context, from, to domain.EvidenceID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := 0
	for _, p := range s.pointers {
		if p.EvidenceID == from {
			p.EvidenceID = to
			moved++
		}
	}
	return moved, nil
}

func sortPointers(ps []*SourcePointer) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
}
