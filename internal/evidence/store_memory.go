package evidence

import (
	"context"
	"sort"
	"sync"
	"time"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
// It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu        sync.RWMutex
	rows      map[domain.EvidenceID]*Evidence
	artifacts map[domain.ArtifactID]*Artifact
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows:      make(map[domain.EvidenceID]*Evidence),
		artifacts: make(map[domain.ArtifactID]*Artifact),
	}
}

func (s *InMemoryStore) Create(_ context.Context, ev *Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[ev.ID]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *ev
	s.rows[ev.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.EvidenceID) (*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok || row.Deleted() {
		return nil, sentinel.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *InMemoryStore) FindActive(_ context.Context, url, contentHash string) (*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if !row.Deleted() && row.SourceURL == url && row.ContentHash == contentHash {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Evidence
	for _, row := range s.rows {
		if !row.Deleted() {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	return out, nil
}

func (s *InMemoryStore) MarkStale(_ context.Context, id domain.EvidenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.Deleted() {
		return sentinel.ErrNotFound
	}
	row.Stale = true
	return nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, id domain.EvidenceID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if row.Deleted() {
		return sentinel.ErrInvalidState
	}
	deletedAt := at
	row.DeletedAt = &deletedAt
	return nil
}

func (s *InMemoryStore) DuplicateGroups(_ context.Context) ([][]*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey := make(map[[2]string][]*Evidence)
	for _, row := range s.rows {
		if row.Deleted() {
			continue
		}
		key := [2]string{row.SourceURL, row.ContentHash}
		cp := *row
		byKey[key] = append(byKey[key], &cp)
	}
	var groups [][]*Evidence
	for _, group := range byKey {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].FetchedAt.After(group[j].FetchedAt) })
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *InMemoryStore) AddArtifact(_ context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.artifacts[a.ID]; exists {
		return sentinel.ErrImmutable
	}
	cp := *a
	s.artifacts[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) ArtifactsByEvidence(_ context.Context, id domain.EvidenceID) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Artifact
	for _, a := range s.artifacts {
		if a.EvidenceID == id {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) LatestArtifact(_ context.Context, id domain.EvidenceID, kind ArtifactKind) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Artifact
	for _, a := range s.artifacts {
		if a.EvidenceID != id || a.Kind != kind {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}
