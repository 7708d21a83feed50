package contentsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"normative/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]*Event)}
}

func (s *InMemoryStore) Insert(_ context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[ev.ID]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *ev
	s.rows[ev.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *InMemoryStore) ListPending(ctx context.Context) ([]*Event, error) {
	return s.ListByStatus(ctx, StatusPending)
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, row := range s.rows {
		if row.Status == status {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id string, change StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if row.Version != change.ExpectedVersion {
		return sentinel.ErrStaleVersion
	}
	row.Status = change.Status
	row.Version++
	row.Attempts = change.Attempts
	row.DeadLetterReason = change.DeadLetterReason
	row.Note = change.Note
	row.UpdatedAt = time.Now()
	return nil
}
