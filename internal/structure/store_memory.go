package structure

import (
	"context"
	"sort"
	"sync"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
)

// InMemoryStore holds parses for tests and single-process runs. One lock
// guards the latest-flag flip so it stays atomic.
type InMemoryStore struct {
	mu     sync.RWMutex
	parses map[domain.ParseID]*ParsedDocument
	nodes  map[domain.ParseID][]*ProvisionNode
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		parses: make(map[domain.ParseID]*ParsedDocument),
		nodes:  make(map[domain.ParseID][]*ProvisionNode),
	}
}

func (s *InMemoryStore) CreateParse(_ context.Context, doc *ParsedDocument, nodes []*ProvisionNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.parses[doc.ID]; exists {
		return sentinel.ErrDuplicate
	}

	cp := *doc
	cp.IsLatest = true
	for _, prev := range s.parses {
		if prev.EvidenceID == doc.EvidenceID && prev.IsLatest {
			prev.IsLatest = false
			prevID := prev.ID
			cp.SupersedesID = &prevID
		}
	}
	s.parses[doc.ID] = &cp
	copied := make([]*ProvisionNode, len(nodes))
	for i, n := range nodes {
		nc := *n
		copied[i] = &nc
	}
	s.nodes[doc.ID] = copied

	// Reflect the outcome back to the caller's document.
	doc.IsLatest = cp.IsLatest
	doc.SupersedesID = cp.SupersedesID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ParseID) (*ParsedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.parses[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *InMemoryStore) LatestByEvidence(_ context.Context, evidenceID domain.EvidenceID) (*ParsedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.parses {
		if doc.EvidenceID == evidenceID && doc.IsLatest {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) NodesByParse(_ context.Context, parseID domain.ParseID) ([]*ProvisionNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes, ok := s.nodes[parseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]*ProvisionNode, len(nodes))
	for i, n := range nodes {
		cp := *n
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *InMemoryStore) NodeByPath(_ context.Context, parseID domain.ParseID, path string) (*ProvisionNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes[parseID] {
		if n.Path == path {
			cp := *n
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
