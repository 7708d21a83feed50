package contentsync

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process queue backend used in tests and single-node
// deployments. Jobs are keyed by event id, so redelivery overwrites rather
// than duplicates.
type MemoryBackend struct {
	mu       sync.Mutex
	jobs     map[string][]byte
	enqueues int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{jobs: make(map[string][]byte)}
}

func (b *MemoryBackend) EnqueueJob(_ context.Context, eventID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.jobs[eventID] = cp
	b.enqueues++
	return nil
}

// Enqueues returns the total number of EnqueueJob calls, including
// redeliveries of the same id.
func (b *MemoryBackend) Enqueues() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enqueues
}

// Job returns the payload stored for an event id.
func (b *MemoryBackend) Job(eventID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.jobs[eventID]
	return p, ok
}
