package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/erasure/pkg/deletion"
)

// DefaultListLimit is used by List when no limit is given.
const DefaultListLimit = 100

// MemoryStorage implements deletion.Storage in memory.
// This implementation is intended for testing and local dry runs only.
type MemoryStorage struct {
	batches map[int64]*deletion.Batch
	nextID  int64
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		batches: make(map[int64]*deletion.Batch),
		nextID:  1,
	}
}

// LastBatch returns the batch with the greatest RequestTime.
// Ties are broken by the higher ID.
func (s *MemoryStorage) LastBatch(ctx context.Context) (*deletion.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *deletion.Batch
	for _, b := range s.batches {
		if last == nil || newer(b, last) {
			last = b
		}
	}
	if last == nil {
		return nil, nil
	}
	return last.Clone(), nil
}

// Save stores a copy of the batch under a newly assigned ID.
func (s *MemoryStorage) Save(ctx context.Context, batch deletion.Batch) (*deletion.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := batch.Clone()
	stored.ID = s.nextID
	s.nextID++
	s.batches[stored.ID] = stored

	return stored.Clone(), nil
}

// Get returns a copy of the batch with the given ID.
func (s *MemoryStorage) Get(ctx context.Context, id int64) (*deletion.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, deletion.ErrBatchNotFound
	}
	return b.Clone(), nil
}

// MarkComplete records completion for a pending batch.
func (s *MemoryStorage) MarkComplete(ctx context.Context, id int64, completedAt time.Time, remainingInWindow int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return deletion.ErrBatchNotFound
	}
	if b.IsComplete() {
		return deletion.ErrBatchAlreadyComplete
	}

	b.CompletionTime = &completedAt
	b.RemainingInWindow = &remainingInWindow
	return nil
}

// List returns up to limit batches, most recent first.
func (s *MemoryStorage) List(ctx context.Context, limit int) ([]*deletion.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	results := make([]*deletion.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		results = append(results, b.Clone())
	}
	sort.Slice(results, func(i, j int) bool {
		return newer(results[i], results[j])
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage.
func (s *MemoryStorage) Close() error {
	return nil
}

// newer orders batches by request time, then ID, descending.
func newer(a, b *deletion.Batch) bool {
	if !a.RequestTime.Equal(b.RequestTime) {
		return a.RequestTime.After(b.RequestTime)
	}
	return a.ID > b.ID
}
