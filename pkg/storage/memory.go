package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps the latest snapshot per cell in a map.
// It is safe for concurrent use by multiple goroutines.
//
// For deployments where another process consumes the results, use RedisStore
// instead.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[uint64]Snapshot
}

// NewMemoryStore creates a new in-memory snapshot store. Snapshots are kept
// until replaced or deleted. The store is ready to use immediately.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[uint64]Snapshot),
	}
}

// Put stores a snapshot for a cell, replacing any existing one. Any uint64
// is an acceptable cell identifier, NCI 0 included.
//
// Returns the context error if the context is canceled. This operation is
// safe for concurrent use.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.Cell] = snapshot
	return nil
}

// GetLatest retrieves the most recent snapshot for a cell.
//
// Returns:
//   - snapshot: The stored snapshot (zero value if not found)
//   - found: true if a snapshot exists for this cell, false otherwise
//   - error: Context error if context is canceled, nil otherwise
//
// This operation is safe for concurrent use.
func (s *MemoryStore) GetLatest(ctx context.Context, cell uint64) (Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return Snapshot{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, found := s.snapshots[cell]
	return snapshot, found, nil
}

// Len returns the number of snapshots currently stored.
// This method is primarily useful for testing and metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Delete removes a snapshot for a cell.
// Returns true if a snapshot was deleted, false if none existed.
func (s *MemoryStore) Delete(cell uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.snapshots[cell]
	delete(s.snapshots, cell)
	return existed
}
