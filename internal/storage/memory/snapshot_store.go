package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenSnapshot // keyed by (address, timestamp_ms)
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.TokenSnapshot),
	}
}

// snapshotKey generates a unique key for a snapshot.
func snapshotKey(address string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", address, timestampMs)
}

// Insert adds a snapshot. Returns ErrDuplicateKey if (address, timestamp_ms) exists.
func (s *SnapshotStore) Insert(_ context.Context, snapshot *domain.TokenSnapshot) error {
	if snapshot == nil || snapshot.Address == "" {
		return storage.ErrInvalidInput
	}

	key := snapshotKey(snapshot.Address, snapshot.TimestampMs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	snapshotCopy := *snapshot
	s.data[key] = &snapshotCopy
	return nil
}

// GetByAddress retrieves all snapshots for an address, ordered by timestamp ASC.
func (s *SnapshotStore) GetByAddress(_ context.Context, address string) ([]*domain.TokenSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenSnapshot
	for _, snap := range s.data {
		if snap.Address == address {
			snapshotCopy := *snap
			result = append(result, &snapshotCopy)
		}
	}

	sortSnapshots(result)
	return result, nil
}

// GetByTimeRange retrieves snapshots for an address within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(_ context.Context, address string, start, end int64) ([]*domain.TokenSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenSnapshot
	for _, snap := range s.data {
		if snap.Address == address && snap.TimestampMs >= start && snap.TimestampMs <= end {
			snapshotCopy := *snap
			result = append(result, &snapshotCopy)
		}
	}

	sortSnapshots(result)
	return result, nil
}

func sortSnapshots(snaps []*domain.TokenSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].TimestampMs < snaps[j].TimestampMs
	})
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
