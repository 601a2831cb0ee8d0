package memory

import (
	"context"
	"sort"
	"sync"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/storage"
)

// PatternStore is an in-memory implementation of storage.PatternStore.
// Unlike snapshots, pattern records have no natural key; the corpus is a
// plain append-only list.
type PatternStore struct {
	mu   sync.RWMutex
	data []*domain.PatternRecord
}

// NewPatternStore creates a new in-memory pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{}
}

// Insert adds a pattern record.
func (s *PatternStore) Insert(_ context.Context, p *domain.PatternRecord) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *p
	s.data = append(s.data, &recordCopy)
	return nil
}

// GetSince retrieves all records created at or after sinceMs, ordered by created_at ASC.
func (s *PatternStore) GetSince(_ context.Context, sinceMs int64) ([]*domain.PatternRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PatternRecord
	for _, p := range s.data {
		if p.CreatedAtMs >= sinceMs {
			recordCopy := *p
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAtMs < result[j].CreatedAtMs
	})

	return result, nil
}

var _ storage.PatternStore = (*PatternStore)(nil)
