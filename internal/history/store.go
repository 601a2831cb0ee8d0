// Package history holds the rolling in-process market state: a bounded
// per-address window of recent snapshots and a fixed-capacity ring of
// volatility samples whose mean is the volume-smoothing baseline.
package history

import (
	"sync"
	"time"

	"token-alpha-engine/internal/domain"
)

// Store keeps a rolling window of snapshots per token address. Entries older
// than the feature window are evicted as new ones arrive or on read. The
// store owns its entries exclusively; callers receive copies.
type Store struct {
	mu     sync.RWMutex
	window time.Duration
	data   map[string][]domain.TokenSnapshot
	ring   *Ring
}

// NewStore creates a Store with the given feature window and volatility ring
// capacity.
func NewStore(window time.Duration, ringCapacity int) *Store {
	return &Store{
		window: window,
		data:   make(map[string][]domain.TokenSnapshot),
		ring:   NewRing(ringCapacity),
	}
}

// Record appends a snapshot to the address's window and evicts entries that
// fall outside the feature window relative to the new snapshot.
func (s *Store) Record(snapshot domain.TokenSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.data[snapshot.Address], snapshot)
	s.data[snapshot.Address] = prune(entries, snapshot.TimestampMs-s.window.Milliseconds())
}

// Latest returns the most recent snapshot for the address. The second return
// is false when the address has no in-window history.
func (s *Store) Latest(address string) (domain.TokenSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.data[address]
	if len(entries) == 0 {
		return domain.TokenSnapshot{}, false
	}
	return entries[len(entries)-1], true
}

// Reference returns the oldest in-window snapshot for the address, the
// historical baseline for feature derivation. Entries that went stale since
// the last write are skipped. The second return is false when no in-window
// history exists.
func (s *Store) Reference(address string, nowMs int64) (domain.TokenSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := nowMs - s.window.Milliseconds()
	for _, e := range s.data[address] {
		if e.TimestampMs >= cutoff {
			return e, true
		}
	}
	return domain.TokenSnapshot{}, false
}

// RecordVolatility inserts a heartbeat-derived volatility sample into the
// ring, evicting the oldest sample on overflow.
func (s *Store) RecordVolatility(sample float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Push(sample)
}

// Baseline returns the current mean of the volatility ring, 0 while empty.
func (s *Store) Baseline() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Mean()
}

// prune drops entries with timestamps before cutoff. Entries arrive in
// stream order, so the suffix starting at the first in-window entry is kept.
func prune(entries []domain.TokenSnapshot, cutoff int64) []domain.TokenSnapshot {
	i := 0
	for i < len(entries) && entries[i].TimestampMs < cutoff {
		i++
	}
	if i == 0 {
		return entries
	}
	return append(entries[:0:0], entries[i:]...)
}
