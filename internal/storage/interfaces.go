package storage

import (
	"context"

	"token-alpha-engine/internal/domain"
)

// SnapshotStore provides durable storage for normalized token snapshots.
// Writes happen on the hot path as fire-and-forget calls; implementations
// must not assume the caller retries on failure.
type SnapshotStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if (address, timestamp_ms) exists.
	Insert(ctx context.Context, s *domain.TokenSnapshot) error

	// GetByAddress retrieves all snapshots for an address, ordered by timestamp ASC.
	GetByAddress(ctx context.Context, address string) ([]*domain.TokenSnapshot, error)

	// GetByTimeRange retrieves snapshots for an address within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.TokenSnapshot, error)
}

// PatternStore provides access to the historical pattern corpus the alpha
// model is fit from.
type PatternStore interface {
	// Insert adds a pattern record.
	Insert(ctx context.Context, p *domain.PatternRecord) error

	// GetSince retrieves all records created at or after the given timestamp,
	// ordered by created_at ASC.
	GetSince(ctx context.Context, sinceMs int64) ([]*domain.PatternRecord, error)
}
