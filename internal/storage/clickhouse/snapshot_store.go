package clickhouse

import (
	"context"
	"fmt"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse. It is the
// high-volume append sink for the live stream; MergeTree does not enforce
// uniqueness, so duplicate inserts are absorbed rather than rejected.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.TokenSnapshot) error {
	if snap == nil || snap.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_snapshots (
			address, timestamp_ms, liquidity_usd, volume_usd, price_usd, holders, age_hours
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		snap.Address,
		snap.TimestampMs,
		snap.LiquidityUSD,
		snap.VolumeUSD,
		snap.PriceUSD,
		snap.Holders,
		snap.AgeHours,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByAddress retrieves all snapshots for an address, ordered by timestamp ASC.
func (s *SnapshotStore) GetByAddress(ctx context.Context, address string) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT address, timestamp_ms, liquidity_usd, volume_usd, price_usd, holders, age_hours
		FROM token_snapshots
		WHERE address = ?
		ORDER BY timestamp_ms ASC
	`

	return s.query(ctx, query, address)
}

// GetByTimeRange retrieves snapshots for an address within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT address, timestamp_ms, liquidity_usd, volume_usd, price_usd, holders, age_hours
		FROM token_snapshots
		WHERE address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	return s.query(ctx, query, address, start, end)
}

func (s *SnapshotStore) query(ctx context.Context, query string, args ...any) ([]*domain.TokenSnapshot, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenSnapshot
	for rows.Next() {
		var snap domain.TokenSnapshot
		if err := rows.Scan(
			&snap.Address,
			&snap.TimestampMs,
			&snap.LiquidityUSD,
			&snap.VolumeUSD,
			&snap.PriceUSD,
			&snap.Holders,
			&snap.AgeHours,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}
