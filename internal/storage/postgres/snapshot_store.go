package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot. Returns ErrDuplicateKey if (address, timestamp_ms) exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.TokenSnapshot) error {
	if snap == nil || snap.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_snapshots (
			address, timestamp_ms, liquidity_usd, volume_usd, price_usd, holders, age_hours
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Address,
		snap.TimestampMs,
		snap.LiquidityUSD,
		snap.VolumeUSD,
		snap.PriceUSD,
		snap.Holders,
		snap.AgeHours,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByAddress retrieves all snapshots for an address, ordered by timestamp ASC.
func (s *SnapshotStore) GetByAddress(ctx context.Context, address string) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT address, timestamp_ms, liquidity_usd, volume_usd, price_usd, holders, age_hours
		FROM token_snapshots
		WHERE address = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by address: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for an address within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, address string, start, end int64) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT address, timestamp_ms, liquidity_usd, volume_usd, price_usd, holders, age_hours
		FROM token_snapshots
		WHERE address = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, address, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]*domain.TokenSnapshot, error) {
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
