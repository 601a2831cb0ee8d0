package postgres

import (
	"context"
	"fmt"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/storage"
)

// PatternStore implements storage.PatternStore using PostgreSQL.
type PatternStore struct {
	pool *Pool
}

// NewPatternStore creates a new PatternStore.
func NewPatternStore(pool *Pool) *PatternStore {
	return &PatternStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PatternStore = (*PatternStore)(nil)

// Insert adds a pattern record.
func (s *PatternStore) Insert(ctx context.Context, p *domain.PatternRecord) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO patterns (
			f_liquidity_velocity, f_volume_acceleration, f_holder_growth, f_price_volatility,
			profitability, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		p.Features[domain.FeatureLiquidityVelocity],
		p.Features[domain.FeatureVolumeAcceleration],
		p.Features[domain.FeatureHolderGrowth],
		p.Features[domain.FeaturePriceVolatility],
		p.Profitability,
		p.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

// GetSince retrieves all records created at or after sinceMs, ordered by created_at ASC.
func (s *PatternStore) GetSince(ctx context.Context, sinceMs int64) ([]*domain.PatternRecord, error) {
	query := `
		SELECT f_liquidity_velocity, f_volume_acceleration, f_holder_growth, f_price_volatility,
		       profitability, created_at_ms
		FROM patterns
		WHERE created_at_ms >= $1
		ORDER BY created_at_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, sinceMs)
	if err != nil {
		return nil, fmt.Errorf("get patterns since: %w", err)
	}
	defer rows.Close()

	var result []*domain.PatternRecord
	for rows.Next() {
		var p domain.PatternRecord
		if err := rows.Scan(
			&p.Features[domain.FeatureLiquidityVelocity],
			&p.Features[domain.FeatureVolumeAcceleration],
			&p.Features[domain.FeatureHolderGrowth],
			&p.Features[domain.FeaturePriceVolatility],
			&p.Profitability,
			&p.CreatedAtMs,
		); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return result, nil
}
