// Package alpha derives feature vectors from token snapshots and scores
// them against a novelty model fit once, at startup, from the historical
// pattern corpus.
package alpha

import (
	"context"
	"fmt"
	"log"
	"time"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/history"
	"token-alpha-engine/internal/storage"
)

// volatilityEpsilon stabilizes the price-volatility ratio while the
// baseline ring is still warming up.
const volatilityEpsilon = 1e-6

// CorpusWindow is the trailing span of pattern records loaded at startup.
const CorpusWindow = 30 * 24 * time.Hour

// Engine scores token snapshots. It holds a frozen scaler and a frozen
// model; neither is refit on live data. A nil model (empty startup corpus)
// puts the engine in degraded mode where every score is neutral.
type Engine struct {
	hist   *history.Store
	scaler ScalingStats
	model  *Model
	logger *log.Logger
}

// NewEngine loads the trailing pattern corpus, fits the scaler and model,
// and returns a ready engine. An empty (or too small) corpus is not an
// error: the engine runs in degraded neutral-scoring mode.
func NewEngine(ctx context.Context, patterns storage.PatternStore, hist *history.Store, params ModelParams, logger *log.Logger) (*Engine, error) {
	e := &Engine{hist: hist, logger: logger}

	since := time.Now().Add(-CorpusWindow).UnixMilli()
	records, err := patterns.GetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load pattern corpus: %w", err)
	}

	if len(records) < params.NeighborCount+1 {
		logger.Printf("pattern corpus has %d records (need %d); scoring neutrally until refit",
			len(records), params.NeighborCount+1)
		return e, nil
	}

	matrix := make([]domain.FeatureVector, len(records))
	for i, r := range records {
		matrix[i] = r.Features
	}

	e.scaler = FitScaler(matrix)

	scaled := make([]domain.FeatureVector, len(matrix))
	for i, v := range matrix {
		scaled[i] = e.scaler.Apply(v)
	}

	model, err := FitModel(params, scaled)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	e.model = model

	logger.Printf("model fit on %d patterns (k=%d, target anomaly fraction %.3f)",
		len(records), params.NeighborCount, params.TargetAnomalyFraction)
	return e, nil
}

// Ready reports whether a model is loaded. When false every score is 0.
func (e *Engine) Ready() bool {
	return e.model != nil
}

// ExtractFeatures derives the feature vector for a snapshot from the
// snapshot itself and the oldest in-window history entry for its address.
// The reference must predate the snapshot: a never-seen token cannot be
// evaluated against its own past, so the second return is false when no
// strictly older in-window history exists.
func (e *Engine) ExtractFeatures(snap domain.TokenSnapshot) (domain.FeatureVector, bool) {
	ref, ok := e.hist.Reference(snap.Address, snap.TimestampMs)
	if !ok || ref.TimestampMs >= snap.TimestampMs || ref.LiquidityUSD == 0 {
		return domain.FeatureVector{}, false
	}

	var v domain.FeatureVector
	v[domain.FeatureLiquidityVelocity] = snap.LiquidityUSD / ref.LiquidityUSD
	v[domain.FeatureVolumeAcceleration] = snap.VolumeUSD - 2*ref.VolumeUSD
	v[domain.FeatureHolderGrowth] = float64(snap.Holders) / (float64(ref.Holders) + 1)
	v[domain.FeaturePriceVolatility] = snap.PriceUSD / (e.hist.Baseline() + volatilityEpsilon)
	return v, true
}

// Score returns the decision score for a snapshot: 0 when no model is
// loaded or the snapshot has no feature history, otherwise the model score
// for the robust-scaled feature vector. Higher means more anomalous.
func (e *Engine) Score(snap domain.TokenSnapshot) float64 {
	if e.model == nil {
		return 0
	}

	features, ok := e.ExtractFeatures(snap)
	if !ok {
		return 0
	}

	return e.model.Score(e.scaler.Apply(features))
}
