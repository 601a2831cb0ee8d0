package domain

// FeatureCount is the fixed dimensionality of the alpha feature space.
const FeatureCount = 4

// Feature indices into a FeatureVector.
const (
	FeatureLiquidityVelocity  = iota // current / historical liquidity ratio
	FeatureVolumeAcceleration        // current - 2*historical volume (discrete 2nd derivative)
	FeatureHolderGrowth              // current holders / (historical holders + 1)
	FeaturePriceVolatility           // current price / volatility baseline
)

// FeatureVector holds the derived features for one snapshot. It is computed
// from the snapshot plus the oldest in-window history entry for the same
// address and is never persisted independently of its source snapshot.
type FeatureVector [FeatureCount]float64

// PatternRecord is one row of the historical training corpus: a feature
// vector observed in the past together with the profitability that followed.
// Records are read-only input to model fitting.
type PatternRecord struct {
	Features      FeatureVector
	Profitability float64
	CreatedAtMs   int64 // Unix milliseconds
}
