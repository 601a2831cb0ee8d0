package alpha

import (
	"math"
	"sort"

	"token-alpha-engine/internal/domain"
)

// iqrEpsilon keeps the scaling transform finite when a feature has zero
// spread in the training corpus.
const iqrEpsilon = 1e-8

// ScalingStats holds the per-feature robust scaling parameters: median and
// interquartile range, computed once from the training corpus at fit time.
// The stats are frozen for the lifetime of the loaded model; recomputing
// them per call would make scores incomparable across time.
type ScalingStats struct {
	Median [domain.FeatureCount]float64
	IQR    [domain.FeatureCount]float64 // p75 - p25, epsilon-stabilized
}

// FitScaler computes ScalingStats from a raw feature matrix.
func FitScaler(matrix []domain.FeatureVector) ScalingStats {
	var stats ScalingStats
	if len(matrix) == 0 {
		for i := range stats.IQR {
			stats.IQR[i] = iqrEpsilon
		}
		return stats
	}

	column := make([]float64, len(matrix))
	for f := 0; f < domain.FeatureCount; f++ {
		for i, row := range matrix {
			column[i] = row[f]
		}
		sort.Float64s(column)

		stats.Median[f] = percentile(column, 50)
		stats.IQR[f] = percentile(column, 75) - percentile(column, 25) + iqrEpsilon
	}
	return stats
}

// Apply scales a feature vector with the frozen stats: (x - median) / iqr.
func (s ScalingStats) Apply(v domain.FeatureVector) domain.FeatureVector {
	var scaled domain.FeatureVector
	for i := range v {
		scaled[i] = (v[i] - s.Median[i]) / s.IQR[i]
	}
	return scaled
}

// percentile returns the p-th percentile of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
