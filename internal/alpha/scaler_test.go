package alpha

import (
	"math"
	"testing"

	"token-alpha-engine/internal/domain"
)

func TestFitScaler_MedianAndIQR(t *testing.T) {
	matrix := []domain.FeatureVector{
		{1, 10, 100, 0},
		{2, 20, 200, 0},
		{3, 30, 300, 0},
		{4, 40, 400, 0},
		{5, 50, 500, 0},
	}

	stats := FitScaler(matrix)

	if stats.Median[0] != 3 {
		t.Errorf("median[0] = %f, want 3", stats.Median[0])
	}
	// p75 = 4, p25 = 2 with linear interpolation over 5 points.
	if math.Abs(stats.IQR[0]-(2+iqrEpsilon)) > 1e-12 {
		t.Errorf("iqr[0] = %f, want 2", stats.IQR[0])
	}
	if stats.Median[1] != 30 {
		t.Errorf("median[1] = %f, want 30", stats.Median[1])
	}

	// Zero-spread feature stays finite through the epsilon.
	if stats.IQR[3] != iqrEpsilon {
		t.Errorf("iqr[3] = %g, want epsilon", stats.IQR[3])
	}
}

func TestScalingStats_Apply(t *testing.T) {
	stats := ScalingStats{
		Median: [domain.FeatureCount]float64{3, 30, 300, 0},
		IQR:    [domain.FeatureCount]float64{2, 20, 200, 1},
	}

	scaled := stats.Apply(domain.FeatureVector{5, 10, 300, 2})

	want := domain.FeatureVector{1, -1, 0, 2}
	for i := range want {
		if math.Abs(scaled[i]-want[i]) > 1e-12 {
			t.Errorf("scaled[%d] = %f, want %f", i, scaled[i], want[i])
		}
	}
}

func TestPercentile_Interpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	if got := percentile(sorted, 50); got != 2.5 {
		t.Errorf("p50 = %f, want 2.5", got)
	}
	if got := percentile(sorted, 0); got != 1 {
		t.Errorf("p0 = %f, want 1", got)
	}
	if got := percentile(sorted, 100); got != 4 {
		t.Errorf("p100 = %f, want 4", got)
	}
}
