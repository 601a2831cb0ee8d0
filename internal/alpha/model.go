package alpha

import (
	"fmt"
	"math"
	"sort"

	"token-alpha-engine/internal/domain"
)

// ModelParams configures the novelty model.
type ModelParams struct {
	// NeighborCount is k for the local-density comparison.
	NeighborCount int
	// TargetAnomalyFraction is the share of training points the fitted
	// model treats as beyond the actionable boundary.
	TargetAnomalyFraction float64
}

// DefaultModelParams returns the production model parameters.
func DefaultModelParams() ModelParams {
	return ModelParams{
		NeighborCount:         7,
		TargetAnomalyFraction: 0.01,
	}
}

// Model is a k-nearest-neighbor local outlier factor novelty model over
// scaled feature vectors, using Mahalanobis distance from the training
// covariance. It is fit once and scores new points against the frozen
// training set.
//
// Sign convention: higher score = more anomalous = more actionable. The
// fitted offset is the (1 - target anomaly fraction) quantile of the
// training outlier factors, so a score above 0 is more outlying than that
// share of the corpus. Neutral (non-actionable) is 0.
type Model struct {
	params ModelParams
	k      int

	train    []domain.FeatureVector
	invCov   [][]float64 // inverse covariance of the training matrix
	kDist    []float64   // k-distance per training point
	lrd      []float64   // local reachability density per training point
	neighbor [][]int     // k nearest neighbor indices per training point
	offset   float64     // (1 - contamination) quantile of training LOFs
}

// FitModel fits the model on a scaled training matrix. It requires at least
// NeighborCount+1 points; smaller corpora cannot support a local-density
// comparison.
func FitModel(params ModelParams, scaled []domain.FeatureVector) (*Model, error) {
	if params.NeighborCount < 1 {
		return nil, fmt.Errorf("neighbor count must be >= 1, got %d", params.NeighborCount)
	}
	if len(scaled) < params.NeighborCount+1 {
		return nil, fmt.Errorf("training corpus too small: %d points, need at least %d",
			len(scaled), params.NeighborCount+1)
	}

	m := &Model{
		params: params,
		k:      params.NeighborCount,
		train:  append([]domain.FeatureVector(nil), scaled...),
	}

	cov := covariance(m.train)
	inv, err := invert(cov)
	if err != nil {
		// Degenerate covariance (collinear features); fall back to a
		// ridge-regularized matrix so the metric stays defined.
		for i := range cov {
			cov[i][i] += 1e-6
		}
		inv, err = invert(cov)
		if err != nil {
			return nil, fmt.Errorf("covariance not invertible: %w", err)
		}
	}
	m.invCov = inv

	m.fitDensities()
	m.fitOffset()
	return m, nil
}

// Params returns the parameters the model was fit with.
func (m *Model) Params() ModelParams {
	return m.params
}

// Score returns the decision score for a scaled feature vector. Scores above
// 0 exceed the target anomaly fraction of the training corpus; higher means
// more anomalous.
func (m *Model) Score(scaled domain.FeatureVector) float64 {
	neighbors, dists := m.nearest(scaled)

	// Local reachability density of the query point.
	var reachSum float64
	for i, n := range neighbors {
		reachSum += math.Max(m.kDist[n], dists[i])
	}
	if reachSum == 0 {
		// Query coincides with a zero-spread neighborhood; it is as dense
		// as its neighbors.
		return 1 - m.offset
	}
	queryLRD := float64(len(neighbors)) / reachSum

	var neighborLRD float64
	for _, n := range neighbors {
		neighborLRD += m.lrd[n]
	}
	neighborLRD /= float64(len(neighbors))

	lof := neighborLRD / queryLRD
	return lof - m.offset
}

// fitDensities computes k-distances, neighbor sets, and local reachability
// densities for every training point.
func (m *Model) fitDensities() {
	n := len(m.train)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := m.distance(m.train[i], m.train[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	m.kDist = make([]float64, n)
	m.neighbor = make([][]int, n)
	order := make([]int, n)
	for i := 0; i < n; i++ {
		for j := range order {
			order[j] = j
		}
		sort.Slice(order, func(a, b int) bool {
			return dist[i][order[a]] < dist[i][order[b]]
		})
		// order[0] is the point itself (distance 0).
		nn := make([]int, m.k)
		copy(nn, order[1:m.k+1])
		m.neighbor[i] = nn
		m.kDist[i] = dist[i][nn[m.k-1]]
	}

	m.lrd = make([]float64, n)
	for i := 0; i < n; i++ {
		var reachSum float64
		for _, o := range m.neighbor[i] {
			reachSum += math.Max(m.kDist[o], dist[i][o])
		}
		if reachSum == 0 {
			m.lrd[i] = math.Inf(1)
		} else {
			m.lrd[i] = float64(m.k) / reachSum
		}
	}
}

// fitOffset places the decision boundary at the quantile of training outlier
// factors implied by the target anomaly fraction.
func (m *Model) fitOffset() {
	n := len(m.train)
	lofs := make([]float64, n)
	for i := 0; i < n; i++ {
		var neighborLRD float64
		for _, o := range m.neighbor[i] {
			neighborLRD += m.lrd[o]
		}
		neighborLRD /= float64(m.k)

		if math.IsInf(m.lrd[i], 1) {
			lofs[i] = 1
		} else {
			lofs[i] = neighborLRD / m.lrd[i]
		}
	}

	sort.Float64s(lofs)
	m.offset = percentile(lofs, (1-m.params.TargetAnomalyFraction)*100)
}

// nearest returns the indices and distances of the k training points closest
// to the query.
func (m *Model) nearest(query domain.FeatureVector) ([]int, []float64) {
	n := len(m.train)
	dists := make([]float64, n)
	order := make([]int, n)
	for i := 0; i < n; i++ {
		dists[i] = m.distance(query, m.train[i])
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

	neighbors := make([]int, m.k)
	neighborDists := make([]float64, m.k)
	for i := 0; i < m.k; i++ {
		neighbors[i] = order[i]
		neighborDists[i] = dists[order[i]]
	}
	return neighbors, neighborDists
}

// distance is the Mahalanobis distance under the training covariance.
func (m *Model) distance(a, b domain.FeatureVector) float64 {
	var diff [domain.FeatureCount]float64
	for i := range diff {
		diff[i] = a[i] - b[i]
	}

	var sum float64
	for i := 0; i < domain.FeatureCount; i++ {
		var row float64
		for j := 0; j < domain.FeatureCount; j++ {
			row += m.invCov[i][j] * diff[j]
		}
		sum += row * diff[i]
	}
	if sum < 0 {
		// Numerical noise on a near-singular matrix.
		sum = 0
	}
	return math.Sqrt(sum)
}

// covariance computes the sample covariance matrix of the training set.
func covariance(matrix []domain.FeatureVector) [][]float64 {
	n := float64(len(matrix))
	var mean [domain.FeatureCount]float64
	for _, row := range matrix {
		for i, v := range row {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= n
	}

	cov := make([][]float64, domain.FeatureCount)
	for i := range cov {
		cov[i] = make([]float64, domain.FeatureCount)
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	for _, row := range matrix {
		for i := 0; i < domain.FeatureCount; i++ {
			for j := 0; j < domain.FeatureCount; j++ {
				cov[i][j] += (row[i] - mean[i]) * (row[j] - mean[j])
			}
		}
	}
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] /= denom
		}
	}
	return cov
}

// invert computes the inverse of a square matrix by Gauss-Jordan elimination
// with partial pivoting.
func invert(matrix [][]float64) ([][]float64, error) {
	n := len(matrix)

	// Augment with the identity.
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], matrix[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular matrix at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		scale := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= scale
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col]
			for j := 0; j < 2*n; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv, nil
}
