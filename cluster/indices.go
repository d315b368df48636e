package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// CalinskiHarabasz computes the variance-ratio criterion: between-cluster
// dispersion over within-cluster dispersion, scaled by degrees of freedom.
// Larger values indicate stronger clustering.
func CalinskiHarabasz(scores mat.Matrix, labels []int) (float64, error) {
	n, d := scores.Dims()
	if len(labels) != n {
		return 0, errors.NewDimensionError("CalinskiHarabasz", n, len(labels), 0)
	}
	k := countClusters(labels)
	if k < 2 || k >= n {
		return 0, errors.NewInvalidParameterError("labels", "needs 2..n-1 clusters", k)
	}

	grand := make([]float64, d)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			grand[j] += scores.At(i, j)
		}
	}
	for j := 0; j < d; j++ {
		grand[j] /= float64(n)
	}

	centroids := make([][]float64, k)
	sizes := make([]int, k)
	for c := 0; c < k; c++ {
		centroids[c] = make([]float64, d)
	}
	for i := 0; i < n; i++ {
		c := labels[i]
		sizes[c]++
		for j := 0; j < d; j++ {
			centroids[c][j] += scores.At(i, j)
		}
	}
	for c := 0; c < k; c++ {
		for j := 0; j < d; j++ {
			centroids[c][j] /= float64(sizes[c])
		}
	}

	between := 0.0
	for c := 0; c < k; c++ {
		dist2 := 0.0
		for j := 0; j < d; j++ {
			diff := centroids[c][j] - grand[j]
			dist2 += diff * diff
		}
		between += float64(sizes[c]) * dist2
	}

	within := 0.0
	for i := 0; i < n; i++ {
		c := labels[i]
		for j := 0; j < d; j++ {
			diff := scores.At(i, j) - centroids[c][j]
			within += diff * diff
		}
	}
	if within == 0 {
		return math.Inf(1), nil
	}

	return (between / float64(k-1)) / (within / float64(n-k)), nil
}

// SilhouetteWidth computes the mean silhouette over all subjects with
// Euclidean distances. Values near 1 indicate tight, well-separated
// clusters; singleton clusters contribute 0.
func SilhouetteWidth(scores mat.Matrix, labels []int) (float64, error) {
	n, _ := scores.Dims()
	if len(labels) != n {
		return 0, errors.NewDimensionError("SilhouetteWidth", n, len(labels), 0)
	}
	k := countClusters(labels)
	if k < 2 || k >= n {
		return 0, errors.NewInvalidParameterError("labels", "needs 2..n-1 clusters", k)
	}

	sizes := make([]int, k)
	for _, c := range labels {
		sizes[c]++
	}

	total := 0.0
	for i := 0; i < n; i++ {
		own := labels[i]
		if sizes[own] == 1 {
			continue // silhouette of a singleton is 0 by convention
		}

		// Mean distance to every cluster.
		meanDist := make([]float64, k)
		for t := 0; t < n; t++ {
			if t == i {
				continue
			}
			meanDist[labels[t]] += euclidean(scores, i, t)
		}
		for c := 0; c < k; c++ {
			div := sizes[c]
			if c == own {
				div--
			}
			if div > 0 {
				meanDist[c] /= float64(div)
			}
		}

		a := meanDist[own]
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && sizes[c] > 0 && meanDist[c] < b {
				b = meanDist[c]
			}
		}

		// Coincident points leave both mean distances at zero; their
		// silhouette contribution is 0.
		total += errors.SafeDivide(b-a, math.Max(a, b))
	}
	return total / float64(n), nil
}

// IndexCurve clusters the scores at every cluster count in [minK, maxK]
// and returns both index values per count. The maximum of each curve is
// the statistic the significance test compares against its null.
type IndexCurve struct {
	Ks         []int
	CH         []float64
	Silhouette []float64
}

// BestCH returns the largest Calinski-Harabasz value and its cluster count.
func (c *IndexCurve) BestCH() (float64, int) {
	return bestOf(c.CH, c.Ks)
}

// BestSilhouette returns the largest silhouette value and its cluster count.
func (c *IndexCurve) BestSilhouette() (float64, int) {
	return bestOf(c.Silhouette, c.Ks)
}

// ComputeIndexCurve evaluates both quality indices over the candidate
// cluster-count range.
func ComputeIndexCurve(scores mat.Matrix, minK, maxK int) (*IndexCurve, error) {
	n, _ := scores.Dims()
	if minK < 2 {
		return nil, errors.NewInvalidParameterError("minK", "must be at least 2", minK)
	}
	if maxK < minK || maxK >= n {
		return nil, errors.NewInvalidParameterError("maxK", "must lie in [minK, n-1]", maxK)
	}

	curve := &IndexCurve{}
	for k := minK; k <= maxK; k++ {
		labels, err := Ward(scores, k)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster count %d", k)
		}
		ch, err := CalinskiHarabasz(scores, labels)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster count %d", k)
		}
		sil, err := SilhouetteWidth(scores, labels)
		if err != nil {
			return nil, errors.Wrapf(err, "cluster count %d", k)
		}
		curve.Ks = append(curve.Ks, k)
		curve.CH = append(curve.CH, ch)
		curve.Silhouette = append(curve.Silhouette, sil)
	}
	return curve, nil
}

func bestOf(values []float64, ks []int) (float64, int) {
	best := math.Inf(-1)
	bestK := 0
	for i, v := range values {
		if v > best {
			best = v
			bestK = ks[i]
		}
	}
	return best, bestK
}

func countClusters(labels []int) int {
	max := -1
	for _, c := range labels {
		if c > max {
			max = c
		}
	}
	return max + 1
}

func euclidean(m mat.Matrix, i, t int) float64 {
	_, d := m.Dims()
	sum := 0.0
	for j := 0; j < d; j++ {
		diff := m.At(i, j) - m.At(t, j)
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
