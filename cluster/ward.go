// Package cluster implements the subtype analysis: agglomerative
// hierarchical clustering of canonical scores with Ward's minimum-variance
// linkage, cluster-quality indices, and a significance test against a
// multivariate Gaussian null model.
package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// Ward cuts the Ward-linkage dendrogram over Euclidean distances between
// subjects' score rows to produce exactly kClusters groups. Cluster ids
// are 0..kClusters-1, numbered by each cluster's first subject, so the
// assignment is deterministic: Ward linkage has no randomness and ties in
// merge cost break toward the lowest cluster indices.
func Ward(scores mat.Matrix, kClusters int) ([]int, error) {
	n, d := scores.Dims()
	if kClusters < 1 {
		return nil, errors.NewInvalidParameterError("kClusters", "must be at least 1", kClusters)
	}
	if kClusters > n {
		return nil, errors.NewInvalidParameterError("kClusters", "exceeds subject count", kClusters)
	}
	if err := errors.CheckMatrixFinite("Ward", scores, n, d); err != nil {
		return nil, err
	}

	// Centroid form of Ward's criterion: merging clusters a and b costs
	// (na*nb)/(na+nb) * ||ca-cb||^2, the increase in within-cluster sum
	// of squares.
	centroids := make([][]float64, n)
	sizes := make([]int, n)
	members := make([][]int, n)
	active := make([]bool, n)
	for i := 0; i < n; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			row[j] = scores.At(i, j)
		}
		centroids[i] = row
		sizes[i] = 1
		members[i] = []int{i}
		active[i] = true
	}

	remaining := n
	for remaining > kClusters {
		bestCost := math.Inf(1)
		bestA, bestB := -1, -1
		for a := 0; a < n; a++ {
			if !active[a] {
				continue
			}
			for b := a + 1; b < n; b++ {
				if !active[b] {
					continue
				}
				cost := wardCost(centroids[a], centroids[b], sizes[a], sizes[b])
				if cost < bestCost {
					bestCost = cost
					bestA, bestB = a, b
				}
			}
		}

		// Merge b into a; a keeps the lower index.
		na, nb := sizes[bestA], sizes[bestB]
		total := float64(na + nb)
		for j := 0; j < d; j++ {
			centroids[bestA][j] = (float64(na)*centroids[bestA][j] + float64(nb)*centroids[bestB][j]) / total
		}
		sizes[bestA] = na + nb
		members[bestA] = append(members[bestA], members[bestB]...)
		active[bestB] = false
		remaining--
	}

	// Number clusters by their first subject for a stable assignment.
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != -1 {
			continue
		}
		for a := 0; a < n; a++ {
			if !active[a] {
				continue
			}
			owns := false
			for _, m := range members[a] {
				if m == i {
					owns = true
					break
				}
			}
			if owns {
				for _, m := range members[a] {
					labels[m] = next
				}
				next++
				break
			}
		}
	}
	return labels, nil
}

func wardCost(ca, cb []float64, na, nb int) float64 {
	dist2 := 0.0
	for j := range ca {
		diff := ca[j] - cb[j]
		dist2 += diff * diff
	}
	return float64(na*nb) / float64(na+nb) * dist2
}
