// Package cca implements the linkage core: Spearman-based feature
// selection, canonical correlation analysis via QR/SVD, projection onto
// canonical variates, and loading extraction.
package cca

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/mariajose19/niclin2019-biotypes/core/parallel"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// SelectionResult records which X columns the selector retained and the
// association score that ranked them. It is immutable once computed and
// owned by the fit that produced it.
type SelectionResult struct {
	// Indices are the retained column indices of X, ascending.
	Indices []int
	// Scores holds, for every column of X, the maximum absolute Spearman
	// correlation against any column of Y.
	Scores []float64
	// Threshold is the k-th largest score; every column scoring >= it was
	// admitted, so ties at the threshold can push Len() above k.
	Threshold float64
}

// Len returns the number of columns actually selected. Callers must not
// assume this equals the requested k: ties at the threshold admit extras.
func (s *SelectionResult) Len() int {
	return len(s.Indices)
}

// SelectFeatures ranks the columns of X by their strongest absolute
// Spearman correlation with any column of Y and retains the top k. Columns
// tied with the k-th score are also retained. X and Y must be row-aligned
// and free of missing values.
func SelectFeatures(X, Y mat.Matrix, k int) (*SelectionResult, error) {
	n, p := X.Dims()
	ny, q := Y.Dims()

	if n != ny {
		return nil, errors.NewDimensionError("SelectFeatures", n, ny, 0)
	}
	if k < 1 {
		return nil, errors.NewInvalidParameterError("k", "must be at least 1", k)
	}
	if k > p {
		return nil, errors.NewInvalidParameterError("k", "exceeds number of X columns", k)
	}
	if err := errors.CheckMatrixFinite("SelectFeatures", X, n, p); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrixFinite("SelectFeatures", Y, n, q); err != nil {
		return nil, err
	}

	// Rank-transform every column once; Spearman is then Pearson on ranks.
	xRanks := rankColumns(X)
	yRanks := rankColumns(Y)

	scores := make([]float64, p)
	parallel.ParallelizeWithThreshold(p, 64, func(start, end int) {
		for j := start; j < end; j++ {
			best := 0.0
			for l := 0; l < q; l++ {
				r := math.Abs(stat.Correlation(xRanks[j], yRanks[l], nil))
				if math.IsNaN(r) {
					// Constant column: no rank variance, no association.
					continue
				}
				if r > best {
					best = r
				}
			}
			scores[j] = best
		}
	})

	threshold := kthLargest(scores, k)

	var indices []int
	for j := 0; j < p; j++ {
		if scores[j] >= threshold {
			indices = append(indices, j)
		}
	}

	return &SelectionResult{Indices: indices, Scores: scores, Threshold: threshold}, nil
}

// rankColumns returns the average-rank transform of each column (ranks
// start at 1; ties share the mean of the ranks they span).
func rankColumns(m mat.Matrix) [][]float64 {
	n, p := m.Dims()
	out := make([][]float64, p)

	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, m)
		out[j] = averageRanks(col)
	}
	return out
}

func averageRanks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		// Mean rank for the tied run [i, j].
		mean := float64(i+j)/2 + 1
		for t := i; t <= j; t++ {
			ranks[order[t]] = mean
		}
		i = j + 1
	}
	return ranks
}

// kthLargest returns the k-th largest value of scores (1-based k).
func kthLargest(scores []float64, k int) float64 {
	s := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(s)))
	return s[k-1]
}
