// Package resampling implements the refit-in-a-loop components of the
// pipeline: the blocked permutation test, stratified cross-validation,
// and the leave-one-out jackknife. All three share one pattern: rows are
// rearranged or withheld, the selector+fitter pair is re-run, and the
// result lands in an index-keyed slot. Randomness for iteration i is
// derived from (seed, i), so parallel scheduling never changes output.
package resampling

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// NullDistribution is the ordered collection of statistic values produced
// by a resampling loop, keyed by statistic and canonical-dimension index.
// It is built once, is immutable afterwards, and is consumed exactly once
// to compute rank-based p-values. Iterations whose refit was
// rank-deficient are recorded as absent, never as zeros.
type NullDistribution struct {
	// CorrsByDim[d] holds the null canonical correlation for dimension d
	// across the valid iterations.
	CorrsByDim [][]float64
	// ChiSquare holds the null Wilks' Lambda chi-square statistic across
	// the valid iterations.
	ChiSquare []float64
	// Requested is the number of iterations asked for; Failed counts the
	// iterations recorded as absent.
	Requested int
	Failed    int
}

// PValueGreater returns the add-one-corrected rank p-value for a statistic
// where larger observed values mean stronger evidence: (count of null
// values strictly greater than observed + 1) / (requested + 1). The
// add-one correction keeps p-values in (0, 1] and exact under the null.
func PValueGreater(null []float64, observed float64, requested int) float64 {
	count := 0
	for _, v := range null {
		if v > observed {
			count++
		}
	}
	return float64(count+1) / float64(requested+1)
}

// blockedPermutation returns a permutation of 0..n-1 in which rows only
// exchange positions with rows sharing the same block label. Blocks are
// visited in sorted label order so the rng draw sequence is reproducible.
// An empty block slice means one unrestricted block.
func blockedPermutation(rng *rand.Rand, blocks []string, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if len(blocks) == 0 {
		rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		return perm
	}

	groups := groupByLabel(blocks)
	for _, g := range groups {
		idx := g.indices
		// Shuffle the block's rows among the block's positions.
		shuffled := append([]int(nil), idx...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for pos, target := range idx {
			perm[target] = shuffled[pos]
		}
	}
	return perm
}

type labelGroup struct {
	label   string
	indices []int
}

// groupByLabel buckets row indices by label, sorted by label for
// deterministic iteration.
func groupByLabel(labels []string) []labelGroup {
	byLabel := make(map[string][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}

	names := make([]string, 0, len(byLabel))
	for l := range byLabel {
		names = append(names, l)
	}
	sort.Strings(names)

	out := make([]labelGroup, 0, len(names))
	for _, l := range names {
		out = append(out, labelGroup{label: l, indices: byLabel[l]})
	}
	return out
}

// permuteRows returns a copy of m with row i replaced by row perm[i].
func permuteRows(m mat.Matrix, perm []int) *mat.Dense {
	n, p := m.Dims()
	out := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		src := perm[i]
		for j := 0; j < p; j++ {
			out.Set(i, j, m.At(src, j))
		}
	}
	return out
}

// extractRows copies the given rows of m, in order, into a new matrix.
func extractRows(m mat.Matrix, indices []int) *mat.Dense {
	_, p := m.Dims()
	out := mat.NewDense(len(indices), p, nil)
	for pos, i := range indices {
		for j := 0; j < p; j++ {
			out.Set(pos, j, m.At(i, j))
		}
	}
	return out
}

// complementRows returns all row indices of n not present in exclude.
func complementRows(n int, exclude []int) []int {
	drop := make(map[int]struct{}, len(exclude))
	for _, i := range exclude {
		drop[i] = struct{}{}
	}
	out := make([]int, 0, n-len(exclude))
	for i := 0; i < n; i++ {
		if _, skip := drop[i]; !skip {
			out = append(out, i)
		}
	}
	return out
}
