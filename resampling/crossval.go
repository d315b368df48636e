package resampling

import (
	"context"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/mariajose19/niclin2019-biotypes/cca"
	"github.com/mariajose19/niclin2019-biotypes/core/parallel"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
	"github.com/mariajose19/niclin2019-biotypes/pkg/log"
)

// FoldResult reports one held-out fold. Corrs is the per-canonical-
// dimension correlation between the held-out X and Y scores (the diagonal
// of their cross-correlation, never the cross terms). A fold whose
// training refit was rank-deficient carries Err and nil Corrs; the other
// folds are unaffected.
type FoldResult struct {
	Fold        int
	TestIndices []int
	Corrs       []float64
	Err         error
}

// CrossValConfig configures a stratified k-fold run.
type CrossValConfig struct {
	K      int
	NFolds int
	// Strata drives stratified fold assignment (scan site); nil means a
	// single stratum.
	Strata  []string
	Seed    int64
	Workers int
}

// StratifiedFolds partitions 0..n-1 into nFolds folds whose distribution
// over strata approximates the full dataset's. Within each stratum
// (visited in sorted label order) rows are shuffled with the seeded rng
// and dealt round-robin, so every subject lands in exactly one test fold.
func StratifiedFolds(n, nFolds int, strata []string, seed int64) ([][]int, error) {
	if nFolds < 2 {
		return nil, errors.NewInvalidParameterError("NFolds", "must be at least 2", nFolds)
	}
	if nFolds > n {
		return nil, errors.NewInvalidParameterError("NFolds", "exceeds subject count", nFolds)
	}
	if strata != nil && len(strata) != n {
		return nil, errors.NewDimensionError("StratifiedFolds", n, len(strata), 0)
	}
	if strata == nil {
		strata = make([]string, n)
	}

	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, nFolds)

	next := 0
	for _, g := range groupByLabel(strata) {
		idx := append([]int(nil), g.indices...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, row := range idx {
			folds[next%nFolds] = append(folds[next%nFolds], row)
			next++
		}
	}
	return folds, nil
}

// CrossValidate refits selector+fitter on each training fold and reports
// the out-of-sample canonical correlations on the held-out fold. Folds run
// concurrently; results are ordered by fold index.
func CrossValidate(ctx context.Context, X, Y mat.Matrix, cfg CrossValConfig) ([]FoldResult, error) {
	n, _ := X.Dims()
	ny, _ := Y.Dims()
	if n != ny {
		return nil, errors.NewDimensionError("CrossValidate", n, ny, 0)
	}

	folds, err := StratifiedFolds(n, cfg.NFolds, cfg.Strata, cfg.Seed)
	if err != nil {
		return nil, err
	}

	logger := log.With("resampling")
	start := time.Now()

	results := make([]FoldResult, cfg.NFolds)
	err = parallel.ForEachIndexed(ctx, cfg.NFolds, cfg.Workers, func(f int) (ferr error) {
		defer errors.Recover(&ferr, "cross-validation fold")

		test := folds[f]
		train := complementRows(n, test)
		results[f] = FoldResult{Fold: f, TestIndices: test}

		xTrain := extractRows(X, train)
		yTrain := extractRows(Y, train)

		sel, model, err := cca.SelectAndFit(xTrain, yTrain, cfg.K)
		if err != nil {
			if errors.IsRankDeficiency(err) {
				results[f].Err = errors.Wrapf(err, "fold %d", f)
				return nil
			}
			return errors.Wrapf(err, "fold %d", f)
		}

		xTest := cca.SelectColumns(extractRows(X, test), sel.Indices)
		yTest := extractRows(Y, test)
		xs, ys, err := model.Project(xTest, yTest)
		if err != nil {
			return errors.Wrapf(err, "fold %d projection", f)
		}

		results[f].Corrs = scoreDiagonal(xs, ys)
		return nil
	})
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info().
		Int(log.FoldsKey, cfg.NFolds).
		Int(log.FailedIterationsKey, failed).
		Int64(log.SeedKey, cfg.Seed).
		Int64(log.DurationMsKey, time.Since(start).Milliseconds()).
		Msg("cross-validation complete")

	return results, nil
}

// scoreDiagonal returns the per-dimension Pearson correlation between
// paired score columns.
func scoreDiagonal(xs, ys *mat.Dense) []float64 {
	n, d := xs.Dims()
	out := make([]float64, d)
	a := make([]float64, n)
	b := make([]float64, n)
	for t := 0; t < d; t++ {
		mat.Col(a, t, xs)
		mat.Col(b, t, ys)
		out[t] = stat.Correlation(a, b, nil)
	}
	return out
}
