package resampling

import (
	"context"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/cca"
	"github.com/mariajose19/niclin2019-biotypes/core/parallel"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
	"github.com/mariajose19/niclin2019-biotypes/pkg/log"
)

// PermutationTest holds the observed fit, the empirical null, and the
// rank-based p-values derived from it.
type PermutationTest struct {
	Observed *cca.CanonicalModel
	Null     *NullDistribution

	// CorrPValues[d] is the p-value of observed canonical correlation d.
	CorrPValues []float64
	// WilksPValue is the p-value of the observed Wilks chi-square.
	WilksPValue float64
}

// PermutationConfig configures a permutation run.
type PermutationConfig struct {
	K      int
	NPerms int
	// Blocks restricts shuffles to within-block exchanges (scan site);
	// nil means unrestricted permutation.
	Blocks []string
	Seed   int64
	// Workers bounds the refit pool; 0 means one per CPU core.
	Workers int
}

// iteration carries one permutation refit's statistics.
type permIteration struct {
	valid bool
	corrs []float64
	chi   float64
}

// Permute builds an empirical null for the canonical correlations and the
// Wilks statistic by refitting selector+fitter on Y with rows permuted
// within blocks, X unchanged. Iterations are independent; a rank-deficient
// refit is recorded as absent and the loop continues. Given the same seed
// and blocks, results are exactly reproducible regardless of parallelism.
func Permute(ctx context.Context, X, Y mat.Matrix, cfg PermutationConfig) (*PermutationTest, error) {
	n, _ := X.Dims()
	ny, _ := Y.Dims()
	if n != ny {
		return nil, errors.NewDimensionError("Permute", n, ny, 0)
	}
	if cfg.NPerms < 0 {
		return nil, errors.NewInvalidParameterError("NPerms", "must be non-negative", cfg.NPerms)
	}
	if cfg.Blocks != nil && len(cfg.Blocks) != n {
		return nil, errors.NewDimensionError("Permute", n, len(cfg.Blocks), 0)
	}

	logger := log.With("resampling")
	start := time.Now()

	// The real fit first: rank deficiency here is fatal.
	_, observed, err := cca.SelectAndFit(X, Y, cfg.K)
	if err != nil {
		return nil, errors.Wrap(err, "observed fit")
	}
	p := observed.NDim()

	iters := make([]permIteration, cfg.NPerms)
	err = parallel.ForEachIndexed(ctx, cfg.NPerms, cfg.Workers, func(i int) (ferr error) {
		defer errors.Recover(&ferr, "permutation refit")

		rng := rand.New(rand.NewSource(parallel.SeedFor(cfg.Seed, i)))
		perm := blockedPermutation(rng, cfg.Blocks, n)
		yPerm := permuteRows(Y, perm)

		_, nullModel, err := cca.SelectAndFit(X, yPerm, cfg.K)
		if err != nil {
			if errors.IsRankDeficiency(err) {
				// Absent, not zero; the p-value denominator still counts it.
				return nil
			}
			return errors.Wrapf(err, "permutation %d", i)
		}

		// A refit may retain fewer dimensions than the observed fit
		// (threshold ties change the selected count). Record only the
		// dimensions it produced; the rest stay absent for this draw.
		nd := len(nullModel.Corrs)
		if nd > p {
			nd = p
		}
		corrs := make([]float64, nd)
		copy(corrs, nullModel.Corrs[:nd])
		iters[i] = permIteration{valid: true, corrs: corrs, chi: nullModel.Wilks.ChiSquare}
		return nil
	})
	if err != nil {
		return nil, err
	}

	null := assembleNull(iters, p, cfg.NPerms)

	test := &PermutationTest{
		Observed:    observed,
		Null:        null,
		CorrPValues: make([]float64, p),
		WilksPValue: PValueGreater(null.ChiSquare, observed.Wilks.ChiSquare, cfg.NPerms),
	}
	for d := 0; d < p; d++ {
		test.CorrPValues[d] = PValueGreater(null.CorrsByDim[d], observed.Corrs[d], cfg.NPerms)
	}

	logger.Info().
		Int(log.IterationsKey, cfg.NPerms).
		Int(log.FailedIterationsKey, null.Failed).
		Int64(log.SeedKey, cfg.Seed).
		Int64(log.DurationMsKey, time.Since(start).Milliseconds()).
		Msg("permutation test complete")

	return test, nil
}

// assembleNull collects the per-iteration statistics into the null
// distribution. An invalid iteration counts as failed; a valid iteration
// contributes only the dimensions it actually produced, so no dimension's
// null ever contains padding values.
func assembleNull(iters []permIteration, p, requested int) *NullDistribution {
	null := &NullDistribution{
		CorrsByDim: make([][]float64, p),
		Requested:  requested,
	}
	for _, it := range iters {
		if !it.valid {
			null.Failed++
			continue
		}
		for d := 0; d < p && d < len(it.corrs); d++ {
			null.CorrsByDim[d] = append(null.CorrsByDim[d], it.corrs[d])
		}
		null.ChiSquare = append(null.ChiSquare, it.chi)
	}
	return null
}
