package resampling

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/cca"
	"github.com/mariajose19/niclin2019-biotypes/core/parallel"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
	"github.com/mariajose19/niclin2019-biotypes/pkg/log"
)

// JackknifeResult holds one leave-one-out refit: the held-out subject's
// projected scores, the refitted model, and the first-variate Y loadings
// extracted from it. A rank-deficient refit carries Err; the remaining
// subjects are unaffected.
type JackknifeResult struct {
	// Subject is the omitted row index.
	Subject int
	// XScores and YScores are the held-out subject's canonical scores
	// under the model fitted without them.
	XScores []float64
	YScores []float64
	// Model is the full refitted model, kept for loading extraction and
	// cluster-stability assessment.
	Model *cca.CanonicalModel
	// YLoadings is the correlation of each Y variable with the first
	// canonical Y variate in this refit.
	YLoadings []float64
	Err       error
}

// Jackknife refits selector+fitter once per subject with that subject
// withheld, projecting the withheld row through each refitted model. This
// is the most compute-intensive component; refits run on the worker pool
// and results are ordered by subject index.
func Jackknife(ctx context.Context, X, Y mat.Matrix, k, workers int) ([]JackknifeResult, error) {
	n, _ := X.Dims()
	ny, _ := Y.Dims()
	if n != ny {
		return nil, errors.NewDimensionError("Jackknife", n, ny, 0)
	}

	logger := log.With("resampling")
	start := time.Now()

	results := make([]JackknifeResult, n)
	err := parallel.ForEachIndexed(ctx, n, workers, func(i int) (ferr error) {
		defer errors.Recover(&ferr, "jackknife refit")

		results[i] = JackknifeResult{Subject: i}
		train := complementRows(n, []int{i})

		sel, model, err := cca.SelectAndFit(extractRows(X, train), extractRows(Y, train), k)
		if err != nil {
			if errors.IsRankDeficiency(err) {
				results[i].Err = errors.Wrapf(err, "subject %d", i)
				return nil
			}
			return errors.Wrapf(err, "subject %d", i)
		}

		held := []int{i}
		xHeld := cca.SelectColumns(extractRows(X, held), sel.Indices)
		yHeld := extractRows(Y, held)
		xs, ys, err := model.Project(xHeld, yHeld)
		if err != nil {
			return errors.Wrapf(err, "subject %d projection", i)
		}

		d := model.NDim()
		results[i].XScores = make([]float64, d)
		results[i].YScores = make([]float64, d)
		for t := 0; t < d; t++ {
			results[i].XScores[t] = xs.At(0, t)
			results[i].YScores[t] = ys.At(0, t)
		}

		loadings, err := model.FirstYVariateLoadings()
		if err != nil {
			return errors.Wrapf(err, "subject %d loadings", i)
		}
		results[i].Model = model
		results[i].YLoadings = loadings
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
		Int(log.IterationsKey, n).
		Int(log.FailedIterationsKey, failed).
		Int64(log.DurationMsKey, time.Since(start).Milliseconds()).
		Msg("jackknife complete")

	return results, nil
}
