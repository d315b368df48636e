package report

import (
	"math/rand"

	"github.com/montanaflynn/stats"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
	"github.com/mariajose19/niclin2019-biotypes/resampling"
)

// CVSummary describes the out-of-sample first canonical correlation
// across folds: location, spread, and a bootstrap percentile interval
// for the mean.
type CVSummary struct {
	Mean   float64
	Median float64
	StdDev float64

	// Lower and Upper bound the 95% bootstrap interval for the mean.
	Lower float64
	Upper float64

	// Folds counts the folds that contributed; Failed the ones that did
	// not refit.
	Folds  int
	Failed int
}

const bootstrapResamples = 2000

// SummarizeCrossValidation aggregates the fold results. The bootstrap is
// seeded so the interval is reproducible for a given fold set.
func SummarizeCrossValidation(folds []resampling.FoldResult, seed int64) (*CVSummary, error) {
	var corrs []float64
	failed := 0
	for _, f := range folds {
		if f.Err != nil {
			failed++
			continue
		}
		corrs = append(corrs, f.Corrs[0])
	}
	if len(corrs) == 0 {
		return nil, errors.New("biotypes: every cross-validation fold failed")
	}

	mean, err := stats.Mean(corrs)
	if err != nil {
		return nil, errors.Wrap(err, "fold mean")
	}
	median, err := stats.Median(corrs)
	if err != nil {
		return nil, errors.Wrap(err, "fold median")
	}
	sd := 0.0
	if len(corrs) > 1 {
		sd, err = stats.StandardDeviationSample(corrs)
		if err != nil {
			return nil, errors.Wrap(err, "fold standard deviation")
		}
	}

	rng := rand.New(rand.NewSource(seed))
	means := make([]float64, bootstrapResamples)
	resample := make([]float64, len(corrs))
	for b := range means {
		for i := range resample {
			resample[i] = corrs[rng.Intn(len(corrs))]
		}
		m, err := stats.Mean(resample)
		if err != nil {
			return nil, errors.Wrap(err, "bootstrap mean")
		}
		means[b] = m
	}
	lower, err := stats.Percentile(means, 2.5)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap lower percentile")
	}
	upper, err := stats.Percentile(means, 97.5)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap upper percentile")
	}

	return &CVSummary{
		Mean:   mean,
		Median: median,
		StdDev: sd,
		Lower:  lower,
		Upper:  upper,
		Folds:  len(corrs),
		Failed: failed,
	}, nil
}
