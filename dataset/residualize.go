package dataset

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// Covariates holds the nuisance variables regressed out of both data
// blocks before the linkage analysis: age, mean frame displacement, and
// scan site. Site doubles as the blocking/stratification label for the
// resampling components.
type Covariates struct {
	Age               []float64
	FrameDisplacement []float64
	Site              []string
}

// Len returns the number of subjects covered.
func (c *Covariates) Len() int {
	return len(c.Age)
}

// validate checks that all covariate vectors cover n subjects.
func (c *Covariates) validate(n int) error {
	if len(c.Age) != n {
		return errors.NewDimensionError("Covariates", n, len(c.Age), 0)
	}
	if len(c.FrameDisplacement) != n {
		return errors.NewDimensionError("Covariates", n, len(c.FrameDisplacement), 0)
	}
	if len(c.Site) != n {
		return errors.NewDimensionError("Covariates", n, len(c.Site), 0)
	}
	return nil
}

// designMatrix builds the OLS design: intercept, age, frame displacement,
// and one dummy per site beyond the first (sites in sorted order, first
// level absorbed by the intercept).
func (c *Covariates) designMatrix() *mat.Dense {
	n := c.Len()

	sites := uniqueSorted(c.Site)
	level := make(map[string]int, len(sites))
	for i, s := range sites {
		level[s] = i
	}

	cols := 3 + len(sites) - 1
	design := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		design.Set(i, 1, c.Age[i])
		design.Set(i, 2, c.FrameDisplacement[i])
		if l := level[c.Site[i]]; l > 0 {
			design.Set(i, 3+l-1, 1)
		}
	}
	return design
}

// Residualize regresses every column of m on the nuisance covariates and
// returns the residuals. The regression is solved by QR least squares for
// all columns at once; missing values must already be imputed.
func Residualize(m *FeatureMatrix, cov *Covariates) (*FeatureMatrix, error) {
	n := m.Rows()
	if err := cov.validate(n); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrixFinite("Residualize", m.data, n, m.Cols()); err != nil {
		return nil, err
	}

	design := cov.designMatrix()
	_, p := design.Dims()
	if n <= p {
		return nil, errors.NewRankDeficiencyError("Residualize", n, p+1)
	}

	var qr mat.QR
	qr.Factorize(design)

	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, m.data); err != nil {
		return nil, errors.Wrap(err, "solving nuisance regression")
	}

	var fitted mat.Dense
	fitted.Mul(design, &coef)

	resid := mat.NewDense(n, m.Cols(), nil)
	resid.Sub(m.data, &fitted)

	return &FeatureMatrix{subjects: m.Subjects(), columns: m.Columns(), data: resid}, nil
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
