package cca

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mariajose19/niclin2019-biotypes/core/model"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// Singular values below rankTol * largest are treated as zero, and a
// condition number above condWarn raises a NumericalInstabilityWarning.
const (
	rankTol  = 1e-10
	condWarn = 1e8
)

// WilksLambda summarizes overall association strength across all retained
// canonical dimensions via Bartlett's chi-squared approximation.
type WilksLambda struct {
	Lambda    float64
	ChiSquare float64
	DF        int
	PValue    float64
}

// CanonicalModel is the output of one Fit invocation: canonical
// correlations in descending order, projection weights for both sides, the
// selected-feature index set that produced the X side, and the loading
// matrices. It is consumed read-only by Project and loading extraction.
type CanonicalModel struct {
	model.BaseEstimator

	// Corrs are the canonical correlation coefficients, descending, one
	// per canonical dimension.
	Corrs []float64
	// Wilks is the likelihood-ratio statistic over all dimensions.
	Wilks WilksLambda

	// XWeights (px x p) and YWeights (py x p) map centered data to
	// canonical variate scores.
	XWeights *mat.Dense
	YWeights *mat.Dense

	// XLoadings (px x p) and YLoadings (py x p) are the correlations of
	// the original variables with the canonical variates on the data the
	// model was fitted to.
	XLoadings *mat.Dense
	YLoadings *mat.Dense

	// Selected is the X-column index set recorded from the selector step.
	Selected []int

	xMeans []float64
	yMeans []float64
}

// NDim returns the number of canonical dimensions.
func (m *CanonicalModel) NDim() int {
	return len(m.Corrs)
}

// Fit computes the canonical correlation decomposition of XSel against Y.
// XSel must already be restricted to the selected columns; selection
// records their original indices on the returned model (it may be nil when
// no selector ran). Rank deficiency on either side is an error: the caller
// must reduce k or collect more subjects.
//
// The decomposition is SVD-based: each centered block is reduced to an
// orthonormal basis and the canonical correlations are the singular values
// of the product of the two bases. No covariance matrix is ever inverted.
func Fit(XSel, Y mat.Matrix, selection *SelectionResult) (*CanonicalModel, error) {
	n, px := XSel.Dims()
	ny, py := Y.Dims()

	if n != ny {
		return nil, errors.NewDimensionError("CCA.Fit", n, ny, 0)
	}
	if px < 1 || py < 1 {
		return nil, errors.NewInvalidParameterError("X/Y", "needs at least one column per side", px)
	}
	if n-1 < px {
		// Centered rank is at most n-1; more columns than that cannot be
		// independent.
		return nil, errors.NewRankDeficiencyError("CCA.Fit", n-1, px)
	}
	if n-1 < py {
		return nil, errors.NewRankDeficiencyError("CCA.Fit", n-1, py)
	}

	xc, xMeans := centerColumns(XSel)
	yc, yMeans := centerColumns(Y)

	ux, sx, vx, err := thinSVD(xc, "CCA.Fit(X)")
	if err != nil {
		return nil, err
	}
	uy, sy, vy, err := thinSVD(yc, "CCA.Fit(Y)")
	if err != nil {
		return nil, err
	}

	if rank(sx) < px {
		return nil, errors.NewRankDeficiencyError("CCA.Fit(X)", rank(sx), px)
	}
	if rank(sy) < py {
		return nil, errors.NewRankDeficiencyError("CCA.Fit(Y)", rank(sy), py)
	}
	warnIfIllConditioned("CCA.Fit(X)", sx)
	warnIfIllConditioned("CCA.Fit(Y)", sy)

	// M = Qx^T Qy; its singular values are the canonical correlations.
	var m mat.Dense
	m.Mul(ux.T(), uy)

	var svd mat.SVD
	if !svd.Factorize(&m, mat.SVDThin) {
		return nil, errors.New("biotypes: CCA.Fit: SVD of cross-basis product failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	p := px
	if py < p {
		p = py
	}
	corrs := make([]float64, p)
	for i := 0; i < p; i++ {
		corrs[i] = errors.ClipCorrelation(sv[i])
	}

	// Weights: W = V diag(1/s) U_rot, scaled so scores have unit variance.
	scale := math.Sqrt(float64(n - 1))
	xw := weights(vx, sx, &u, p, scale)
	yw := weights(vy, sy, &v, p, scale)

	// Scores on the training data, for the loading matrices.
	xScores := projectCentered(xc, xw)
	yScores := projectCentered(yc, yw)

	cm := &CanonicalModel{
		Corrs:     corrs,
		XWeights:  xw,
		YWeights:  yw,
		XLoadings: loadingMatrix(xc, xScores),
		YLoadings: loadingMatrix(yc, yScores),
		xMeans:    xMeans,
		yMeans:    yMeans,
	}
	if selection != nil {
		cm.Selected = append([]int(nil), selection.Indices...)
	}
	cm.Wilks = wilksLambda(corrs, n, px, py)
	cm.SetFitted()
	return cm, nil
}

// wilksLambda computes Lambda over all p dimensions and Bartlett's
// chi-squared approximation with px*py degrees of freedom.
func wilksLambda(corrs []float64, n, px, py int) WilksLambda {
	lambda := 1.0
	for _, r := range corrs {
		lambda *= 1 - r*r
	}

	df := px * py
	// Guard against log(0) when a correlation is exactly 1.
	chi := 0.0
	if lambda > 0 {
		chi = -(float64(n-1) - (float64(px)+float64(py)+1)/2) * math.Log(lambda)
	} else {
		chi = math.Inf(1)
	}

	chiDist := distuv.ChiSquared{K: float64(df)}
	pval := 0.0
	if !math.IsInf(chi, 1) {
		pval = chiDist.Survival(chi)
	}

	return WilksLambda{Lambda: lambda, ChiSquare: chi, DF: df, PValue: pval}
}

func centerColumns(m mat.Matrix) (*mat.Dense, []float64) {
	n, p := m.Dims()
	out := mat.NewDense(n, p, nil)
	means := make([]float64, p)

	for j := 0; j < p; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += m.At(i, j)
		}
		means[j] = sum / float64(n)
		for i := 0; i < n; i++ {
			out.Set(i, j, m.At(i, j)-means[j])
		}
	}
	return out, means
}

func thinSVD(a *mat.Dense, op string) (*mat.Dense, []float64, *mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, nil, nil, errors.Newf("biotypes: %s: SVD failed to converge", op)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return &u, svd.Values(nil), &v, nil
}

func rank(sv []float64) int {
	if len(sv) == 0 {
		return 0
	}
	tol := sv[0] * rankTol
	r := 0
	for _, s := range sv {
		if s > tol {
			r++
		}
	}
	return r
}

func warnIfIllConditioned(op string, sv []float64) {
	if len(sv) == 0 || sv[len(sv)-1] <= 0 {
		return
	}
	cond := sv[0] / sv[len(sv)-1]
	if cond > condWarn {
		errors.Warn(errors.NewNumericalInstabilityWarning(op, cond, "basis nearly singular; results are low-confidence"))
	}
}

// weights builds V diag(1/s) R[:, :p] * scale.
func weights(v *mat.Dense, s []float64, rot *mat.Dense, p int, scale float64) *mat.Dense {
	pv, r := v.Dims()
	out := mat.NewDense(pv, p, nil)
	for i := 0; i < pv; i++ {
		for d := 0; d < p; d++ {
			sum := 0.0
			for t := 0; t < r; t++ {
				sum += v.At(i, t) / s[t] * rot.At(t, d)
			}
			out.Set(i, d, sum*scale)
		}
	}
	return out
}

func projectCentered(c *mat.Dense, w *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(c, w)
	return &out
}

// loadingMatrix computes the correlation of each centered column with each
// score column.
func loadingMatrix(c *mat.Dense, scores *mat.Dense) *mat.Dense {
	n, p := c.Dims()
	_, d := scores.Dims()
	out := mat.NewDense(p, d, nil)

	col := make([]float64, n)
	score := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, c)
		for t := 0; t < d; t++ {
			mat.Col(score, t, scores)
			out.Set(j, t, pearson(col, score))
		}
	}
	return out
}

func pearson(a, b []float64) float64 {
	n := len(a)
	var ma, mb float64
	for i := 0; i < n; i++ {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)

	var num, da, db float64
	for i := 0; i < n; i++ {
		x := a[i] - ma
		y := b[i] - mb
		num += x * y
		da += x * x
		db += y * y
	}
	denom := math.Sqrt(da * db)
	if denom == 0 {
		return math.NaN()
	}
	return num / denom
}
