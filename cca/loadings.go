package cca

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// FirstYVariateLoadings returns the correlation of every original Y
// variable with the first canonical Y variate on the fitting data. The
// jackknife collects this vector across refits to quantify how sensitive
// feature importance is to single-subject removal.
func (m *CanonicalModel) FirstYVariateLoadings() ([]float64, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("CanonicalModel", "FirstYVariateLoadings")
	}

	py, _ := m.YLoadings.Dims()
	out := make([]float64, py)
	for j := 0; j < py; j++ {
		out[j] = m.YLoadings.At(j, 0)
	}
	return out, nil
}

// SelectAndFit runs the feature selector and the canonical fitter in
// sequence. This is the refit unit shared by the permutation,
// cross-validation, and jackknife loops.
func SelectAndFit(X, Y mat.Matrix, k int) (*SelectionResult, *CanonicalModel, error) {
	sel, err := SelectFeatures(X, Y, k)
	if err != nil {
		return nil, nil, err
	}

	model, err := Fit(SelectColumns(X, sel.Indices), Y, sel)
	if err != nil {
		return nil, nil, err
	}
	return sel, model, nil
}

// SelectColumns copies the given columns of m, in order, into a new dense
// matrix.
func SelectColumns(m mat.Matrix, indices []int) *mat.Dense {
	n, _ := m.Dims()
	out := mat.NewDense(n, len(indices), nil)
	for pos, j := range indices {
		for i := 0; i < n; i++ {
			out.Set(i, pos, m.At(i, j))
		}
	}
	return out
}
