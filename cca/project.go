package cca

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// Project applies the fitted projection weights to (possibly new) data and
// returns the canonical variate scores for both sides. X must carry
// exactly the columns recorded in the model's selected-feature set, in the
// same order; a column-count mismatch is caller error, never silently
// realigned. Project has no side effects and is safe for concurrent use
// with the same model.
func (m *CanonicalModel) Project(X, Y mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	if !m.IsFitted() {
		return nil, nil, errors.NewNotFittedError("CanonicalModel", "Project")
	}

	n, px := X.Dims()
	ny, py := Y.Dims()
	wpx, _ := m.XWeights.Dims()
	wpy, _ := m.YWeights.Dims()

	if n != ny {
		return nil, nil, errors.NewDimensionError("Project", n, ny, 0)
	}
	if px != wpx {
		return nil, nil, errors.NewInvalidParameterError("X", "column set does not match the model's selected features", px)
	}
	if py != wpy {
		return nil, nil, errors.NewInvalidParameterError("Y", "column count does not match the fitted model", py)
	}

	xs := projectCentered(centerWith(X, m.xMeans), m.XWeights)
	ys := projectCentered(centerWith(Y, m.yMeans), m.YWeights)
	return xs, ys, nil
}

// centerWith subtracts the model's stored column means, so held-out rows
// are centered exactly as the training data was.
func centerWith(m mat.Matrix, means []float64) *mat.Dense {
	n, p := m.Dims()
	out := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			out.Set(i, j, m.At(i, j)-means[j])
		}
	}
	return out
}
