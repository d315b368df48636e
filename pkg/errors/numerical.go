package errors

import (
	"math"
)

// CheckFinite returns an error if any value is NaN or Inf. Statistics that
// cannot be computed must be marked absent explicitly, never smuggled
// through as NaN.
func CheckFinite(op string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Newf("biotypes: %s: non-finite value %g at index %d", op, v, i)
		}
	}
	return nil
}

// CheckMatrixFinite checks every entry of a matrix for NaN or Inf.
func CheckMatrixFinite(op string, m interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Newf("biotypes: %s: non-finite value %g at (%d,%d)", op, v, i, j)
			}
		}
	}
	return nil
}

// ClipCorrelation clamps a correlation coefficient to [-1, 1]. Rounding in
// the SVD can push singular values a few ulps outside the valid range.
func ClipCorrelation(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}

// SafeDivide returns numerator/denominator, or 0 when the denominator is
// effectively zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
