// Package dataset provides the tabular collaborators around the inference
// core: loading row-aligned subject tables, recoding and imputing the
// connectivity matrix, the Fisher Z transform, and nuisance-covariate
// residualization. The core itself only ever sees the cleaned matrices
// this package produces.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// FeatureMatrix is an ordered collection of named numeric columns with one
// row per subject. Subject order is the row order; every matrix used in
// one run must share it.
type FeatureMatrix struct {
	subjects []string
	columns  []string
	data     *mat.Dense
}

// NewFeatureMatrix builds a FeatureMatrix and enforces the construction
// invariants: row count matches the subject list, column count matches the
// name list, and subject identifiers are unique.
func NewFeatureMatrix(subjects, columns []string, data *mat.Dense) (*FeatureMatrix, error) {
	r, c := data.Dims()
	if r != len(subjects) {
		return nil, errors.NewDimensionError("NewFeatureMatrix", len(subjects), r, 0)
	}
	if c != len(columns) {
		return nil, errors.NewDimensionError("NewFeatureMatrix", len(columns), c, 1)
	}

	seen := make(map[string]struct{}, len(subjects))
	for _, id := range subjects {
		if _, dup := seen[id]; dup {
			return nil, errors.NewInvalidParameterError("subjects", "duplicate subject identifier", id)
		}
		seen[id] = struct{}{}
	}

	return &FeatureMatrix{
		subjects: append([]string(nil), subjects...),
		columns:  append([]string(nil), columns...),
		data:     data,
	}, nil
}

// Rows returns the number of subjects.
func (m *FeatureMatrix) Rows() int {
	r, _ := m.data.Dims()
	return r
}

// Cols returns the number of columns.
func (m *FeatureMatrix) Cols() int {
	_, c := m.data.Dims()
	return c
}

// Subjects returns the subject identifiers in row order.
func (m *FeatureMatrix) Subjects() []string {
	return append([]string(nil), m.subjects...)
}

// Columns returns the column names in order.
func (m *FeatureMatrix) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Data returns the underlying dense matrix. Callers treat it as read-only.
func (m *FeatureMatrix) Data() *mat.Dense {
	return m.data
}

// Column copies column j into a fresh slice.
func (m *FeatureMatrix) Column(j int) []float64 {
	out := make([]float64, m.Rows())
	mat.Col(out, j, m.data)
	return out
}

// SelectColumns returns a new FeatureMatrix restricted to the given column
// indices, in the given order.
func (m *FeatureMatrix) SelectColumns(indices []int) (*FeatureMatrix, error) {
	_, c := m.data.Dims()
	for _, j := range indices {
		if j < 0 || j >= c {
			return nil, errors.NewInvalidParameterError("indices", "column index out of range", j)
		}
	}

	r := m.Rows()
	out := mat.NewDense(r, len(indices), nil)
	names := make([]string, len(indices))
	for pos, j := range indices {
		names[pos] = m.columns[j]
		for i := 0; i < r; i++ {
			out.Set(i, pos, m.data.At(i, j))
		}
	}

	return &FeatureMatrix{subjects: m.Subjects(), columns: names, data: out}, nil
}

// SelectRows returns a new FeatureMatrix restricted to the given row
// indices, in the given order.
func (m *FeatureMatrix) SelectRows(indices []int) (*FeatureMatrix, error) {
	r, c := m.data.Dims()
	for _, i := range indices {
		if i < 0 || i >= r {
			return nil, errors.NewInvalidParameterError("indices", "row index out of range", i)
		}
	}

	out := mat.NewDense(len(indices), c, nil)
	ids := make([]string, len(indices))
	for pos, i := range indices {
		ids[pos] = m.subjects[i]
		for j := 0; j < c; j++ {
			out.Set(pos, j, m.data.At(i, j))
		}
	}

	return &FeatureMatrix{subjects: ids, columns: m.Columns(), data: out}, nil
}

// CheckAligned verifies that two matrices cover the same subjects in the
// same order.
func CheckAligned(a, b *FeatureMatrix) error {
	if a.Rows() != b.Rows() {
		return errors.NewDimensionError("CheckAligned", a.Rows(), b.Rows(), 0)
	}
	for i := range a.subjects {
		if a.subjects[i] != b.subjects[i] {
			return errors.NewInvalidParameterError("subjects", "row order differs between matrices", a.subjects[i])
		}
	}
	return nil
}
