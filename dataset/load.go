package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
	"github.com/mariajose19/niclin2019-biotypes/pkg/log"
)

// LoadCSV reads a headered CSV file into a FeatureMatrix. The idColumn
// becomes the subject identifier; every other column must parse as a
// float. Empty cells and the literal "NA" become NaN (missing).
func LoadCSV(path, idColumn string) (*FeatureMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f, idColumn)
}

// ReadCSV parses CSV content from r. See LoadCSV.
func ReadCSV(r io.Reader, idColumn string) (*FeatureMatrix, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading CSV header")
	}

	idIdx := -1
	var columns []string
	var colIdx []int
	for i, name := range header {
		if name == idColumn {
			idIdx = i
			continue
		}
		columns = append(columns, name)
		colIdx = append(colIdx, i)
	}
	if idIdx < 0 {
		return nil, errors.NewInvalidParameterError("idColumn", "not present in header", idColumn)
	}

	var subjects []string
	var values []float64
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading CSV row %d", rows+1)
		}

		subjects = append(subjects, record[idIdx])
		for _, j := range colIdx {
			cell := record[j]
			if cell == "" || cell == "NA" || cell == "NaN" {
				values = append(values, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, column %s", rows+1, header[j])
			}
			values = append(values, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.New("biotypes: CSV contains no data rows")
	}

	return NewFeatureMatrix(subjects, columns, mat.NewDense(rows, len(columns), values))
}

// JoinOnSubject reorders b's rows to match a's subject order and returns
// the reordered matrix. Subjects of a that are missing from b are an
// error; extra subjects in b are dropped.
func JoinOnSubject(a, b *FeatureMatrix) (*FeatureMatrix, error) {
	pos := make(map[string]int, b.Rows())
	for i, id := range b.subjects {
		pos[id] = i
	}

	indices := make([]int, 0, a.Rows())
	for _, id := range a.subjects {
		i, ok := pos[id]
		if !ok {
			return nil, errors.NewInvalidParameterError("subjects", "subject missing from joined table", id)
		}
		indices = append(indices, i)
	}
	return b.SelectRows(indices)
}

// RecodeZeroAsMissing replaces exact-zero entries with NaN. Zero is the
// missing-value sentinel of the connectivity export.
func RecodeZeroAsMissing(m *FeatureMatrix) *FeatureMatrix {
	r, c := m.data.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.data.At(i, j)
			if v == 0 {
				v = math.NaN()
			}
			out.Set(i, j, v)
		}
	}
	return &FeatureMatrix{subjects: m.Subjects(), columns: m.Columns(), data: out}
}

// DropHighMissingness removes columns with at least maxMissing missing
// entries and reports how many were dropped.
func DropHighMissingness(m *FeatureMatrix, maxMissing int) (*FeatureMatrix, int, error) {
	r, c := m.data.Dims()
	var keep []int
	for j := 0; j < c; j++ {
		missing := 0
		for i := 0; i < r; i++ {
			if math.IsNaN(m.data.At(i, j)) {
				missing++
			}
		}
		if missing < maxMissing {
			keep = append(keep, j)
		}
	}

	dropped := c - len(keep)
	if dropped > 0 {
		logger := log.With("dataset")
		logger.Info().
			Int("dropped", dropped).
			Int("kept", len(keep)).
			Msg("dropped high-missingness columns")
	}
	kept, err := m.SelectColumns(keep)
	if err != nil {
		return nil, 0, err
	}
	return kept, dropped, nil
}

// MedianImpute replaces each remaining missing entry with the median of
// its column's observed values.
func MedianImpute(m *FeatureMatrix) (*FeatureMatrix, error) {
	r, c := m.data.Dims()
	out := mat.NewDense(r, c, nil)

	for j := 0; j < c; j++ {
		observed := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := m.data.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return nil, errors.Newf("biotypes: column %s has no observed values to impute from", m.columns[j])
		}
		med := median(observed)
		for i := 0; i < r; i++ {
			v := m.data.At(i, j)
			if math.IsNaN(v) {
				v = med
			}
			out.Set(i, j, v)
		}
	}

	return &FeatureMatrix{subjects: m.Subjects(), columns: m.Columns(), data: out}, nil
}

// FisherZ applies the Fisher Z transform, atanh(r), entry-wise. Inputs are
// correlation-valued connectivity estimates; values at the boundary are
// nudged inside (-1, 1) to keep the transform finite.
func FisherZ(m *FeatureMatrix) *FeatureMatrix {
	const eps = 1e-12
	r, c := m.data.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.data.At(i, j)
			if v >= 1 {
				v = 1 - eps
			} else if v <= -1 {
				v = -1 + eps
			}
			out.Set(i, j, math.Atanh(v))
		}
	}
	return &FeatureMatrix{subjects: m.Subjects(), columns: m.Columns(), data: out}
}

// Standardize z-scores every column: mean 0, standard deviation 1.
// Clinical items arrive on heterogeneous scales; standardizing keeps
// weights and loadings comparable across items. A constant column is
// centered but left unscaled.
func Standardize(m *FeatureMatrix) (*FeatureMatrix, error) {
	r, c := m.data.Dims()
	if err := errors.CheckMatrixFinite("Standardize", m.data, r, c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		mean, variance := 0.0, 0.0
		for i := 0; i < r; i++ {
			mean += m.data.At(i, j)
		}
		mean /= float64(r)
		for i := 0; i < r; i++ {
			diff := m.data.At(i, j) - mean
			variance += diff * diff
		}
		scale := math.Sqrt(variance / float64(r))
		if scale == 0 {
			scale = 1
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, (m.data.At(i, j)-mean)/scale)
		}
	}
	return &FeatureMatrix{subjects: m.Subjects(), columns: m.Columns(), data: out}, nil
}

// LoadCovariatesCSV reads the nuisance table: the idColumn plus "age",
// "fd", and "site" columns. Returns the subject order alongside the
// parsed covariates so callers can align the data blocks to it.
func LoadCovariatesCSV(path, idColumn string) ([]string, *Covariates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading covariates header")
	}

	idx := map[string]int{idColumn: -1, "age": -1, "fd": -1, "site": -1}
	for i, name := range header {
		if _, ok := idx[name]; ok {
			idx[name] = i
		}
	}
	for _, name := range []string{idColumn, "age", "fd", "site"} {
		if idx[name] < 0 {
			return nil, nil, errors.NewInvalidParameterError("covariates", "required column missing from header", name)
		}
	}

	var subjects []string
	cov := &Covariates{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reading covariates row %d", row+1)
		}
		age, err := strconv.ParseFloat(record[idx["age"]], 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "covariates row %d, column age", row+1)
		}
		fd, err := strconv.ParseFloat(record[idx["fd"]], 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "covariates row %d, column fd", row+1)
		}
		subjects = append(subjects, record[idx[idColumn]])
		cov.Age = append(cov.Age, age)
		cov.FrameDisplacement = append(cov.FrameDisplacement, fd)
		cov.Site = append(cov.Site, record[idx["site"]])
		row++
	}
	if row == 0 {
		return nil, nil, errors.New("biotypes: covariates CSV contains no data rows")
	}
	return subjects, cov, nil
}

// SelectSubjects reorders the covariates to the given subject order.
func (c *Covariates) SelectSubjects(order []string, subjects []string) (*Covariates, error) {
	pos := make(map[string]int, len(subjects))
	for i, id := range subjects {
		pos[id] = i
	}
	out := &Covariates{}
	for _, id := range order {
		i, ok := pos[id]
		if !ok {
			return nil, errors.NewInvalidParameterError("subjects", "subject missing from covariates", id)
		}
		out.Age = append(out.Age, c.Age[i])
		out.FrameDisplacement = append(out.FrameDisplacement, c.FrameDisplacement[i])
		out.Site = append(out.Site, c.Site[i])
	}
	return out, nil
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
