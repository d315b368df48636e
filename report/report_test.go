package report

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/cca"
	"github.com/mariajose19/niclin2019-biotypes/cluster"
	"github.com/mariajose19/niclin2019-biotypes/pipeline"
	"github.com/mariajose19/niclin2019-biotypes/resampling"
)

// buildResults assembles a small but fully populated results bundle from
// linked synthetic data.
func buildResults(t *testing.T) *pipeline.Results {
	t.Helper()

	n, p, q, k := 30, 8, 2, 3
	rng := rand.New(rand.NewSource(21))
	X := mat.NewDense(n, p, nil)
	Y := mat.NewDense(n, q, nil)
	subjects := make([]string, n)
	sites := make([]string, n)
	for i := 0; i < n; i++ {
		subjects[i] = string(rune('a' + i%26))
		if i >= 26 {
			subjects[i] += "2"
		}
		if i%2 == 0 {
			sites[i] = "siteA"
		} else {
			sites[i] = "siteB"
		}
		z := rng.NormFloat64()
		X.Set(i, 0, z+0.2*rng.NormFloat64())
		X.Set(i, 1, -z+0.2*rng.NormFloat64())
		for j := 2; j < p; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		for l := 0; l < q; l++ {
			Y.Set(i, l, z+0.3*rng.NormFloat64())
		}
	}

	ctx := context.Background()
	sel, model, err := cca.SelectAndFit(X, Y, k)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}
	xs, ys, err := model.Project(cca.SelectColumns(X, sel.Indices), Y)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	perm, err := resampling.Permute(ctx, X, Y, resampling.PermutationConfig{K: k, NPerms: 19, Blocks: sites, Seed: 3})
	if err != nil {
		t.Fatalf("Permute() error = %v", err)
	}
	folds, err := resampling.CrossValidate(ctx, X, Y, resampling.CrossValConfig{K: k, NFolds: 3, Strata: sites, Seed: 3})
	if err != nil {
		t.Fatalf("CrossValidate() error = %v", err)
	}
	jack, err := resampling.Jackknife(ctx, X, Y, k, 0)
	if err != nil {
		t.Fatalf("Jackknife() error = %v", err)
	}
	sig, err := cluster.TestSignificance(ctx, xs, cluster.SignificanceConfig{MinK: 2, MaxK: 3, NSims: 19, Seed: 3})
	if err != nil {
		t.Fatalf("TestSignificance() error = %v", err)
	}
	labels, err := cluster.Ward(xs, 2)
	if err != nil {
		t.Fatalf("Ward() error = %v", err)
	}

	xCols := make([]string, len(sel.Indices))
	for i := range sel.Indices {
		xCols[i] = "conn_" + string(rune('a'+i))
	}
	return &pipeline.Results{
		RunID:         "test-run",
		Subjects:      subjects,
		XColumns:      xCols,
		YColumns:      []string{"item1", "item2"},
		Selection:     sel,
		Model:         model,
		XScores:       xs,
		YScores:       ys,
		Permutation:   perm,
		Folds:         folds,
		Jackknife:     jack,
		Significance:  sig,
		ClusterK:      2,
		ClusterLabels: labels,
	}
}

func TestWriteWorkbookCreatesAllSheets(t *testing.T) {
	res := buildResults(t)
	path := filepath.Join(t.TempDir(), "results.xlsx")

	if err := WriteWorkbook(res, path); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	want := map[string]bool{"Model": false, "Loadings": false, "CrossValidation": false, "Jackknife": false, "Clusters": false}
	for _, sheet := range f.GetSheetList() {
		if _, ok := want[sheet]; ok {
			want[sheet] = true
		} else {
			t.Errorf("unexpected sheet %q", sheet)
		}
	}
	for sheet, seen := range want {
		if !seen {
			t.Errorf("sheet %q missing", sheet)
		}
	}

	cell, err := f.GetCellValue("Model", "A1")
	if err != nil || cell != "dimension" {
		t.Errorf("Model!A1 = %q (err %v), want \"dimension\"", cell, err)
	}
	rows, err := f.GetRows("Clusters")
	if err != nil {
		t.Fatalf("reading cluster sheet: %v", err)
	}
	if len(rows) < len(res.Subjects)+1 {
		t.Errorf("cluster sheet has %d rows, want at least %d", len(rows), len(res.Subjects)+1)
	}
}

func TestSaveFiguresWritesPNGs(t *testing.T) {
	res := buildResults(t)
	dir := t.TempDir()

	if err := SaveFigures(res, dir); err != nil {
		t.Fatalf("SaveFigures() error = %v", err)
	}

	for _, name := range []string{"canonical_scores.png", "permutation_null.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("figure %s missing: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("figure %s is empty", name)
		}
	}
}

func TestSummarizeCrossValidation(t *testing.T) {
	folds := []resampling.FoldResult{
		{Fold: 0, Corrs: []float64{0.6}},
		{Fold: 1, Corrs: []float64{0.5}},
		{Fold: 2, Corrs: []float64{0.7}},
		{Fold: 3, Err: os.ErrInvalid},
		{Fold: 4, Corrs: []float64{0.4}},
	}

	s, err := SummarizeCrossValidation(folds, 9)
	if err != nil {
		t.Fatalf("SummarizeCrossValidation() error = %v", err)
	}

	if math.Abs(s.Mean-0.55) > 1e-12 {
		t.Errorf("Mean = %v, want 0.55", s.Mean)
	}
	if math.Abs(s.Median-0.55) > 1e-12 {
		t.Errorf("Median = %v, want 0.55", s.Median)
	}
	if s.Folds != 4 || s.Failed != 1 {
		t.Errorf("Folds = %d, Failed = %d, want 4 and 1", s.Folds, s.Failed)
	}
	if s.Lower > s.Mean || s.Upper < s.Mean {
		t.Errorf("bootstrap interval [%v, %v] excludes the mean %v", s.Lower, s.Upper, s.Mean)
	}
	if s.Lower < 0.4 || s.Upper > 0.7 {
		t.Errorf("bootstrap interval [%v, %v] escapes the data range [0.4, 0.7]", s.Lower, s.Upper)
	}

	again, err := SummarizeCrossValidation(folds, 9)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if s.Lower != again.Lower || s.Upper != again.Upper {
		t.Errorf("bootstrap interval not reproducible for a fixed seed")
	}
}

func TestSummarizeCrossValidationAllFailed(t *testing.T) {
	folds := []resampling.FoldResult{
		{Fold: 0, Err: os.ErrInvalid},
		{Fold: 1, Err: os.ErrInvalid},
	}
	if _, err := SummarizeCrossValidation(folds, 1); err == nil {
		t.Error("expected error when every fold failed")
	}
}

func TestSummarizeNoiseCrossValidationSpansZero(t *testing.T) {
	n, p, q, k := 60, 15, 3, 5
	rng := rand.New(rand.NewSource(77))
	X := mat.NewDense(n, p, nil)
	Y := mat.NewDense(n, q, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		for l := 0; l < q; l++ {
			Y.Set(i, l, rng.NormFloat64())
		}
	}

	folds, err := resampling.CrossValidate(context.Background(), X, Y, resampling.CrossValConfig{
		K:      k,
		NFolds: 10,
		Seed:   77,
	})
	if err != nil {
		t.Fatalf("CrossValidate() error = %v", err)
	}
	s, err := SummarizeCrossValidation(folds, 77)
	if err != nil {
		t.Fatalf("SummarizeCrossValidation() error = %v", err)
	}

	// No true association: the bootstrap interval must reach zero from
	// both sides (a small tolerance absorbs sampling noise).
	if s.Lower > 0.15 || s.Upper < -0.15 {
		t.Errorf("bootstrap interval [%v, %v] sits clear of zero on pure noise", s.Lower, s.Upper)
	}
}
