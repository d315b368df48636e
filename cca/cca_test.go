package cca

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

func TestFitCanonicalCorrelationsAreOrderedAndBounded(t *testing.T) {
	X, Y := linkedData(42, 50, 20, 3)

	sel, model, err := SelectAndFit(X, Y, 5)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}

	if model.NDim() != 3 {
		t.Errorf("NDim() = %d, want min(selected=%d, 3) = 3", model.NDim(), sel.Len())
	}
	for i, r := range model.Corrs {
		if r < -1e-9 || r > 1+1e-9 {
			t.Errorf("corr[%d] = %v outside [0,1]", i, r)
		}
		if i > 0 && model.Corrs[i] > model.Corrs[i-1]+1e-12 {
			t.Errorf("correlations not descending at %d: %v", i, model.Corrs)
		}
	}
	if model.Corrs[0] <= 0.8 {
		t.Errorf("first canonical correlation = %v, want > 0.8 for strongly linked data", model.Corrs[0])
	}
}

func TestFitIdenticalBlocksGivesUnitCorrelation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n, p := 40, 4
	X := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
	}

	model, err := Fit(X, X, nil)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if math.Abs(model.Corrs[0]-1.0) > 1e-6 {
		t.Errorf("first corr for Y=X is %v, want 1.0 within 1e-6", model.Corrs[0])
	}
}

func TestFitRankDeficiencyDetected(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	t.Run("more columns than subjects", func(t *testing.T) {
		X := mat.NewDense(5, 10, nil)
		Y := mat.NewDense(5, 2, nil)
		for i := 0; i < 5; i++ {
			for j := 0; j < 10; j++ {
				X.Set(i, j, rng.NormFloat64())
			}
			Y.Set(i, 0, rng.NormFloat64())
			Y.Set(i, 1, rng.NormFloat64())
		}
		_, err := Fit(X, Y, nil)
		if !errors.IsRankDeficiency(err) {
			t.Errorf("expected RankDeficiencyError, got %v", err)
		}
	})

	t.Run("duplicated column", func(t *testing.T) {
		n := 30
		X := mat.NewDense(n, 3, nil)
		Y := mat.NewDense(n, 2, nil)
		for i := 0; i < n; i++ {
			v := rng.NormFloat64()
			X.Set(i, 0, v)
			X.Set(i, 1, v) // exact linear dependence
			X.Set(i, 2, rng.NormFloat64())
			Y.Set(i, 0, rng.NormFloat64())
			Y.Set(i, 1, rng.NormFloat64())
		}
		_, err := Fit(X, Y, nil)
		if !errors.IsRankDeficiency(err) {
			t.Errorf("expected RankDeficiencyError, got %v", err)
		}
	})
}

func TestWilksLambdaShape(t *testing.T) {
	X, Y := linkedData(42, 50, 20, 3)

	_, model, err := SelectAndFit(X, Y, 5)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}

	w := model.Wilks
	px, _ := model.XWeights.Dims()
	if w.DF != px*3 {
		t.Errorf("Wilks DF = %d, want %d", w.DF, px*3)
	}
	if w.Lambda <= 0 || w.Lambda >= 1 {
		t.Errorf("Wilks Lambda = %v, want in (0,1) for linked data", w.Lambda)
	}
	if w.ChiSquare <= 0 {
		t.Errorf("Wilks chi-square = %v, want positive", w.ChiSquare)
	}
	if w.PValue < 0 || w.PValue > 1 {
		t.Errorf("Wilks p-value = %v outside [0,1]", w.PValue)
	}
	if w.PValue > 0.01 {
		t.Errorf("Wilks p-value = %v, want strongly significant for linked data", w.PValue)
	}
}

func TestProjectTrainingScoresReproduceCorrelations(t *testing.T) {
	X, Y := linkedData(42, 50, 20, 3)

	sel, model, err := SelectAndFit(X, Y, 5)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}

	xs, ys, err := model.Project(SelectColumns(X, sel.Indices), Y)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	n, _ := xs.Dims()
	for d := 0; d < model.NDim(); d++ {
		a := make([]float64, n)
		b := make([]float64, n)
		mat.Col(a, d, xs)
		mat.Col(b, d, ys)
		if got := pearson(a, b); math.Abs(got-model.Corrs[d]) > 1e-8 {
			t.Errorf("training-score correlation[%d] = %v, want %v", d, got, model.Corrs[d])
		}
	}
}

func TestProjectValidation(t *testing.T) {
	X, Y := linkedData(9, 40, 10, 3)
	sel, model, err := SelectAndFit(X, Y, 4)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}

	t.Run("not fitted", func(t *testing.T) {
		var unfitted CanonicalModel
		if _, _, err := unfitted.Project(X, Y); err == nil {
			t.Error("expected NotFittedError")
		}
	})

	t.Run("unselected X columns rejected", func(t *testing.T) {
		if sel.Len() == 10 {
			t.Skip("all columns selected; no mismatch to construct")
		}
		if _, _, err := model.Project(X, Y); err == nil {
			t.Error("expected InvalidParameterError for full X against selected-column model")
		}
	})

	t.Run("row mismatch rejected", func(t *testing.T) {
		xSel := SelectColumns(X, sel.Indices)
		yShort := mat.NewDense(10, 3, nil)
		if _, _, err := model.Project(xSel, yShort); err == nil {
			t.Error("expected DimensionError for mismatched row counts")
		}
	})
}

func TestProjectAffineCombination(t *testing.T) {
	// Projection is linear after centering: for a+b = 1 the centering
	// offsets cancel and project(aX1+bX2) = a*project(X1) + b*project(X2).
	X, Y := linkedData(13, 30, 8, 2)
	sel, model, err := SelectAndFit(X, Y, 3)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}

	xSel := SelectColumns(X, sel.Indices)
	rng := rand.New(rand.NewSource(21))
	n, p := xSel.Dims()
	x2 := mat.NewDense(n, p, nil)
	y2 := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			x2.Set(i, j, rng.NormFloat64())
		}
		y2.Set(i, 0, rng.NormFloat64())
		y2.Set(i, 1, rng.NormFloat64())
	}

	a, b := 0.3, 0.7
	var xMix, yMix mat.Dense
	xMix.Scale(a, xSel)
	var tmp mat.Dense
	tmp.Scale(b, x2)
	xMix.Add(&xMix, &tmp)
	yMix.Scale(a, Y)
	tmp.Reset()
	tmp.Scale(b, y2)
	yMix.Add(&yMix, &tmp)

	xsMix, ysMix, err := model.Project(&xMix, &yMix)
	if err != nil {
		t.Fatalf("Project(mix) error = %v", err)
	}
	xs1, ys1, _ := model.Project(xSel, Y)
	xs2, ys2, _ := model.Project(x2, y2)

	d := model.NDim()
	for i := 0; i < n; i++ {
		for t2 := 0; t2 < d; t2++ {
			wantX := a*xs1.At(i, t2) + b*xs2.At(i, t2)
			if math.Abs(xsMix.At(i, t2)-wantX) > 1e-8 {
				t.Fatalf("X linearity violated at (%d,%d): got %v want %v", i, t2, xsMix.At(i, t2), wantX)
			}
			wantY := a*ys1.At(i, t2) + b*ys2.At(i, t2)
			if math.Abs(ysMix.At(i, t2)-wantY) > 1e-8 {
				t.Fatalf("Y linearity violated at (%d,%d): got %v want %v", i, t2, ysMix.At(i, t2), wantY)
			}
		}
	}
}

func TestLoadingsShapeAndFirstVariate(t *testing.T) {
	X, Y := linkedData(42, 50, 20, 3)
	_, model, err := SelectAndFit(X, Y, 5)
	if err != nil {
		t.Fatalf("SelectAndFit() error = %v", err)
	}

	loadings, err := model.FirstYVariateLoadings()
	if err != nil {
		t.Fatalf("FirstYVariateLoadings() error = %v", err)
	}
	if len(loadings) != 3 {
		t.Fatalf("len(loadings) = %d, want 3", len(loadings))
	}
	for j, l := range loadings {
		if math.Abs(l) > 1+1e-9 {
			t.Errorf("loading[%d] = %v outside [-1,1]", j, l)
		}
	}
	// All three Y columns share the latent factor, so each should load
	// substantially on the first variate (sign aside).
	for j, l := range loadings {
		if math.Abs(l) < 0.5 {
			t.Errorf("loading[%d] = %v, want |loading| >= 0.5 for shared-signal columns", j, l)
		}
	}
}
