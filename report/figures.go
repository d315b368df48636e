package report

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/mariajose19/niclin2019-biotypes/pipeline"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// SaveFigures renders the score scatter and the permutation-null
// histogram as PNGs under dir.
func SaveFigures(res *pipeline.Results, dir string) error {
	if err := saveScoreScatter(res, filepath.Join(dir, "canonical_scores.png")); err != nil {
		return err
	}
	return saveNullHistogram(res, filepath.Join(dir, "permutation_null.png"))
}

// saveScoreScatter plots the first canonical X score against the first
// canonical Y score, one series per cluster.
func saveScoreScatter(res *pipeline.Results, path string) error {
	p := plot.New()
	p.Title.Text = "First canonical variate"
	p.X.Label.Text = "connectivity score"
	p.Y.Label.Text = "clinical score"

	n, _ := res.XScores.Dims()
	for c := 0; c < res.ClusterK; c++ {
		var pts plotter.XYs
		for i := 0; i < n; i++ {
			if res.ClusterLabels[i] != c {
				continue
			}
			pts = append(pts, plotter.XY{X: res.XScores.At(i, 0), Y: res.YScores.At(i, 0)})
		}
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrap(err, "building scatter")
		}
		s.GlyphStyle.Color = plotutil.Color(c)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster %d", c+1), s)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}

// saveNullHistogram plots the null distribution of the first canonical
// correlation with the observed value marked.
func saveNullHistogram(res *pipeline.Results, path string) error {
	null := res.Permutation.Null.CorrsByDim
	if len(null) == 0 || len(null[0]) == 0 {
		return errors.New("biotypes: no permutation null to plot")
	}

	p := plot.New()
	p.Title.Text = "Permutation null, first canonical correlation"
	p.X.Label.Text = "canonical correlation"
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(null[0]), 30)
	if err != nil {
		return errors.Wrap(err, "building histogram")
	}
	p.Add(h)

	// Observed value as a vertical marker.
	observed := res.Model.Corrs[0]
	_, _, _, yMax := h.DataRange()
	line, err := plotter.NewLine(plotter.XYs{
		{X: observed, Y: 0},
		{X: observed, Y: yMax},
	})
	if err != nil {
		return errors.Wrap(err, "building observed marker")
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = plotutil.Color(1)
	p.Add(line)
	p.Legend.Add("observed", line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}
