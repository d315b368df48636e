// Package report renders a pipeline run into deliverables: an Excel
// workbook of tables, PNG figures, and a bootstrap summary of the
// cross-validated correlations.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mariajose19/niclin2019-biotypes/pipeline"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// WriteWorkbook writes every result table into one workbook at path.
func WriteWorkbook(res *pipeline.Results, path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeModelSheet(f, res); err != nil {
		return err
	}
	if err := writeLoadingsSheet(f, res); err != nil {
		return err
	}
	if err := writeFoldsSheet(f, res); err != nil {
		return err
	}
	if err := writeJackknifeSheet(f, res); err != nil {
		return err
	}
	if err := writeClustersSheet(f, res); err != nil {
		return err
	}

	// Drop the default sheet so the workbook opens on the model summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "removing default sheet")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "saving workbook %s", path)
	}
	return nil
}

func writeModelSheet(f *excelize.File, res *pipeline.Results) error {
	const sheet = "Model"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating model sheet")
	}
	if err := setRow(f, sheet, 1, []interface{}{"dimension", "canonical_correlation", "permutation_p"}); err != nil {
		return err
	}
	row := 2
	for d, r := range res.Model.Corrs {
		p := interface{}(nil)
		if d < len(res.Permutation.CorrPValues) {
			p = res.Permutation.CorrPValues[d]
		}
		if err := setRow(f, sheet, row, []interface{}{d + 1, r, p}); err != nil {
			return err
		}
		row++
	}

	row++
	w := res.Model.Wilks
	if err := setRow(f, sheet, row, []interface{}{"wilks_lambda", w.Lambda}); err != nil {
		return err
	}
	if err := setRow(f, sheet, row+1, []interface{}{"chi_square", w.ChiSquare}); err != nil {
		return err
	}
	if err := setRow(f, sheet, row+2, []interface{}{"df", w.DF}); err != nil {
		return err
	}
	if err := setRow(f, sheet, row+3, []interface{}{"parametric_p", w.PValue}); err != nil {
		return err
	}
	if err := setRow(f, sheet, row+4, []interface{}{"permutation_p", res.Permutation.WilksPValue}); err != nil {
		return err
	}
	return setRow(f, sheet, row+5, []interface{}{"run_id", res.RunID})
}

func writeLoadingsSheet(f *excelize.File, res *pipeline.Results) error {
	const sheet = "Loadings"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating loadings sheet")
	}

	d := res.Model.NDim()
	header := []interface{}{"clinical_item"}
	for t := 0; t < d; t++ {
		header = append(header, fmt.Sprintf("variate_%d", t+1))
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, item := range res.YColumns {
		row := []interface{}{item}
		for t := 0; t < d; t++ {
			row = append(row, res.Model.YLoadings.At(i, t))
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeFoldsSheet(f *excelize.File, res *pipeline.Results) error {
	const sheet = "CrossValidation"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating cross-validation sheet")
	}
	if err := setRow(f, sheet, 1, []interface{}{"fold", "test_size", "first_correlation", "error"}); err != nil {
		return err
	}
	for i, fold := range res.Folds {
		var corr, msg interface{}
		if fold.Err != nil {
			msg = fold.Err.Error()
		} else if len(fold.Corrs) > 0 {
			corr = fold.Corrs[0]
		}
		if err := setRow(f, sheet, i+2, []interface{}{fold.Fold + 1, len(fold.TestIndices), corr, msg}); err != nil {
			return err
		}
	}
	return nil
}

func writeJackknifeSheet(f *excelize.File, res *pipeline.Results) error {
	const sheet = "Jackknife"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating jackknife sheet")
	}

	header := []interface{}{"subject", "x_score_1", "y_score_1"}
	for _, item := range res.YColumns {
		header = append(header, "loading_"+item)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, r := range res.Jackknife {
		row := []interface{}{res.Subjects[r.Subject]}
		if r.Err != nil {
			row = append(row, nil, nil)
		} else {
			row = append(row, r.XScores[0], r.YScores[0])
			for _, l := range r.YLoadings {
				row = append(row, l)
			}
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeClustersSheet(f *excelize.File, res *pipeline.Results) error {
	const sheet = "Clusters"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "creating clusters sheet")
	}
	if err := setRow(f, sheet, 1, []interface{}{"subject", "cluster"}); err != nil {
		return err
	}
	for i, id := range res.Subjects {
		if err := setRow(f, sheet, i+2, []interface{}{id, res.ClusterLabels[i] + 1}); err != nil {
			return err
		}
	}

	base := len(res.Subjects) + 3
	if err := setRow(f, sheet, base, []interface{}{"k", res.ClusterK}); err != nil {
		return err
	}
	if err := setRow(f, sheet, base+1, []interface{}{"silhouette_p", res.Significance.SilPValue}); err != nil {
		return err
	}
	return setRow(f, sheet, base+2, []interface{}{"calinski_harabasz_p", res.Significance.CHPValue})
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return errors.Wrap(err, "cell coordinates")
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return errors.Wrapf(err, "writing %s!%s", sheet, cell)
		}
	}
	return nil
}
