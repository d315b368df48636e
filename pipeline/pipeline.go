package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/mariajose19/niclin2019-biotypes/cca"
	"github.com/mariajose19/niclin2019-biotypes/cluster"
	"github.com/mariajose19/niclin2019-biotypes/dataset"
	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
	"github.com/mariajose19/niclin2019-biotypes/pkg/log"
	"github.com/mariajose19/niclin2019-biotypes/resampling"
)

// Results bundles everything one run produces: the fitted model and its
// inferential support, plus the subtype assignment.
type Results struct {
	RunID string

	// Subjects is the analysis order shared by every row-indexed field.
	Subjects []string
	// XColumns names the selected connectivity features; YColumns names
	// the clinical items.
	XColumns []string
	YColumns []string

	Selection *cca.SelectionResult
	Model     *cca.CanonicalModel

	// XScores and YScores are the training-data canonical scores.
	XScores *mat.Dense
	YScores *mat.Dense

	Permutation *resampling.PermutationTest
	Folds       []resampling.FoldResult
	Jackknife   []resampling.JackknifeResult

	Significance  *cluster.Significance
	ClusterK      int
	ClusterLabels []int

	DroppedColumns int
}

// Run executes the full analysis described by cfg and returns the
// results bundle. Fatal errors abort the run; per-iteration failures
// inside the resampling components are carried in the bundle instead.
func Run(ctx context.Context, cfg *Config) (*Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := log.Logger().With().Str(log.RunIDKey, runID).Logger()
	start := time.Now()

	conn, err := dataset.LoadCSV(cfg.ConnectivityCSV, cfg.SubjectColumn)
	if err != nil {
		return nil, errors.Wrap(err, "loading connectivity")
	}
	clin, err := dataset.LoadCSV(cfg.ClinicalCSV, cfg.SubjectColumn)
	if err != nil {
		return nil, errors.Wrap(err, "loading clinical")
	}
	covSubjects, covAll, err := dataset.LoadCovariatesCSV(cfg.CovariatesCSV, cfg.SubjectColumn)
	if err != nil {
		return nil, errors.Wrap(err, "loading covariates")
	}

	clin, err = dataset.JoinOnSubject(conn, clin)
	if err != nil {
		return nil, errors.Wrap(err, "aligning clinical to connectivity")
	}
	cov, err := covAll.SelectSubjects(conn.Subjects(), covSubjects)
	if err != nil {
		return nil, errors.Wrap(err, "aligning covariates to connectivity")
	}

	logger.Info().
		Int(log.SubjectsKey, conn.Rows()).
		Int(log.FeaturesKey, conn.Cols()).
		Msg("data loaded")

	// Connectivity cleaning: zeros are the exporter's missing sentinel.
	conn = dataset.RecodeZeroAsMissing(conn)
	conn, dropped, err := dataset.DropHighMissingness(conn, cfg.MaxMissing)
	if err != nil {
		return nil, errors.Wrap(err, "dropping sparse columns")
	}
	conn, err = dataset.MedianImpute(conn)
	if err != nil {
		return nil, errors.Wrap(err, "imputing connectivity")
	}
	conn = dataset.FisherZ(conn)

	clin, err = dataset.MedianImpute(clin)
	if err != nil {
		return nil, errors.Wrap(err, "imputing clinical")
	}
	clin, err = dataset.Standardize(clin)
	if err != nil {
		return nil, errors.Wrap(err, "standardizing clinical")
	}

	connRes, err := dataset.Residualize(conn, cov)
	if err != nil {
		return nil, errors.Wrap(err, "residualizing connectivity")
	}
	clinRes, err := dataset.Residualize(clin, cov)
	if err != nil {
		return nil, errors.Wrap(err, "residualizing clinical")
	}

	X, Y := connRes.Data(), clinRes.Data()
	sel, model, err := cca.SelectAndFit(X, Y, cfg.K)
	if err != nil {
		return nil, errors.Wrap(err, "fitting canonical model")
	}
	xScores, yScores, err := model.Project(cca.SelectColumns(X, sel.Indices), Y)
	if err != nil {
		return nil, errors.Wrap(err, "projecting training data")
	}

	logger.Info().
		Int(log.SelectedKey, sel.Len()).
		Int(log.DimensionsKey, model.NDim()).
		Float64("wilks.p", model.Wilks.PValue).
		Msg("canonical model fitted")

	perm, err := resampling.Permute(ctx, X, Y, resampling.PermutationConfig{
		K:       cfg.K,
		NPerms:  cfg.NPerms,
		Blocks:  cov.Site,
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "permutation test")
	}

	folds, err := resampling.CrossValidate(ctx, X, Y, resampling.CrossValConfig{
		K:       cfg.K,
		NFolds:  cfg.NFolds,
		Strata:  cov.Site,
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation")
	}

	jack, err := resampling.Jackknife(ctx, X, Y, cfg.K, cfg.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "jackknife")
	}

	sig, err := cluster.TestSignificance(ctx, xScores, cluster.SignificanceConfig{
		MinK:    cfg.MinClusters,
		MaxK:    cfg.MaxClusters,
		NSims:   cfg.NSims,
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cluster significance")
	}
	_, bestK := sig.Observed.BestSilhouette()
	labels, err := cluster.Ward(xScores, bestK)
	if err != nil {
		return nil, errors.Wrap(err, "clustering")
	}

	selected := make([]string, sel.Len())
	cols := connRes.Columns()
	for i, j := range sel.Indices {
		selected[i] = cols[j]
	}

	res := &Results{
		RunID:          runID,
		Subjects:       connRes.Subjects(),
		XColumns:       selected,
		YColumns:       clinRes.Columns(),
		Selection:      sel,
		Model:          model,
		XScores:        xScores,
		YScores:        yScores,
		Permutation:    perm,
		Folds:          folds,
		Jackknife:      jack,
		Significance:   sig,
		ClusterK:       bestK,
		ClusterLabels:  labels,
		DroppedColumns: dropped,
	}

	logger.Info().
		Int("cluster.k", bestK).
		Float64("cluster.sil_p", sig.SilPValue).
		Int64(log.DurationMsKey, time.Since(start).Milliseconds()).
		Msg("pipeline complete")

	return res, nil
}
