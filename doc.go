// Package biotypes links resting-state functional connectivity to
// clinical symptom profiles and derives patient subtypes ("biotypes")
// from the resulting canonical scores.
//
// The analysis proceeds in stages, each owned by one package:
//
//   - dataset: CSV loading, missing-data handling, Fisher Z transform,
//     and nuisance residualization (age, head motion, scan site).
//   - cca: Spearman-based feature selection, an SVD-based canonical
//     correlation fit with Wilks' Lambda, and projection of new
//     subjects through a fitted model.
//   - resampling: blocked permutation testing, stratified k-fold
//     cross-validation, and jackknife stability estimation, all running
//     on a deterministic seeded worker pool.
//   - cluster: Ward hierarchical clustering of canonical scores,
//     cluster-quality indices, and a multivariate-Gaussian null
//     significance test.
//   - pipeline: YAML-configured orchestration of the full run.
//   - report: Excel workbook, figures, and bootstrap summaries.
//
// Every stochastic component derives its randomness from a single base
// seed plus the iteration index, so results are exactly reproducible
// regardless of worker count.
//
// The cmd/biotypes command runs the whole pipeline from a config file:
//
//	biotypes run --config biotypes.yaml
package biotypes
