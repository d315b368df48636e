// Standard attribute keys used across the pipeline's log events. Keys
// follow a hierarchical naming convention ("data.subjects", "run.id") so
// the console and JSON streams stay filterable.

package log

// Run and operation context.
const (
	// RunIDKey identifies one analysis run (a UUID stamped by the pipeline).
	RunIDKey = "run.id"

	// ComponentKey identifies the package performing the operation.
	// Examples: "cca", "resampling", "cluster", "dataset", "report"
	ComponentKey = "component"

	// OperationKey names the operation. Standard values: "select", "fit",
	// "project", "permute", "crossval", "jackknife", "cluster", "report"
	OperationKey = "operation"

	// SeedKey records the top-level random seed of a resampling component.
	SeedKey = "seed"
)

// Data shape.
const (
	// SubjectsKey is the number of subjects (rows) in play.
	SubjectsKey = "data.subjects"

	// FeaturesKey is the number of feature columns in play.
	FeaturesKey = "data.features"

	// SelectedKey is the number of columns retained by the feature selector.
	SelectedKey = "data.selected"

	// DimensionsKey is the number of canonical dimensions of a fitted model.
	DimensionsKey = "data.dimensions"
)

// Resampling progress.
const (
	// IterationsKey is the total number of resampling iterations requested.
	IterationsKey = "resample.iterations"

	// FailedIterationsKey counts iterations recorded as absent
	// (rank-deficient refits and recovered panics).
	FailedIterationsKey = "resample.failed"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "resample.folds"
)

// Timing.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)
