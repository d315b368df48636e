// Package pipeline orchestrates the full linkage analysis: data loading
// and cleaning, nuisance residualization, feature selection, the
// canonical fit, resampling inference, and subtype clustering. Each run
// is stamped with a unique identifier and driven by a YAML config.
package pipeline

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

// Config drives one pipeline run.
type Config struct {
	// ConnectivityCSV holds the subject-by-feature connectivity table.
	ConnectivityCSV string `yaml:"connectivity_csv"`
	// ClinicalCSV holds the subject-by-item clinical table.
	ClinicalCSV string `yaml:"clinical_csv"`
	// CovariatesCSV holds the id, age, fd, and site columns.
	CovariatesCSV string `yaml:"covariates_csv"`
	// SubjectColumn names the identifier column shared by all tables.
	SubjectColumn string `yaml:"subject_column"`

	// K is the number of connectivity features kept by the selector.
	K int `yaml:"k"`
	// NFolds is the cross-validation fold count.
	NFolds int `yaml:"n_folds"`
	// NPerms is the permutation count for the null distribution.
	NPerms int `yaml:"n_perms"`
	// NSims is the Gaussian-null simulation count for cluster significance.
	NSims int `yaml:"n_sims"`
	// MinClusters and MaxClusters bound the cluster-count search.
	MinClusters int `yaml:"min_clusters"`
	MaxClusters int `yaml:"max_clusters"`
	// MaxMissing drops connectivity columns with at least this many
	// missing entries after the zero recode.
	MaxMissing int `yaml:"max_missing"`

	Seed    int64 `yaml:"seed"`
	Workers int   `yaml:"workers"`

	// OutputDir receives the workbook and figures; empty disables output.
	OutputDir string `yaml:"output_dir"`
}

// DefaultConfig returns the analysis defaults; input paths must still be
// filled in.
func DefaultConfig() *Config {
	return &Config{
		SubjectColumn: "subject",
		K:             150,
		NFolds:        10,
		NPerms:        999,
		NSims:         999,
		MinClusters:   2,
		MaxClusters:   6,
		MaxMissing:    20,
		Seed:          1,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config before any data is touched.
func (c *Config) Validate() error {
	if c.ConnectivityCSV == "" {
		return errors.NewInvalidParameterError("connectivity_csv", "must be set", "")
	}
	if c.ClinicalCSV == "" {
		return errors.NewInvalidParameterError("clinical_csv", "must be set", "")
	}
	if c.CovariatesCSV == "" {
		return errors.NewInvalidParameterError("covariates_csv", "must be set", "")
	}
	if c.SubjectColumn == "" {
		return errors.NewInvalidParameterError("subject_column", "must be set", "")
	}
	if c.K < 1 {
		return errors.NewInvalidParameterError("k", "must be at least 1", c.K)
	}
	if c.NFolds < 2 {
		return errors.NewInvalidParameterError("n_folds", "must be at least 2", c.NFolds)
	}
	if c.NPerms < 0 {
		return errors.NewInvalidParameterError("n_perms", "must be non-negative", c.NPerms)
	}
	if c.NSims < 1 {
		return errors.NewInvalidParameterError("n_sims", "must be at least 1", c.NSims)
	}
	if c.MinClusters < 2 || c.MaxClusters < c.MinClusters {
		return errors.NewInvalidParameterError("min_clusters/max_clusters", "need 2 <= min <= max", c.MinClusters)
	}
	if c.MaxMissing < 1 {
		return errors.NewInvalidParameterError("max_missing", "must be at least 1", c.MaxMissing)
	}
	if c.Workers < 0 {
		return errors.NewInvalidParameterError("workers", "must be non-negative", c.Workers)
	}
	return nil
}
