package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFixtures builds a linked connectivity/clinical dataset on disk.
// Connectivity cells are tanh-compressed so they look like correlation
// estimates; features c0 and c1 carry the latent signal.
func writeFixtures(t *testing.T, dir string, n, p, q int, seed int64) (conn, clin, cov string) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	var connB, clinB, covB strings.Builder
	connB.WriteString("subject")
	for j := 0; j < p; j++ {
		fmt.Fprintf(&connB, ",c%d", j)
	}
	connB.WriteString("\n")
	clinB.WriteString("subject")
	for l := 0; l < q; l++ {
		fmt.Fprintf(&clinB, ",item%d", l)
	}
	clinB.WriteString("\n")
	covB.WriteString("subject,age,fd,site\n")

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sub-%03d", i)
		z := rng.NormFloat64()

		fmt.Fprintf(&connB, "%s", id)
		for j := 0; j < p; j++ {
			var v float64
			switch j {
			case 0:
				v = z + 0.2*rng.NormFloat64()
			case 1:
				v = -z + 0.2*rng.NormFloat64()
			default:
				v = rng.NormFloat64()
			}
			fmt.Fprintf(&connB, ",%.8f", math.Tanh(v))
		}
		connB.WriteString("\n")

		fmt.Fprintf(&clinB, "%s", id)
		for l := 0; l < q; l++ {
			fmt.Fprintf(&clinB, ",%.8f", z+0.3*rng.NormFloat64())
		}
		clinB.WriteString("\n")

		site := "siteA"
		if i%2 == 1 {
			site = "siteB"
		}
		fmt.Fprintf(&covB, "%s,%.2f,%.4f,%s\n", id, 20+20*rng.Float64(), 0.1+0.05*rng.Float64(), site)
	}

	conn = filepath.Join(dir, "connectivity.csv")
	clin = filepath.Join(dir, "clinical.csv")
	cov = filepath.Join(dir, "covariates.csv")
	for path, b := range map[string]*strings.Builder{conn: &connB, clin: &clinB, cov: &covB} {
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			t.Fatalf("writing fixture %s: %v", path, err)
		}
	}
	return conn, clin, cov
}

func testConfig(t *testing.T, n int) *Config {
	t.Helper()
	dir := t.TempDir()
	conn, clin, cov := writeFixtures(t, dir, n, 12, 3, 42)

	cfg := DefaultConfig()
	cfg.ConnectivityCSV = conn
	cfg.ClinicalCSV = clin
	cfg.CovariatesCSV = cov
	cfg.K = 4
	cfg.NFolds = 4
	cfg.NPerms = 99
	cfg.NSims = 99
	cfg.MinClusters = 2
	cfg.MaxClusters = 4
	cfg.MaxMissing = 5
	cfg.Seed = 42
	cfg.Workers = 2
	return cfg
}

func TestRunProducesCompleteBundle(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline run")
	}
	n := 40
	cfg := testConfig(t, n)

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RunID == "" {
		t.Error("missing run ID")
	}
	if len(res.Subjects) != n {
		t.Errorf("got %d subjects, want %d", len(res.Subjects), n)
	}
	if len(res.XColumns) != cfg.K {
		t.Errorf("got %d selected columns, want %d", len(res.XColumns), cfg.K)
	}
	if len(res.YColumns) != 3 {
		t.Errorf("got %d clinical columns, want 3", len(res.YColumns))
	}
	if r, _ := res.XScores.Dims(); r != n {
		t.Errorf("XScores has %d rows, want %d", r, n)
	}

	if res.Permutation.CorrPValues[0] >= 0.05 {
		t.Errorf("first-component permutation p = %v, want < 0.05 on linked data", res.Permutation.CorrPValues[0])
	}
	if len(res.Folds) != cfg.NFolds {
		t.Errorf("got %d folds, want %d", len(res.Folds), cfg.NFolds)
	}
	if len(res.Jackknife) != n {
		t.Errorf("got %d jackknife results, want %d", len(res.Jackknife), n)
	}

	if res.ClusterK < cfg.MinClusters || res.ClusterK > cfg.MaxClusters {
		t.Errorf("cluster count %d outside [%d,%d]", res.ClusterK, cfg.MinClusters, cfg.MaxClusters)
	}
	if len(res.ClusterLabels) != n {
		t.Errorf("got %d cluster labels, want %d", len(res.ClusterLabels), n)
	}
	for _, p := range []float64{res.Significance.CHPValue, res.Significance.SilPValue} {
		if p <= 0 || p > 1 {
			t.Errorf("cluster p-value %v outside (0,1]", p)
		}
	}
}

func TestRunSelectedColumnsCarrySignal(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline run")
	}
	cfg := testConfig(t, 40)

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	found := 0
	for _, name := range res.XColumns {
		if name == "c0" || name == "c1" {
			found++
		}
	}
	if found != 2 {
		t.Errorf("selector kept %d of the 2 signal columns (%v)", found, res.XColumns)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := Run(context.Background(), cfg); err == nil {
		t.Error("expected error for empty input paths")
	}
}

func TestLoadConfigAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := "connectivity_csv: conn.csv\nclinical_csv: clin.csv\ncovariates_csv: cov.csv\nk: 25\nseed: 7\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.K != 25 || cfg.Seed != 7 {
		t.Errorf("overrides not applied: k=%d seed=%d", cfg.K, cfg.Seed)
	}
	if cfg.NFolds != 10 || cfg.NPerms != 999 || cfg.SubjectColumn != "subject" {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
	}{
		{"missing paths", "k: 10\n"},
		{"bad k", "connectivity_csv: a\nclinical_csv: b\ncovariates_csv: c\nk: 0\n"},
		{"bad folds", "connectivity_csv: a\nclinical_csv: b\ncovariates_csv: c\nn_folds: 1\n"},
		{"bad cluster range", "connectivity_csv: a\nclinical_csv: b\ncovariates_csv: c\nmin_clusters: 5\nmax_clusters: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatalf("writing config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
