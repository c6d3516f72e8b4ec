package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResolveMissingFileUsesDefaults(t *testing.T) {
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath.Source != SourceDefault {
		t.Errorf("db path source = %s, want default", cfg.DBPath.Source)
	}
	if cfg.DayMergeThreshold.Value != "" {
		t.Errorf("unset threshold = %q, want empty (engine default)", cfg.DayMergeThreshold.Value)
	}
}

func TestResolveFileValues(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/test-chartline.db
analysis:
  reference_day: "2025-05-10"
  day_merge_threshold: "5"
  min_hierarchy_score: "75"
domain_priorities:
  current_visit: 95
`)
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath.Value != "/tmp/test-chartline.db" || cfg.DBPath.Source != SourceConfig {
		t.Errorf("db path = %+v", cfg.DBPath)
	}
	if cfg.DayMergeThreshold.Value != "5" {
		t.Errorf("merge threshold = %q, want 5", cfg.DayMergeThreshold.Value)
	}
	if cfg.DomainPriorities["current_visit"] != 95 {
		t.Errorf("domain priorities = %v", cfg.DomainPriorities)
	}

	pc, err := cfg.PipelineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if pc.DayMergeThreshold != 5 || pc.MinHierarchyScore != 75 {
		t.Errorf("pipeline config = %+v", pc)
	}

	ref, err := cfg.ReferenceDate(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if ref.Format("2006-01-02") != "2025-05-10" {
		t.Errorf("reference date = %s", ref.Format("2006-01-02"))
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db_path: /tmp/from-file.db\n")
	t.Setenv("CHARTLINE_DB", "/tmp/from-env.db")

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath.Value != "/tmp/from-env.db" || cfg.DBPath.Source != SourceEnv {
		t.Errorf("db path = %+v, want env override", cfg.DBPath)
	}
	if cfg.DBPath.From != "CHARTLINE_DB" {
		t.Errorf("provenance = %s, want CHARTLINE_DB", cfg.DBPath.From)
	}
}

func TestResolveCLIOverridesEnv(t *testing.T) {
	t.Setenv("CHARTLINE_MERGE_DAYS", "5")

	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath:   filepath.Join(t.TempDir(), "nope.yaml"),
		CLIMergeDays: "3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DayMergeThreshold.Value != "3" || cfg.DayMergeThreshold.Source != SourceCLI {
		t.Errorf("merge threshold = %+v, want CLI override", cfg.DayMergeThreshold)
	}
}

func TestResolveInvalidNumericRejected(t *testing.T) {
	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath:   filepath.Join(t.TempDir(), "nope.yaml"),
		CLIMergeDays: "often",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.PipelineConfig(); err == nil {
		t.Fatal("non-numeric merge threshold should be rejected")
	}
}

func TestResolveInvalidReferenceDay(t *testing.T) {
	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath:      filepath.Join(t.TempDir(), "nope.yaml"),
		CLIReferenceDay: "May 10th",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.ReferenceDate(time.Now()); err == nil {
		t.Fatal("unparseable reference day should be rejected")
	}
}

func TestResolveBadYAML(t *testing.T) {
	path := writeConfig(t, "db_path: [unclosed\n")
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: path}); err == nil {
		t.Fatal("malformed YAML should be rejected")
	}
}

func TestExpandUserPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandUserPath("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Errorf("expanded = %s", got)
	}
	if got := expandUserPath("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("absolute path changed: %s", got)
	}
}
