// Package config resolves chartline settings from a YAML file, environment
// variables, and CLI flags, recording where each effective value came from.
// Precedence is file < env < CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jinhwalab/chartline/internal/pipeline"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is one effective setting plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath      string
	CLIDBPath       string
	CLIReferenceDay string // YYYY-MM-DD
	CLIMergeDays    string
	CLIMinScore     string
}

// ResolvedConfig is the full provenance-tracked configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath            ResolvedValue `json:"db_path"`
	ReferenceDay      ResolvedValue `json:"reference_day"`
	DayMergeThreshold ResolvedValue `json:"day_merge_threshold"`
	MinHierarchyScore ResolvedValue `json:"min_hierarchy_score"`
	MaxFutureDays     ResolvedValue `json:"max_future_days"`
	MaxPastYears      ResolvedValue `json:"max_past_years"`
	MaxInputBytes     ResolvedValue `json:"max_input_bytes"`

	DomainPriorities map[string]int `json:"domain_priorities,omitempty"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	Analysis struct {
		ReferenceDay      string `yaml:"reference_day"`
		DayMergeThreshold string `yaml:"day_merge_threshold"`
		MinHierarchyScore string `yaml:"min_hierarchy_score"`
		MaxFutureDays     string `yaml:"max_future_days"`
		MaxPastYears      string `yaml:"max_past_years"`
		MaxInputBytes     string `yaml:"max_input_bytes"`
	} `yaml:"analysis"`
	DomainPriorities map[string]int `yaml:"domain_priorities"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chartline", "config.yaml")
}

// DefaultDBPath is where run history lives when nothing overrides it.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chartline", "chartline.db")
}

// ResolveConfig loads the file (if present), layers environment variables
// and CLI overrides on top, and returns the provenance-tracked result.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.ReferenceDay, cfg.Analysis.ReferenceDay, SourceConfig, path)
		apply(&out.DayMergeThreshold, cfg.Analysis.DayMergeThreshold, SourceConfig, path)
		apply(&out.MinHierarchyScore, cfg.Analysis.MinHierarchyScore, SourceConfig, path)
		apply(&out.MaxFutureDays, cfg.Analysis.MaxFutureDays, SourceConfig, path)
		apply(&out.MaxPastYears, cfg.Analysis.MaxPastYears, SourceConfig, path)
		apply(&out.MaxInputBytes, cfg.Analysis.MaxInputBytes, SourceConfig, path)
		if len(cfg.DomainPriorities) > 0 {
			out.DomainPriorities = cfg.DomainPriorities
		}
	}

	applyEnv(&out.DBPath, "CHARTLINE_DB")
	applyEnv(&out.ReferenceDay, "CHARTLINE_REFERENCE_DAY")
	applyEnv(&out.DayMergeThreshold, "CHARTLINE_MERGE_DAYS")
	applyEnv(&out.MinHierarchyScore, "CHARTLINE_MIN_SCORE")
	applyEnv(&out.MaxFutureDays, "CHARTLINE_MAX_FUTURE_DAYS")
	applyEnv(&out.MaxPastYears, "CHARTLINE_MAX_PAST_YEARS")
	applyEnv(&out.MaxInputBytes, "CHARTLINE_MAX_INPUT_BYTES")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.ReferenceDay, opts.CLIReferenceDay, SourceCLI, "--ref")
	apply(&out.DayMergeThreshold, opts.CLIMergeDays, SourceCLI, "--merge-days")
	apply(&out.MinHierarchyScore, opts.CLIMinScore, SourceCLI, "--min-score")

	if out.DBPath.Value == "" {
		out.DBPath = ResolvedValue{Value: DefaultDBPath(), Source: SourceDefault, From: "built-in default"}
	}
	out.DBPath.Value = expandUserPath(out.DBPath.Value)

	return out, nil
}

// PipelineConfig converts the resolved values into the engine configuration,
// leaving zero values for anything unset so the engine applies its defaults.
// Unparseable numeric overrides are an error rather than a silent default.
func (r ResolvedConfig) PipelineConfig() (pipeline.Config, error) {
	cfg := pipeline.Config{DomainPriorities: r.DomainPriorities}

	var err error
	if cfg.DayMergeThreshold, err = intValue(r.DayMergeThreshold, "day_merge_threshold"); err != nil {
		return cfg, err
	}
	if cfg.MaxFutureDays, err = intValue(r.MaxFutureDays, "max_future_days"); err != nil {
		return cfg, err
	}
	if cfg.MaxPastYears, err = intValue(r.MaxPastYears, "max_past_years"); err != nil {
		return cfg, err
	}
	if cfg.MaxInputBytes, err = intValue(r.MaxInputBytes, "max_input_bytes"); err != nil {
		return cfg, err
	}
	if cfg.MinHierarchyScore, err = floatValue(r.MinHierarchyScore, "min_hierarchy_score"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReferenceDate parses the resolved reference day, defaulting to now.
func (r ResolvedConfig) ReferenceDate(now time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.ReferenceDay.Value)
	if v == "" {
		return now, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference day %q (from %s): %w", v, r.ReferenceDay.From, err)
	}
	return t, nil
}

func intValue(rv ResolvedValue, name string) (int, error) {
	v := strings.TrimSpace(rv.Value)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q (from %s): %w", name, v, rv.From, err)
	}
	return n, nil
}

func floatValue(rv ResolvedValue, name string) (float64, error) {
	v := strings.TrimSpace(rv.Value)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q (from %s): %w", name, v, rv.From, err)
	}
	return f, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
