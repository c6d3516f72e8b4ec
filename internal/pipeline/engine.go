package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jinhwalab/chartline/internal/anchor"
	"github.com/jinhwalab/chartline/internal/conflict"
	"github.com/jinhwalab/chartline/internal/rank"
	"github.com/jinhwalab/chartline/internal/timeline"
)

// DefaultMaxInputBytes bounds a single analysis input.
const DefaultMaxInputBytes = 1 << 20

// Cache lifetimes for memoized extraction.
const (
	cacheTTL   = 10 * time.Minute
	cachePurge = 15 * time.Minute
)

// Config carries every tunable of the analysis pipeline. Zero values fall
// back to defaults; see the config package for file/env/flag resolution.
type Config struct {
	DayMergeThreshold int            `yaml:"day_merge_threshold" json:"day_merge_threshold"`
	MinHierarchyScore float64        `yaml:"min_hierarchy_score" json:"min_hierarchy_score"`
	MaxFutureDays     int            `yaml:"max_future_days" json:"max_future_days"`
	MaxPastYears      int            `yaml:"max_past_years" json:"max_past_years"`
	ConfidenceMargin  float64        `yaml:"confidence_margin" json:"confidence_margin"`
	PriorityMargin    int            `yaml:"priority_margin" json:"priority_margin"`
	MaxInputBytes     int            `yaml:"max_input_bytes" json:"max_input_bytes"`
	DomainPriorities  map[string]int `yaml:"domain_priorities" json:"domain_priorities,omitempty"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		DayMergeThreshold: rank.DefaultDayMergeThreshold,
		MinHierarchyScore: rank.DefaultMinHierarchyScore,
		MaxFutureDays:     30,
		MaxPastYears:      10,
		ConfidenceMargin:  0.1,
		PriorityMargin:    10,
		MaxInputBytes:     DefaultMaxInputBytes,
		DomainPriorities:  anchor.DefaultDomainPriorities(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DayMergeThreshold <= 0 {
		c.DayMergeThreshold = def.DayMergeThreshold
	}
	if c.MinHierarchyScore <= 0 {
		c.MinHierarchyScore = def.MinHierarchyScore
	}
	if c.MaxFutureDays <= 0 {
		c.MaxFutureDays = def.MaxFutureDays
	}
	if c.MaxPastYears <= 0 {
		c.MaxPastYears = def.MaxPastYears
	}
	if c.ConfidenceMargin <= 0 {
		c.ConfidenceMargin = def.ConfidenceMargin
	}
	if c.PriorityMargin <= 0 {
		c.PriorityMargin = def.PriorityMargin
	}
	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = def.MaxInputBytes
	}
	if c.DomainPriorities == nil {
		c.DomainPriorities = def.DomainPriorities
	}
	return c
}

// Result is the complete output of one analysis run.
type Result struct {
	ID                string                `json:"id"`
	Success           bool                  `json:"success"`
	ReferenceDate     time.Time             `json:"reference_date"`
	ProcessingMS      int64                 `json:"processing_ms"`
	Primary           []rank.MergedAnchor   `json:"primary"`
	Secondary         []rank.MergedAnchor   `json:"secondary"`
	Conflicts         []conflict.Conflict   `json:"conflicts,omitempty"`
	Resolutions       []conflict.Resolution `json:"resolutions,omitempty"`
	Timeline          []timeline.Event      `json:"timeline,omitempty"`
	OverallConfidence float64               `json:"overall_confidence"`
	Degraded          []string              `json:"degraded,omitempty"` // stages that fell back to defaults
}

// Engine runs the full analysis pipeline. Safe for concurrent use: all
// per-run state lives on the stack, and the extraction cache is
// goroutine-safe.
type Engine struct {
	cfg     Config
	scanner *anchor.Scanner
	log     *zap.Logger
	scans   *cache.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger; the default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New builds an engine with the given configuration.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		scanner: anchor.NewScanner(),
		log:     zap.NewNop(),
		scans:   cache.New(cacheTTL, cachePurge),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the resolved configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// Analyze runs the pipeline over text with ref as "today". Individual stage
// failures degrade to that stage's safe default and are listed in
// Result.Degraded; only input validation and context expiry fail the run.
func (e *Engine) Analyze(ctx context.Context, text string, ref time.Time) (*Result, error) {
	started := time.Now()

	if err := e.validate(text); err != nil {
		return nil, err
	}
	ref = dayOf(ref)

	res := &Result{
		ID:            anchor.NewID(),
		ReferenceDate: ref,
	}

	// Extraction. Nothing downstream is meaningful without it, so a panic
	// here fails the run rather than degrading.
	anchors, err := e.scan(ctx, text, ref)
	if err != nil {
		return nil, err
	}
	e.log.Debug("scan complete", zap.String("run", res.ID), zap.Int("anchors", len(anchors)))

	if err := ctx.Err(); err != nil {
		return nil, NewError(KindTimeout, "scan", err)
	}

	// Context annotation: degrades to unannotated anchors (neutral priority).
	if err := guard("annotate", func() {
		anchor.AnnotateContexts(text, anchors, e.cfg.DomainPriorities)
	}); err != nil {
		res.Degraded = append(res.Degraded, "annotate")
		e.log.Warn("context annotation degraded", zap.String("run", res.ID), zap.Error(err))
	}

	// Conflict detection and resolution: degrades to keeping all anchors
	// with no conflicts reported.
	resolver := conflict.NewResolver(conflict.Config{
		ConfidenceMargin: e.cfg.ConfidenceMargin,
		PriorityMargin:   e.cfg.PriorityMargin,
		MaxFutureDays:    e.cfg.MaxFutureDays,
		MaxPastYears:     e.cfg.MaxPastYears,
		DomainPriorities: e.cfg.DomainPriorities,
	}, ref)

	survivors := anchors
	if err := guard("conflicts", func() {
		res.Conflicts = conflict.Detect(anchors)
		survivors, res.Resolutions = resolver.ResolveAll(anchors, res.Conflicts)
	}); err != nil {
		survivors, res.Conflicts, res.Resolutions = anchors, nil, nil
		res.Degraded = append(res.Degraded, "conflicts")
		e.log.Warn("conflict stage degraded", zap.String("run", res.ID), zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return nil, NewError(KindTimeout, "conflicts", err)
	}

	// Plausibility filter: anchors far outside the reference window are
	// noise (OCR damage, policy numbers read as dates).
	survivors = e.plausible(survivors, resolver)

	// Ranking: hierarchy, final confidence, per-tier merging. Degrades to
	// a flat secondary tier of unmerged anchors.
	if err := guard("rank", func() {
		classifier := rank.NewClassifier(e.cfg.MinHierarchyScore, e.cfg.DomainPriorities)
		primary, secondary := classifier.Classify(survivors, len(text))

		scorer := rank.NewScorer()
		scorer.ScoreAll(primary, len(text))
		scorer.ScoreAll(secondary, len(text))

		merger := rank.NewMerger(e.cfg.DayMergeThreshold)
		res.Primary = merger.Merge(primary)
		res.Secondary = merger.Merge(secondary)
	}); err != nil {
		res.Primary = nil
		res.Secondary = fallbackTier(survivors)
		res.Degraded = append(res.Degraded, "rank")
		e.log.Warn("ranking degraded", zap.String("run", res.ID), zap.Error(err))
	}

	// Timeline over the merged representatives of both tiers.
	if err := guard("timeline", func() {
		res.Timeline = timeline.Assemble(representatives(res.Primary, res.Secondary))
	}); err != nil {
		res.Timeline = nil
		res.Degraded = append(res.Degraded, "timeline")
		e.log.Warn("timeline degraded", zap.String("run", res.ID), zap.Error(err))
	}

	res.OverallConfidence = overallConfidence(res.Primary, res.Secondary)
	res.Success = true
	res.ProcessingMS = time.Since(started).Milliseconds()

	e.log.Info("analysis complete",
		zap.String("run", res.ID),
		zap.Int("primary", len(res.Primary)),
		zap.Int("secondary", len(res.Secondary)),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int64("ms", res.ProcessingMS),
	)
	return res, nil
}

func (e *Engine) validate(text string) error {
	if len(text) == 0 {
		return Validationf("empty input text")
	}
	if len(text) > e.cfg.MaxInputBytes {
		return Validationf("input of %d bytes exceeds limit of %d", len(text), e.cfg.MaxInputBytes)
	}
	return nil
}

// scan runs the dual sweep, memoized on (text, ref) since extraction is the
// dominant cost and retries re-analyze identical inputs.
func (e *Engine) scan(ctx context.Context, text string, ref time.Time) ([]anchor.DateAnchor, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindTimeout, "scan", err)
	}

	key := scanKey(text, ref)
	if cached, ok := e.scans.Get(key); ok {
		return cloneAnchors(cached.([]anchor.DateAnchor)), nil
	}

	var anchors []anchor.DateAnchor
	if err := guard("scan", func() {
		anchors = e.scanner.Scan(text, ref)
	}); err != nil {
		return nil, err
	}

	e.scans.Set(key, cloneAnchors(anchors), cache.DefaultExpiration)
	return anchors, nil
}

// plausible drops anchors outside the temporal plausibility window. Runs
// after conflict resolution so the temporal-logic strategy sees the
// implausible contestant first.
func (e *Engine) plausible(anchors []anchor.DateAnchor, r *conflict.Resolver) []anchor.DateAnchor {
	kept := make([]anchor.DateAnchor, 0, len(anchors))
	for _, a := range anchors {
		if !a.Valid() || r.Implausible(*a.Date) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// guard converts a stage panic into a typed processing error.
func guard(stage string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindProcessing, stage, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
	return nil
}

func scanKey(text string, ref time.Time) string {
	h := sha256.New()
	h.Write([]byte(ref.Format("2006-01-02")))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// cloneAnchors deep-copies the cacheable parts so callers can annotate their
// copy without poisoning the cache.
func cloneAnchors(anchors []anchor.DateAnchor) []anchor.DateAnchor {
	out := make([]anchor.DateAnchor, len(anchors))
	copy(out, anchors)
	for i := range out {
		if out[i].Date != nil {
			d := *out[i].Date
			out[i].Date = &d
		}
		if out[i].EndDate != nil {
			d := *out[i].EndDate
			out[i].EndDate = &d
		}
		if out[i].Medical != nil {
			m := *out[i].Medical
			out[i].Medical = &m
		}
	}
	return out
}

func fallbackTier(anchors []anchor.DateAnchor) []rank.MergedAnchor {
	tier := make([]rank.MergedAnchor, 0, len(anchors))
	for _, a := range anchors {
		if !a.Valid() {
			continue
		}
		tier = append(tier, rank.MergedAnchor{
			Representative:   a,
			MergedFromIDs:    []string{a.ID},
			MergedCount:      1,
			CombinedEvidence: []string{a.Context},
			Confidence:       a.BaseConfidence,
		})
	}
	return tier
}

func representatives(tiers ...[]rank.MergedAnchor) []anchor.DateAnchor {
	var reps []anchor.DateAnchor
	for _, tier := range tiers {
		for _, m := range tier {
			reps = append(reps, m.Representative)
		}
	}
	return reps
}

// overallConfidence averages the representatives' final confidences,
// primary anchors counting double.
func overallConfidence(primary, secondary []rank.MergedAnchor) float64 {
	sum, weight := 0.0, 0.0
	for _, m := range primary {
		sum += 2 * m.Representative.FinalConfidence
		weight += 2
	}
	for _, m := range secondary {
		sum += m.Representative.FinalConfidence
		weight++
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
