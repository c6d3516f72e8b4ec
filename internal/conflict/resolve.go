package conflict

import (
	"fmt"
	"math"
	"time"

	"github.com/jinhwalab/chartline/internal/anchor"
)

// State tracks a conflict through its lifecycle. Every conflict starts
// Detected, passes through Resolving while the strategy chain runs, and
// terminates as exactly one of Resolved or Unresolved.
type State string

const (
	StateDetected   State = "detected"
	StateResolving  State = "resolving"
	StateResolved   State = "resolved"
	StateUnresolved State = "unresolved"
)

// Strategy names the rule that settled a conflict.
type Strategy string

const (
	// StrategyConfidence: one anchor's confidence exceeds the other's by
	// more than the configured margin.
	StrategyConfidence Strategy = "confidence"

	// StrategyDomainPriority: the medical-context priority table separates
	// the pair by more than the configured margin.
	StrategyDomainPriority Strategy = "domain_priority"

	// StrategyTemporalLogic: exactly one anchor's date is implausible
	// relative to the reference date.
	StrategyTemporalLogic Strategy = "temporal_logic"

	// StrategySweepOrigin: last resort, the forward-sweep anchor wins.
	StrategySweepOrigin Strategy = "sweep_origin"

	// StrategyPriorResolution: one contestant was already eliminated by an
	// earlier resolution in the same batch, so the survivor carries the
	// pair without re-running the chain.
	StrategyPriorResolution Strategy = "prior_resolution"
)

// Resolution is the terminal outcome for one conflict.
type Resolution struct {
	ConflictID string   `json:"conflict_id"`
	State      State    `json:"state"` // resolved or unresolved
	Strategy   Strategy `json:"strategy,omitempty"`
	WinnerID   string   `json:"winner_id,omitempty"`
	LoserID    string   `json:"loser_id,omitempty"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
}

// Config holds the resolver's tunables.
type Config struct {
	ConfidenceMargin float64        // strategy 1 threshold (default 0.1)
	PriorityMargin   int            // strategy 2 threshold (default 10)
	MaxFutureDays    int            // strategy 3 future plausibility bound (default 30)
	MaxPastYears     int            // strategy 3 past plausibility bound (default 10)
	DomainPriorities map[string]int // nil = anchor.DefaultDomainPriorities
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceMargin: 0.1,
		PriorityMargin:   10,
		MaxFutureDays:    30,
		MaxPastYears:     10,
		DomainPriorities: anchor.DefaultDomainPriorities(),
	}
}

// Resolver applies the ordered strategy chain to conflicts.
type Resolver struct {
	cfg Config
	ref time.Time
}

// NewResolver creates a resolver for one document, anchored at ref.
// Zero-valued config fields fall back to defaults.
func NewResolver(cfg Config, ref time.Time) *Resolver {
	def := DefaultConfig()
	if cfg.ConfidenceMargin <= 0 {
		cfg.ConfidenceMargin = def.ConfidenceMargin
	}
	if cfg.PriorityMargin <= 0 {
		cfg.PriorityMargin = def.PriorityMargin
	}
	if cfg.MaxFutureDays <= 0 {
		cfg.MaxFutureDays = def.MaxFutureDays
	}
	if cfg.MaxPastYears <= 0 {
		cfg.MaxPastYears = def.MaxPastYears
	}
	if cfg.DomainPriorities == nil {
		cfg.DomainPriorities = def.DomainPriorities
	}
	return &Resolver{cfg: cfg, ref: ref}
}

// Resolve runs the strategy chain on a single conflict, stopping at the
// first strategy that produces a winner. When none applies the conflict
// ends Unresolved and both anchors are retained by the caller.
func (r *Resolver) Resolve(c Conflict) Resolution {
	a, b := &c.A, &c.B

	if winner, reason, ok := r.byConfidence(a, b); ok {
		return resolved(c, StrategyConfidence, winner, other(winner, a, b), reason)
	}
	if winner, reason, ok := r.byDomainPriority(a, b); ok {
		return resolved(c, StrategyDomainPriority, winner, other(winner, a, b), reason)
	}
	if winner, reason, ok := r.byTemporalLogic(a, b); ok {
		return resolved(c, StrategyTemporalLogic, winner, other(winner, a, b), reason)
	}
	if winner, reason, ok := r.bySweepOrigin(a, b); ok {
		return resolved(c, StrategySweepOrigin, winner, other(winner, a, b), reason)
	}

	return Resolution{
		ConflictID: c.ID,
		State:      StateUnresolved,
		Reason:     "no strategy applicable; both anchors retained for review",
		Confidence: 0,
	}
}

// ResolveAll resolves every conflict in order and returns the surviving
// anchors plus all resolutions. Conflicts should arrive severity-descending
// (Detect's order); a conflict whose participant was already eliminated is
// settled for the survivor without re-running the chain. Unresolved
// conflicts leave both anchors in place, flagged.
func (r *Resolver) ResolveAll(anchors []anchor.DateAnchor, conflicts []Conflict) ([]anchor.DateAnchor, []Resolution) {
	dropped := make(map[string]bool)
	flagged := make(map[string]bool)
	resolutions := make([]Resolution, 0, len(conflicts))

	for _, c := range conflicts {
		switch {
		case dropped[c.A.ID] && dropped[c.B.ID]:
			continue
		case dropped[c.A.ID]:
			resolutions = append(resolutions, carryover(c, &c.B, &c.A))
			continue
		case dropped[c.B.ID]:
			resolutions = append(resolutions, carryover(c, &c.A, &c.B))
			continue
		}

		res := r.Resolve(c)
		resolutions = append(resolutions, res)
		if res.State == StateResolved {
			dropped[res.LoserID] = true
		} else {
			flagged[c.A.ID] = true
			flagged[c.B.ID] = true
		}
	}

	kept := make([]anchor.DateAnchor, 0, len(anchors))
	for _, a := range anchors {
		if dropped[a.ID] {
			continue
		}
		if flagged[a.ID] {
			a.ConflictFlagged = true
		}
		kept = append(kept, a)
	}
	return kept, resolutions
}

func (r *Resolver) byConfidence(a, b *anchor.DateAnchor) (*anchor.DateAnchor, string, bool) {
	gap := a.BaseConfidence - b.BaseConfidence
	if math.Abs(gap) <= r.cfg.ConfidenceMargin {
		return nil, "", false
	}
	w, l := a, b
	if gap < 0 {
		w, l = b, a
	}
	return w, fmt.Sprintf("confidence %.2f over %.2f", w.BaseConfidence, l.BaseConfidence), true
}

func (r *Resolver) byDomainPriority(a, b *anchor.DateAnchor) (*anchor.DateAnchor, string, bool) {
	pa := a.MedicalPriority(r.cfg.DomainPriorities)
	pb := b.MedicalPriority(r.cfg.DomainPriorities)
	if abs(pa-pb) <= r.cfg.PriorityMargin {
		return nil, "", false
	}
	if pa > pb {
		return a, fmt.Sprintf("domain priority %d over %d", pa, pb), true
	}
	return b, fmt.Sprintf("domain priority %d over %d", pb, pa), true
}

func (r *Resolver) byTemporalLogic(a, b *anchor.DateAnchor) (*anchor.DateAnchor, string, bool) {
	ia := r.implausible(*a.Date)
	ib := r.implausible(*b.Date)
	if ia == ib {
		return nil, "", false
	}
	if ia {
		return b, "opposing date implausible relative to reference", true
	}
	return a, "opposing date implausible relative to reference", true
}

func (r *Resolver) bySweepOrigin(a, b *anchor.DateAnchor) (*anchor.DateAnchor, string, bool) {
	if a.SweepOrigin == b.SweepOrigin {
		return nil, "", false
	}
	if a.SweepOrigin == anchor.SweepForward {
		return a, "forward sweep preferred", true
	}
	return b, "forward sweep preferred", true
}

// implausible reports whether a date falls outside the plausible window
// around the reference date.
func (r *Resolver) implausible(t time.Time) bool {
	if t.After(r.ref.AddDate(0, 0, r.cfg.MaxFutureDays)) {
		return true
	}
	return t.Before(r.ref.AddDate(-r.cfg.MaxPastYears, 0, 0))
}

// Implausible exposes the plausibility check for the pipeline's post-
// resolution validity filter.
func (r *Resolver) Implausible(t time.Time) bool {
	return r.implausible(t)
}

func resolved(c Conflict, s Strategy, winner, loser *anchor.DateAnchor, reason string) Resolution {
	return Resolution{
		ConflictID: c.ID,
		State:      StateResolved,
		Strategy:   s,
		WinnerID:   winner.ID,
		LoserID:    loser.ID,
		Reason:     reason,
		Confidence: winner.BaseConfidence,
	}
}

func carryover(c Conflict, survivor, eliminated *anchor.DateAnchor) Resolution {
	return Resolution{
		ConflictID: c.ID,
		State:      StateResolved,
		Strategy:   StrategyPriorResolution,
		WinnerID:   survivor.ID,
		LoserID:    eliminated.ID,
		Reason:     "opponent eliminated by an earlier resolution",
		Confidence: survivor.BaseConfidence,
	}
}

func other(w, a, b *anchor.DateAnchor) *anchor.DateAnchor {
	if w == a {
		return b
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
