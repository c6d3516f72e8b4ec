// Package conflict detects and resolves contradictions between temporal
// anchors: pairs whose source spans overlap but whose normalized dates
// disagree. Detection is exhaustive and pairwise; resolution walks an
// ordered strategy chain and never drops a contested anchor silently.
package conflict

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/jinhwalab/chartline/internal/anchor"
)

// Type classifies what kind of contradiction a pair represents.
type Type string

const (
	// TypeDateMismatch: the same text span read as two different dates
	// (ambiguous formatting caught by the dual sweep).
	TypeDateMismatch Type = "date_mismatch"

	// TypeCategoryMismatch: partially overlapping matches from different
	// rule families disagreeing on the date.
	TypeCategoryMismatch Type = "category_mismatch"

	// TypePositionOverlap: partially overlapping matches from the same
	// family disagreeing on the date.
	TypePositionOverlap Type = "position_overlap"
)

// Conflict is one detected contradiction between two anchors.
type Conflict struct {
	ID       string            `json:"id"`
	Type     Type              `json:"type"`
	A        anchor.DateAnchor `json:"anchor_a"`
	B        anchor.DateAnchor `json:"anchor_b"`
	Severity float64           `json:"severity"` // 0.0–1.0, higher = harder to call
}

// Detect finds every conflicting pair among the given anchors, within and
// across sweeps. A pair conflicts iff the spans overlap and both normalized
// dates exist and differ. Output order is deterministic: severity
// descending, then by position.
func Detect(anchors []anchor.DateAnchor) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(anchors); i++ {
		for j := i + 1; j < len(anchors); j++ {
			a, b := &anchors[i], &anchors[j]
			if !a.Valid() || !b.Valid() {
				continue
			}
			if !a.Span.Overlaps(b.Span) || a.DateEquals(b) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				ID:       uuid.NewString(),
				Type:     classify(a, b),
				A:        *a,
				B:        *b,
				Severity: severity(a, b),
			})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Severity != conflicts[j].Severity {
			return conflicts[i].Severity > conflicts[j].Severity
		}
		return conflicts[i].A.Span.Start < conflicts[j].A.Span.Start
	})
	return conflicts
}

// classify types a conflicting pair. Near-coincident spans are a pure date
// disagreement (two readings of one token) regardless of rule family, so
// that check runs before the category comparison.
func classify(a, b *anchor.DateAnchor) Type {
	if a.Span.NearlyCoincides(b.Span) {
		return TypeDateMismatch
	}
	if a.Category != b.Category {
		return TypeCategoryMismatch
	}
	return TypePositionOverlap
}

// severity grows as the contestants get harder to tell apart: a pair with a
// wide confidence or priority gap is easy to resolve and scores low.
func severity(a, b *anchor.DateAnchor) float64 {
	confGap := math.Abs(a.BaseConfidence - b.BaseConfidence)
	prioGap := math.Abs(float64(a.Priority-b.Priority)) / 100.0
	s := 1.0 - (confGap+prioGap)/2.0
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
