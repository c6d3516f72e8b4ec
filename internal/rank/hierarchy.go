// Package rank orders surviving anchors into an importance hierarchy,
// merges near-duplicate references to the same clinical event, and
// computes the final weighted confidence for each survivor.
package rank

import (
	"sort"

	"github.com/jinhwalab/chartline/internal/anchor"
)

// DefaultMinHierarchyScore is the Primary/Secondary cut line.
const DefaultMinHierarchyScore = 80.0

// Precision bonuses reward exact readings over coarse ones.
const (
	dayPrecisionBonus   = 10.0
	monthPrecisionBonus = 5.0
)

// Classifier splits anchors into Primary and Secondary tiers by a composite
// hierarchy score.
type Classifier struct {
	minScore   float64
	priorities map[string]int
}

// NewClassifier builds a classifier. A non-positive minScore or nil priority
// table falls back to the defaults.
func NewClassifier(minScore float64, priorities map[string]int) *Classifier {
	if minScore <= 0 {
		minScore = DefaultMinHierarchyScore
	}
	if priorities == nil {
		priorities = anchor.DefaultDomainPriorities()
	}
	return &Classifier{minScore: minScore, priorities: priorities}
}

// Classify scores every anchor and partitions them into Primary (score at or
// above the threshold) and Secondary tiers. Both tiers come back ordered by
// score descending, position ascending on ties. Input anchors are annotated
// in place with their HierarchyScore.
func (c *Classifier) Classify(anchors []anchor.DateAnchor, textLength int) (primary, secondary []anchor.DateAnchor) {
	for i := range anchors {
		anchors[i].HierarchyScore = c.Score(&anchors[i], textLength)
	}

	ordered := make([]anchor.DateAnchor, len(anchors))
	copy(ordered, anchors)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].HierarchyScore != ordered[j].HierarchyScore {
			return ordered[i].HierarchyScore > ordered[j].HierarchyScore
		}
		return ordered[i].Span.Start < ordered[j].Span.Start
	})

	for _, a := range ordered {
		if a.HierarchyScore >= c.minScore {
			primary = append(primary, a)
		} else {
			secondary = append(secondary, a)
		}
	}
	return primary, secondary
}

// Score computes the composite hierarchy score on a 0–100 scale:
// the rule's extraction priority, the medical-context priority relative to
// neutral, the base confidence, an early-position weight, and a precision
// bonus for exact dates.
func (c *Classifier) Score(a *anchor.DateAnchor, textLength int) float64 {
	score := float64(a.Priority)
	score += 0.5 * float64(a.MedicalPriority(c.priorities)-50)
	score += 20 * a.BaseConfidence
	score += 10 * positionWeight(a.Span.Start, textLength)

	switch a.Precision {
	case anchor.PrecisionDay:
		score += dayPrecisionBonus
	case anchor.PrecisionMonth:
		score += monthPrecisionBonus
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// positionWeight is 1.0 at the start of the document and decays linearly to
// 0.0 at the end. Narrative records lead with the operative dates.
func positionWeight(pos, textLength int) float64 {
	if textLength <= 0 {
		return 1
	}
	w := 1 - float64(pos)/float64(textLength)
	if w < 0 {
		return 0
	}
	return w
}
