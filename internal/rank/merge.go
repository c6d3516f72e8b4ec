package rank

import (
	"sort"
	"time"

	"github.com/jinhwalab/chartline/internal/anchor"
)

// DefaultDayMergeThreshold is the maximum calendar-day gap between two
// anchors that still counts as one clinical event.
const DefaultDayMergeThreshold = 7

// MergedAnchor is a cluster of anchors judged to reference the same event.
// The representative is the member with the highest hierarchy score; the
// rest survive as provenance.
type MergedAnchor struct {
	Representative   anchor.DateAnchor `json:"representative"`
	MergedFromIDs    []string          `json:"merged_from_ids"`
	MergedCount      int               `json:"merged_count"`
	CombinedEvidence []string          `json:"combined_evidence"`
	Confidence       float64           `json:"confidence"` // max member base confidence
}

// Merger groups anchors within one tier by date proximity.
type Merger struct {
	dayThreshold int
}

// NewMerger builds a merger; a non-positive threshold falls back to the default.
func NewMerger(dayThreshold int) *Merger {
	if dayThreshold <= 0 {
		dayThreshold = DefaultDayMergeThreshold
	}
	return &Merger{dayThreshold: dayThreshold}
}

// Merge clusters the anchors of a single tier. Anchors are sorted by date and
// chained: each anchor joins the current group when its date is within the
// threshold of the previous member, so a run of close dates collapses into
// one event even if its extremes are farther apart. Invalid anchors are
// skipped. Output is ordered by the representative's date ascending.
func (m *Merger) Merge(anchors []anchor.DateAnchor) []MergedAnchor {
	dated := make([]anchor.DateAnchor, 0, len(anchors))
	for _, a := range anchors {
		if a.Valid() {
			dated = append(dated, a)
		}
	}
	if len(dated) == 0 {
		return nil
	}

	sort.SliceStable(dated, func(i, j int) bool {
		if !dated[i].Date.Equal(*dated[j].Date) {
			return dated[i].Date.Before(*dated[j].Date)
		}
		return dated[i].Span.Start < dated[j].Span.Start
	})

	var merged []MergedAnchor
	group := []anchor.DateAnchor{dated[0]}
	for _, a := range dated[1:] {
		prev := group[len(group)-1]
		if daysBetween(*prev.Date, *a.Date) <= m.dayThreshold {
			group = append(group, a)
			continue
		}
		merged = append(merged, buildMerged(group))
		group = []anchor.DateAnchor{a}
	}
	merged = append(merged, buildMerged(group))
	return merged
}

// buildMerged elects the highest-hierarchy-score member as representative
// and collects the rest as evidence. Member order inside the group (date
// ascending) is preserved in MergedFromIDs and CombinedEvidence.
func buildMerged(group []anchor.DateAnchor) MergedAnchor {
	rep := group[0]
	maxConf := group[0].BaseConfidence
	for _, a := range group[1:] {
		if a.HierarchyScore > rep.HierarchyScore {
			rep = a
		}
		if a.BaseConfidence > maxConf {
			maxConf = a.BaseConfidence
		}
	}

	ids := make([]string, len(group))
	evidence := make([]string, len(group))
	for i, a := range group {
		ids[i] = a.ID
		evidence[i] = a.Context
	}

	return MergedAnchor{
		Representative:   rep,
		MergedFromIDs:    ids,
		MergedCount:      len(group),
		CombinedEvidence: evidence,
		Confidence:       maxConf,
	}
}

func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
