package rank

import (
	"testing"

	"github.com/jinhwalab/chartline/internal/anchor"
)

func TestMergeWithinThreshold(t *testing.T) {
	a := mkAnchor("a", 0, 2025, 3, 1, 0.92, 30, anchor.PrecisionDay)
	a.HierarchyScore = 90
	b := mkAnchor("b", 30, 2025, 3, 4, 0.85, 25, anchor.PrecisionDay)
	b.HierarchyScore = 82

	merged := NewMerger(7).Merge([]anchor.DateAnchor{a, b})
	if len(merged) != 1 {
		t.Fatalf("got %d groups, want 1", len(merged))
	}
	m := merged[0]
	if m.Representative.ID != "a" {
		t.Errorf("representative = %s, want a (higher hierarchy score)", m.Representative.ID)
	}
	if m.MergedCount != 2 {
		t.Errorf("count = %d, want 2", m.MergedCount)
	}
	if len(m.MergedFromIDs) != 2 || m.MergedFromIDs[0] != "a" || m.MergedFromIDs[1] != "b" {
		t.Errorf("ids = %v, want [a b] in date order", m.MergedFromIDs)
	}
	if m.Confidence != 0.92 {
		t.Errorf("confidence = %.2f, want max member 0.92", m.Confidence)
	}
	if len(m.CombinedEvidence) != 2 {
		t.Errorf("evidence = %v, want both contexts", m.CombinedEvidence)
	}
}

func TestMergeBeyondThresholdStaysSeparate(t *testing.T) {
	a := mkAnchor("a", 0, 2025, 3, 1, 0.9, 30, anchor.PrecisionDay)
	b := mkAnchor("b", 30, 2025, 3, 20, 0.9, 30, anchor.PrecisionDay)

	merged := NewMerger(7).Merge([]anchor.DateAnchor{a, b})
	if len(merged) != 2 {
		t.Fatalf("got %d groups, want 2", len(merged))
	}
	if !merged[0].Representative.Date.Before(*merged[1].Representative.Date) {
		t.Errorf("groups not in date order")
	}
}

func TestMergeChainsTransitively(t *testing.T) {
	// 1st and 15th are 14 days apart, but the 8th bridges them: chained
	// grouping collapses all three.
	a := mkAnchor("a", 0, 2025, 3, 1, 0.9, 30, anchor.PrecisionDay)
	b := mkAnchor("b", 20, 2025, 3, 8, 0.9, 30, anchor.PrecisionDay)
	c := mkAnchor("c", 40, 2025, 3, 15, 0.9, 30, anchor.PrecisionDay)

	merged := NewMerger(7).Merge([]anchor.DateAnchor{c, a, b})
	if len(merged) != 1 {
		t.Fatalf("got %d groups, want 1 chained group", len(merged))
	}
	if merged[0].MergedCount != 3 {
		t.Errorf("count = %d, want 3", merged[0].MergedCount)
	}
}

func TestMergeSkipsInvalidAnchors(t *testing.T) {
	valid := mkAnchor("a", 0, 2025, 3, 1, 0.9, 30, anchor.PrecisionDay)
	invalid := anchor.DateAnchor{ID: "bad"}

	merged := NewMerger(7).Merge([]anchor.DateAnchor{valid, invalid})
	if len(merged) != 1 || merged[0].MergedCount != 1 {
		t.Fatalf("merged = %+v, want single valid group", merged)
	}
}

func TestMergeEmpty(t *testing.T) {
	if got := NewMerger(7).Merge(nil); got != nil {
		t.Errorf("merge of nothing = %+v, want nil", got)
	}
}
