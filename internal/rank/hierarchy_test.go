package rank

import (
	"testing"
	"time"

	"github.com/jinhwalab/chartline/internal/anchor"
)

func mkAnchor(id string, start int, y, m, d int, conf float64, prio int, prec anchor.Precision) anchor.DateAnchor {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return anchor.DateAnchor{
		ID:             id,
		Span:           anchor.Span{Start: start, End: start + 10},
		Date:           &t,
		Precision:      prec,
		BaseConfidence: conf,
		Priority:       prio,
		Context:        "ctx-" + id,
	}
}

func withContext(a anchor.DateAnchor, ctxType string, sig float64) anchor.DateAnchor {
	a.Medical = &anchor.MedicalContext{Type: ctxType, ClinicalSignificance: sig}
	return a
}

func TestScoreComposition(t *testing.T) {
	c := NewClassifier(0, nil)

	// priority 30 + context (100-50)*0.5 + 20*0.92 + position 10 + day bonus 10
	a := withContext(mkAnchor("a", 0, 2025, 5, 10, 0.92, 30, anchor.PrecisionDay), "current_visit", 1.0)
	got := c.Score(&a, 100)
	want := 30 + 25 + 18.4 + 10 + 10.0
	if diff := got - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("score = %.2f, want %.2f", got, want)
	}
}

func TestScoreClampedToHundred(t *testing.T) {
	c := NewClassifier(0, nil)
	a := withContext(mkAnchor("a", 0, 2025, 5, 10, 1.0, 90, anchor.PrecisionDay), "current_visit", 1.0)
	if got := c.Score(&a, 100); got != 100 {
		t.Errorf("score = %.2f, want clamp at 100", got)
	}
}

func TestClassifySplitsTiers(t *testing.T) {
	c := NewClassifier(80, nil)

	high := withContext(mkAnchor("high", 0, 2025, 5, 10, 0.92, 30, anchor.PrecisionDay), "current_visit", 1.0)
	low := withContext(mkAnchor("low", 50, 2025, 4, 30, 0.92, 30, anchor.PrecisionDay), "mentioned_event", 0.4)

	primary, secondary := c.Classify([]anchor.DateAnchor{high, low}, 100)
	if len(primary) != 1 || primary[0].ID != "high" {
		t.Fatalf("primary = %+v, want only high", primary)
	}
	if len(secondary) != 1 || secondary[0].ID != "low" {
		t.Fatalf("secondary = %+v, want only low", secondary)
	}
	if primary[0].HierarchyScore < 80 {
		t.Errorf("primary score %.1f below threshold", primary[0].HierarchyScore)
	}
	if secondary[0].HierarchyScore >= 80 {
		t.Errorf("secondary score %.1f at or above threshold", secondary[0].HierarchyScore)
	}
}

func TestClassifyOrderScoreDescending(t *testing.T) {
	c := NewClassifier(200, nil) // force everything secondary

	anchors := []anchor.DateAnchor{
		mkAnchor("weak", 80, 2025, 1, 1, 0.5, 15, anchor.PrecisionApproximate),
		mkAnchor("strong", 0, 2025, 1, 2, 0.9, 28, anchor.PrecisionDay),
	}
	_, secondary := c.Classify(anchors, 100)
	if len(secondary) != 2 {
		t.Fatalf("got %d secondary, want 2", len(secondary))
	}
	if secondary[0].ID != "strong" {
		t.Errorf("order = %s first, want strong", secondary[0].ID)
	}
}

func TestPositionWeightDecay(t *testing.T) {
	if w := positionWeight(0, 100); w != 1 {
		t.Errorf("start weight = %.2f, want 1", w)
	}
	if w := positionWeight(100, 100); w != 0 {
		t.Errorf("end weight = %.2f, want 0", w)
	}
	if w := positionWeight(50, 0); w != 1 {
		t.Errorf("zero-length text weight = %.2f, want 1", w)
	}
}
