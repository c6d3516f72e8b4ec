package pipeline

import (
	"testing"
)

func ext(y, m, d int, conf float64) ExternalDate {
	return ExternalDate{Date: day(y, m, d), Confidence: conf}
}

func TestCombineUnion(t *testing.T) {
	got := CombineExternal(EnsembleUnion,
		[]ExternalDate{ext(2025, 5, 1, 0.9)},
		[]ExternalDate{ext(2025, 5, 1, 0.8), ext(2025, 6, 1, 0.7)},
	)
	if len(got) != 2 {
		t.Fatalf("union size = %d, want 2", len(got))
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Errorf("union not date-sorted")
	}
}

func TestCombineIntersection(t *testing.T) {
	got := CombineExternal(EnsembleIntersection,
		[]ExternalDate{ext(2025, 5, 1, 0.9), ext(2025, 7, 1, 0.9)},
		[]ExternalDate{ext(2025, 5, 1, 0.7), ext(2025, 6, 1, 0.7)},
	)
	if len(got) != 1 {
		t.Fatalf("intersection size = %d, want 1", len(got))
	}
	if !got[0].Date.Equal(day(2025, 5, 1)) {
		t.Errorf("intersection date = %s", got[0].Date.Format("2006-01-02"))
	}
	if !approx(got[0].Confidence, 0.8) {
		t.Errorf("confidence = %.2f, want mean 0.8", got[0].Confidence)
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestCombineWeighted(t *testing.T) {
	got := CombineExternal(EnsembleWeighted,
		[]ExternalDate{ext(2025, 5, 1, 0.9), ext(2025, 7, 1, 0.8)},
		[]ExternalDate{ext(2025, 5, 1, 0.7)},
	)
	if len(got) != 2 {
		t.Fatalf("weighted size = %d, want 2", len(got))
	}
	if !approx(got[0].Confidence, 0.8) {
		t.Errorf("corroborated confidence = %.2f, want mean 0.8", got[0].Confidence)
	}
	if !approx(got[1].Confidence, 0.8*singleSourceDiscount) {
		t.Errorf("single-source confidence = %.2f, want %.2f", got[1].Confidence, 0.8*singleSourceDiscount)
	}
}
