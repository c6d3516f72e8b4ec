package rank

import (
	"testing"

	"github.com/jinhwalab/chartline/internal/anchor"
)

func TestScoreFactorsInRange(t *testing.T) {
	a := withContext(mkAnchor("a", 0, 2025, 5, 10, 0.92, 30, anchor.PrecisionDay), "current_visit", 1.0)

	conf, f := NewScorer().Score(&a, []anchor.DateAnchor{a}, 100)
	if conf < 0 || conf > 1 {
		t.Fatalf("confidence %.2f out of range", conf)
	}
	for name, v := range map[string]float64{
		"text_clarity":     f.TextClarity,
		"context_strength": f.ContextStrength,
		"position_weight":  f.PositionWeight,
		"evidence_span":    f.EvidenceSpan,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %.2f out of range", name, v)
		}
	}
}

func TestPrecisionLowersClarity(t *testing.T) {
	day := mkAnchor("d", 0, 2025, 5, 10, 0.8, 25, anchor.PrecisionDay)
	approx := mkAnchor("p", 0, 2024, 11, 10, 0.8, 25, anchor.PrecisionApproximate)

	if textClarity(&day) <= textClarity(&approx) {
		t.Errorf("day clarity %.2f should exceed approximate %.2f",
			textClarity(&day), textClarity(&approx))
	}
}

func TestContextStrengthNeutralWithoutAnnotation(t *testing.T) {
	a := mkAnchor("a", 0, 2025, 5, 10, 0.8, 25, anchor.PrecisionDay)
	if got := contextStrength(&a); got != 0.5 {
		t.Errorf("neutral strength = %.2f, want 0.5", got)
	}
}

func TestCorroborationBonusCapped(t *testing.T) {
	target := mkAnchor("t", 0, 2025, 5, 10, 0.8, 25, anchor.PrecisionDay)
	all := []anchor.DateAnchor{target}
	for _, id := range []string{"x", "y", "z"} {
		all = append(all, mkAnchor(id, 20, 2025, 5, 10, 0.7, 25, anchor.PrecisionDay))
	}

	if got := corroboration(&target, all); got != corroborationCap {
		t.Errorf("bonus = %.2f, want cap %.2f", got, corroborationCap)
	}

	lone := mkAnchor("lone", 0, 2025, 1, 1, 0.8, 25, anchor.PrecisionDay)
	if got := corroboration(&lone, all); got != 0 {
		t.Errorf("uncorroborated bonus = %.2f, want 0", got)
	}
}

func TestScoreAllSetsFinalConfidence(t *testing.T) {
	anchors := []anchor.DateAnchor{
		withContext(mkAnchor("a", 0, 2025, 5, 10, 0.92, 30, anchor.PrecisionDay), "current_visit", 1.0),
		mkAnchor("b", 50, 2025, 4, 1, 0.6, 20, anchor.PrecisionMonth),
	}
	NewScorer().ScoreAll(anchors, 100)

	for _, a := range anchors {
		if a.FinalConfidence <= 0 || a.FinalConfidence > 1 {
			t.Errorf("anchor %s final confidence %.2f out of range", a.ID, a.FinalConfidence)
		}
	}
	if anchors[0].FinalConfidence <= anchors[1].FinalConfidence {
		t.Errorf("strong anchor %.2f should outscore weak %.2f",
			anchors[0].FinalConfidence, anchors[1].FinalConfidence)
	}
}
