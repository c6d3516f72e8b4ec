package timeline

import (
	"testing"
	"time"

	"github.com/jinhwalab/chartline/internal/anchor"
)

func mkAnchor(id string, start int, y, m, d int, conf float64) anchor.DateAnchor {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return anchor.DateAnchor{
		ID:              id,
		Span:            anchor.Span{Start: start, End: start + 10},
		Date:            &t,
		FinalConfidence: conf,
	}
}

func relationTo(t *testing.T, ev Event, targetID string) Relationship {
	t.Helper()
	for _, r := range ev.Relationships {
		if r.TargetID == targetID {
			return r
		}
	}
	t.Fatalf("event %s has no relationship to %s", ev.Anchor.ID, targetID)
	return Relationship{}
}

func TestAssembleOrdersAscending(t *testing.T) {
	events := Assemble([]anchor.DateAnchor{
		mkAnchor("late", 0, 2025, 5, 10, 0.9),
		mkAnchor("early", 20, 2025, 3, 1, 0.8),
		mkAnchor("mid", 40, 2025, 4, 1, 0.7),
	})
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	want := []string{"early", "mid", "late"}
	for i, id := range want {
		if events[i].Anchor.ID != id {
			t.Errorf("events[%d] = %s, want %s", i, events[i].Anchor.ID, id)
		}
	}
}

func TestAssembleRelationships(t *testing.T) {
	events := Assemble([]anchor.DateAnchor{
		mkAnchor("a", 0, 2025, 3, 1, 0.8),
		mkAnchor("b", 20, 2025, 3, 11, 0.6),
	})
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	ab := relationTo(t, events[0], "b")
	if ab.Relation != RelationAfter || ab.DaysDifference != 10 {
		t.Errorf("a->b = %s/%d, want after/10", ab.Relation, ab.DaysDifference)
	}
	ba := relationTo(t, events[1], "a")
	if ba.Relation != RelationBefore || ba.DaysDifference != -10 {
		t.Errorf("b->a = %s/%d, want before/-10", ba.Relation, ba.DaysDifference)
	}
	if diff := ab.Confidence - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("relationship confidence = %.2f, want mean 0.7", ab.Confidence)
	}
}

func TestAssembleSamePeriod(t *testing.T) {
	events := Assemble([]anchor.DateAnchor{
		mkAnchor("a", 0, 2025, 3, 1, 0.8),
		mkAnchor("b", 20, 2025, 3, 2, 0.8),
	})
	r := relationTo(t, events[0], "b")
	if r.Relation != RelationSamePeriod {
		t.Errorf("one-day gap relation = %s, want same_period", r.Relation)
	}
}

func TestAssembleSkipsInvalid(t *testing.T) {
	events := Assemble([]anchor.DateAnchor{
		mkAnchor("a", 0, 2025, 3, 1, 0.8),
		{ID: "bad"},
	})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if len(events[0].Relationships) != 0 {
		t.Errorf("lone event should have no relationships")
	}
}
