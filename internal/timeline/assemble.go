// Package timeline orders ranked anchors chronologically and derives the
// pairwise temporal relationships between them.
package timeline

import (
	"sort"
	"time"

	"github.com/jinhwalab/chartline/internal/anchor"
)

// Relation describes how one event sits relative to another.
type Relation string

const (
	RelationBefore     Relation = "before"
	RelationAfter      Relation = "after"
	RelationSamePeriod Relation = "same_period"
)

// samePeriodSlackDays is the maximum day gap still considered the same period.
const samePeriodSlackDays = 1

// Relationship links an event to one other event on the timeline.
type Relationship struct {
	TargetID       string   `json:"target_id"`
	Relation       Relation `json:"relation"`
	DaysDifference int      `json:"days_difference"` // signed: negative = target is earlier
	Confidence     float64  `json:"confidence"`      // mean of the two final confidences
}

// Event is one timeline entry: an anchor plus its relationships to every
// other event.
type Event struct {
	Anchor        anchor.DateAnchor `json:"anchor"`
	Relationships []Relationship    `json:"relationships,omitempty"`
}

// Assemble sorts valid anchors ascending by date (position on ties) and
// computes the full pairwise relationship matrix. Quadratic in the number of
// events, which stays small after merging.
func Assemble(anchors []anchor.DateAnchor) []Event {
	dated := make([]anchor.DateAnchor, 0, len(anchors))
	for _, a := range anchors {
		if a.Valid() {
			dated = append(dated, a)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		if !dated[i].Date.Equal(*dated[j].Date) {
			return dated[i].Date.Before(*dated[j].Date)
		}
		return dated[i].Span.Start < dated[j].Span.Start
	})

	events := make([]Event, len(dated))
	for i, a := range dated {
		events[i] = Event{Anchor: a}
	}
	for i := range events {
		for j := range events {
			if i == j {
				continue
			}
			events[i].Relationships = append(events[i].Relationships, relate(&events[i].Anchor, &events[j].Anchor))
		}
	}
	return events
}

// relate describes where b sits relative to a.
func relate(a, b *anchor.DateAnchor) Relationship {
	days := signedDays(*a.Date, *b.Date)

	rel := RelationSamePeriod
	switch {
	case days > samePeriodSlackDays:
		rel = RelationAfter
	case days < -samePeriodSlackDays:
		rel = RelationBefore
	}

	return Relationship{
		TargetID:       b.ID,
		Relation:       rel,
		DaysDifference: days,
		Confidence:     (a.FinalConfidence + b.FinalConfidence) / 2,
	}
}

func signedDays(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
