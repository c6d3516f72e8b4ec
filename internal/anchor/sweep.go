package anchor

import (
	"regexp"
	"sort"
	"time"
)

// yearLookbackWindow bounds how far back (in bytes) the validation sweep
// searches for a governing year when a fragment has none of its own.
const yearLookbackWindow = 200

var yearTokenRE = regexp.MustCompile(`\b((?:19|20)\d{2})(?:\s*년)?`)

// Scanner is the dual-sweep extraction front end: a forward pass with the
// full rule table, then a validation pass with the reduced backward set.
// A date confirmed by both sweeps survives deduplication with the forward
// reading's confidence; a date only one sweep produces is weaker evidence,
// and disagreement over the same span becomes a conflict downstream.
//
// The validation pass parses forward with a bounded lookback window instead
// of reversing the string, so matches are natively in original coordinates
// and multi-byte Hangul never gets scrambled.
type Scanner struct {
	forward  *Extractor
	backward *Extractor
}

// NewScanner creates a scanner with the default forward and validation rules.
func NewScanner() *Scanner {
	return &Scanner{
		forward:  NewExtractor(),
		backward: NewValidationExtractor(),
	}
}

// Scan runs both sweeps over text and merges their anchors, collapsing
// overlapping anchors that agree on the normalized date (the highest base
// confidence reading is kept, forward beating backward on ties).
func (s *Scanner) Scan(text string, ref time.Time) []DateAnchor {
	anchors := s.forward.Extract(text, ref)
	anchors = append(anchors, s.backward.Extract(text, ref)...)
	return dedupeAgreeing(anchors)
}

// lookbackYear finds the most recent plausible year token that ends before
// pos, within the lookback window. Used by YearLookback rules.
func lookbackYear(text string, pos int) (int, bool) {
	start := pos - yearLookbackWindow
	if start < 0 {
		start = 0
	}
	window := text[start:pos]

	matches := yearTokenRE.FindAllStringSubmatch(window, -1)
	if len(matches) == 0 {
		return 0, false
	}
	return atoi(matches[len(matches)-1][1]), true
}

// dedupeAgreeing removes anchors whose span overlaps a stronger anchor with
// the same normalized date. Anchors that overlap but disagree on the date
// are both kept; that disagreement is exactly what the conflict detector
// exists to adjudicate.
func dedupeAgreeing(anchors []DateAnchor) []DateAnchor {
	ranked := make([]DateAnchor, len(anchors))
	copy(ranked, anchors)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].BaseConfidence != ranked[j].BaseConfidence {
			return ranked[i].BaseConfidence > ranked[j].BaseConfidence
		}
		if ranked[i].SweepOrigin != ranked[j].SweepOrigin {
			return ranked[i].SweepOrigin == SweepForward
		}
		return ranked[i].Span.Start < ranked[j].Span.Start
	})

	kept := make([]DateAnchor, 0, len(ranked))
	for _, a := range ranked {
		duplicate := false
		for i := range kept {
			if a.Span.Overlaps(kept[i].Span) && a.DateEquals(&kept[i]) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, a)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Span.Start != kept[j].Span.Start {
			return kept[i].Span.Start < kept[j].Span.Start
		}
		return kept[i].Span.End > kept[j].Span.End
	})
	return kept
}
