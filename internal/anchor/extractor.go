package anchor

import (
	"sort"
	"time"
	"unicode/utf8"
)

// ContextWindow is the number of bytes of surrounding text captured on each
// side of a match as evidence (trimmed to rune boundaries).
const ContextWindow = 100

// Extractor runs a rule table over text and produces candidate anchors.
type Extractor struct {
	rules  []Rule
	origin SweepOrigin
}

// NewExtractor creates a forward-sweep extractor with the full rule table.
func NewExtractor() *Extractor {
	return &Extractor{rules: ForwardRules(), origin: SweepForward}
}

// NewValidationExtractor creates a backward-sweep extractor with the reduced
// rule set used for self-validation.
func NewValidationExtractor() *Extractor {
	return &Extractor{rules: BackwardRules(), origin: SweepBackward}
}

// Extract returns all anchors the rule table finds in text, normalized
// against ref. Matches that fail calendar validation yield no anchor.
// Matches fully contained in an earlier rule's match are suppressed so a
// span keeps only its richest reading within one sweep.
func (e *Extractor) Extract(text string, ref time.Time) []DateAnchor {
	var anchors []DateAnchor
	var taken []Span

	for _, rule := range e.rules {
		idx := rule.Pattern.FindAllStringSubmatchIndex(text, -1)
		for _, m := range idx {
			span := Span{Start: m[0], End: m[1]}
			if containedInAny(span, taken) {
				continue
			}

			groups := submatchStrings(text, m)

			var norm normalized
			var ok bool
			switch {
			case rule.YearLookback:
				year, found := lookbackYear(text, span.Start)
				if !found {
					continue
				}
				norm, ok = rule.LookbackNormalize(groups, year)
			default:
				norm, ok = rule.Normalize(groups, ref)
			}
			if !ok {
				continue
			}

			date := norm.date
			anchors = append(anchors, DateAnchor{
				ID:             NewID(),
				Category:       rule.Category,
				RawText:        text[span.Start:span.End],
				Span:           span,
				SweepOrigin:    e.origin,
				Date:           &date,
				EndDate:        norm.endDate,
				Precision:      norm.precision,
				BaseConfidence: rule.BaseConfidence,
				Priority:       rule.Priority,
				Rule:           rule.Name,
				Context:        contextWindow(text, span),
			})
			taken = append(taken, span)
		}
	}

	sort.SliceStable(anchors, func(i, j int) bool {
		if anchors[i].Span.Start != anchors[j].Span.Start {
			return anchors[i].Span.Start < anchors[j].Span.Start
		}
		return anchors[i].Span.End > anchors[j].Span.End
	})
	return anchors
}

func submatchStrings(text string, idx []int) []string {
	groups := make([]string, len(idx)/2)
	for i := 0; i < len(idx); i += 2 {
		if idx[i] < 0 {
			groups[i/2] = ""
			continue
		}
		groups[i/2] = text[idx[i]:idx[i+1]]
	}
	return groups
}

func containedInAny(s Span, taken []Span) bool {
	for _, t := range taken {
		if s.Start >= t.Start && s.End <= t.End {
			return true
		}
	}
	return false
}

// contextWindow captures ±ContextWindow bytes around the span, snapped
// outward never past the text and inward to valid rune boundaries so
// multi-byte Hangul is never split.
func contextWindow(text string, s Span) string {
	start := s.Start - ContextWindow
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := s.End + ContextWindow
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}
