package anchor

import (
	"regexp"
	"strings"
	"time"
)

// Rule is one declarative extraction rule: a pattern, the category it feeds,
// and the normalizer that turns its capture groups into a calendar date.
// All dispatch runs through a single loop in the extractor; rules never
// reach into match internals themselves.
type Rule struct {
	Name           string
	Category       Category
	Pattern        *regexp.Regexp
	BaseConfidence float64
	Priority       int

	// Normalize resolves the capture groups against the reference date.
	// Rules with YearLookback leave this nil and use LookbackNormalize.
	Normalize normalizeFunc

	// YearLookback marks rules whose match lacks a year component; the
	// scanner supplies the most recent year token seen before the match.
	YearLookback      bool
	LookbackNormalize func(groups []string, year int) (normalized, bool)
}

// krMedicalKeywords and enMedicalKeywords qualify a date as medical-contextual
// when adjacent. The broader context keyword table lives in context.go.
const (
	krMedicalKeywords = `진료|내원|진단|치료|입원|퇴원|수술|검사|검진|통원|처방|발병|외래`
	enMedicalKeywords = `diagnos(?:is|ed)|treat(?:ment|ed)|admission|admitted|discharged?|surgery|operation|examination|exam|hospitalized|visit(?:ed)?`
)

var krRelativeDays = map[string]int{
	"오늘":  0,
	"어제":  -1,
	"그저께": -2,
	"그제":  -2,
	"내일":  1,
	"모레":  2,
}

var enRelativeDays = map[string]int{
	"today":     0,
	"yesterday": -1,
	"tomorrow":  1,
}

// ForwardRules returns the full rule table for the forward sweep, in
// evaluation order. Longer, more specific patterns come first so that
// containment suppression keeps the richest reading of a span.
func ForwardRules() []Rule {
	return []Rule{
		// --- Duration ---
		{
			Name:     "range_numeric",
			Category: CategoryDuration,
			Pattern: regexp.MustCompile(
				`(\d{4})[-./](\d{1,2})[-./](\d{1,2})\s*(?:~|∼|부터|에서)\s*(\d{4})[-./](\d{1,2})[-./](\d{1,2})(?:\s*까지)?`),
			BaseConfidence: 0.82,
			Priority:       24,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				start, ok := normalizeYMD(g[1], g[2], g[3])
				if !ok {
					return normalized{}, false
				}
				if end, ok := normalizeYMD(g[4], g[5], g[6]); ok && !end.date.Before(start.date) {
					start.endDate = &end.date
				}
				return start, true
			},
		},
		{
			Name:     "range_relative_length",
			Category: CategoryDuration,
			Pattern: regexp.MustCompile(
				`(\d{4})[-./](\d{1,2})[-./](\d{1,2})\s*(?:일)?\s*(?:부터)?\s*(\d{1,3})\s*일\s*간`),
			BaseConfidence: 0.8,
			Priority:       24,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				start, ok := normalizeYMD(g[1], g[2], g[3])
				if !ok {
					return normalized{}, false
				}
				if n := atoi(g[4]); n > 0 {
					end := start.date.AddDate(0, 0, n-1)
					start.endDate = &end
				}
				return start, true
			},
		},
		{
			Name:     "start_only",
			Category: CategoryDuration,
			Pattern: regexp.MustCompile(
				`(\d{4})[-./](\d{1,2})[-./](\d{1,2})\s*부터`),
			BaseConfidence: 0.82,
			Priority:       24,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},

		// --- MedicalContextual: domain keyword adjacent to a date token ---
		{
			Name:     "kr_date_keyword",
			Category: CategoryMedicalContextual,
			Pattern: regexp.MustCompile(
				`(\d{4})[-./](\d{1,2})[-./](\d{1,2})[에은는의\s]{0,6}(?:` + krMedicalKeywords + `)`),
			BaseConfidence: 0.92,
			Priority:       30,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},
		{
			Name:     "kr_hangul_date_keyword",
			Category: CategoryMedicalContextual,
			Pattern: regexp.MustCompile(
				`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일[에은는의\s]{0,6}(?:` + krMedicalKeywords + `)`),
			BaseConfidence: 0.92,
			Priority:       30,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},
		{
			Name:     "kr_keyword_date",
			Category: CategoryMedicalContextual,
			Pattern: regexp.MustCompile(
				`(?:` + krMedicalKeywords + `)[^\d\n]{0,12}(\d{4})[-./](\d{1,2})[-./](\d{1,2})`),
			BaseConfidence: 0.92,
			Priority:       30,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},
		{
			Name:     "en_keyword_date",
			Category: CategoryMedicalContextual,
			Pattern: regexp.MustCompile(
				`(?i)(?:` + enMedicalKeywords + `)[^\d\n]{0,15}(\d{4})[-./](\d{1,2})[-./](\d{1,2})`),
			BaseConfidence: 0.92,
			Priority:       30,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},

		// --- Absolute ---
		{
			Name:     "kr_full_date",
			Category: CategoryAbsolute,
			Pattern: regexp.MustCompile(
				`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`),
			BaseConfidence: 0.88,
			Priority:       28,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},
		{
			Name:     "iso_date",
			Category: CategoryAbsolute,
			Pattern: regexp.MustCompile(
				`\b(\d{4})[-./](\d{1,2})[-./](\d{1,2})\b`),
			BaseConfidence: 0.85,
			Priority:       25,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[1], g[2], g[3])
			},
		},
		{
			Name:     "en_month_date",
			Category: CategoryAbsolute,
			Pattern: regexp.MustCompile(
				`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2}),?\s+(\d{4})\b`),
			BaseConfidence: 0.8,
			Priority:       24,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				m := monthNumber(g[1])
				if m < 0 {
					return normalized{}, false
				}
				t, ok := validYMD(atoi(g[3]), m, atoi(g[2]))
				if !ok {
					return normalized{}, false
				}
				return normalized{date: t, precision: PrecisionDay}, true
			},
		},
		{
			Name:     "us_numeric",
			Category: CategoryAbsolute,
			Pattern: regexp.MustCompile(
				`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`),
			BaseConfidence: 0.7,
			Priority:       22,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				// Read month-first; the backward sweep carries the
				// day-first reading of the same shape.
				return normalizeYMD(g[3], g[1], g[2])
			},
		},
		{
			Name:     "kr_year_month",
			Category: CategoryAbsolute,
			Pattern: regexp.MustCompile(
				`(\d{4})\s*년\s*(\d{1,2})\s*월(?:\s*경)?`),
			BaseConfidence: 0.72,
			Priority:       20,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYM(g[1], g[2])
			},
		},

		// --- Relative ---
		{
			Name:           "kr_relative_day",
			Category:       CategoryRelative,
			Pattern:        regexp.MustCompile(`(오늘|어제|그저께|그제|내일|모레)`),
			BaseConfidence: 0.8,
			Priority:       22,
			Normalize: func(g []string, ref time.Time) (normalized, bool) {
				off, ok := krRelativeDays[g[1]]
				if !ok {
					return normalized{}, false
				}
				return normalized{date: dayOf(ref).AddDate(0, 0, off), precision: PrecisionDay}, true
			},
		},
		{
			Name:           "en_relative_day",
			Category:       CategoryRelative,
			Pattern:        regexp.MustCompile(`(?i)\b(today|yesterday|tomorrow)\b`),
			BaseConfidence: 0.8,
			Priority:       22,
			Normalize: func(g []string, ref time.Time) (normalized, bool) {
				off, ok := enRelativeDays[strings.ToLower(g[1])]
				if !ok {
					return normalized{}, false
				}
				return normalized{date: dayOf(ref).AddDate(0, 0, off), precision: PrecisionDay}, true
			},
		},
		{
			Name:           "kr_n_units",
			Category:       CategoryRelative,
			Pattern:        regexp.MustCompile(`(\d{1,3})\s*(일|주|개월|달|년)\s*(전|후)`),
			BaseConfidence: 0.78,
			Priority:       22,
			Normalize: func(g []string, ref time.Time) (normalized, bool) {
				n := atoi(g[1])
				if n <= 0 {
					return normalized{}, false
				}
				if g[3] == "전" {
					n = -n
				}
				t, prec, ok := shiftByUnit(dayOf(ref), n, g[2])
				if !ok {
					return normalized{}, false
				}
				return normalized{date: t, precision: prec}, true
			},
		},
		{
			Name:           "en_n_units",
			Category:       CategoryRelative,
			Pattern:        regexp.MustCompile(`(?i)\b(\d{1,3})\s*(days?|weeks?|months?|years?)\s+(ago|later)\b`),
			BaseConfidence: 0.78,
			Priority:       22,
			Normalize: func(g []string, ref time.Time) (normalized, bool) {
				n := atoi(g[1])
				if n <= 0 {
					return normalized{}, false
				}
				if strings.ToLower(g[3]) == "ago" {
					n = -n
				}
				t, prec, ok := shiftByUnit(dayOf(ref), n, g[2])
				if !ok {
					return normalized{}, false
				}
				return normalized{date: t, precision: prec}, true
			},
		},
	}
}

// BackwardRules returns the reduced validation rule set for the second sweep.
// These catch component-disordered fragments the forward rules misread or
// miss entirely; every anchor they produce carries a lower base confidence.
func BackwardRules() []Rule {
	return []Rule{
		{
			// YYYY-DD-MM: middle component too large to be a month.
			Name:     "swapped_month_day",
			Category: CategoryBackwardValidation,
			Pattern: regexp.MustCompile(
				`\b(\d{4})[-./](\d{1,2})[-./](\d{1,2})\b`),
			BaseConfidence: 0.6,
			Priority:       15,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				if atoi(g[2]) <= 12 {
					// Plausible as YYYY-MM-DD; the forward sweep owns it.
					return normalized{}, false
				}
				return normalizeYMD(g[1], g[3], g[2])
			},
		},
		{
			// DD-MM-YYYY: day-first reading of the numeric-with-year-last
			// shape. Deliberately overlaps the forward month-first reading;
			// disagreement surfaces as a conflict for the resolver.
			Name:     "day_first",
			Category: CategoryBackwardValidation,
			Pattern: regexp.MustCompile(
				`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`),
			BaseConfidence: 0.55,
			Priority:       15,
			Normalize: func(g []string, _ time.Time) (normalized, bool) {
				return normalizeYMD(g[3], g[2], g[1])
			},
		},
		{
			// MM월 DD일 fragment with the governing year somewhere earlier
			// in the text; the scanner supplies it from the lookback window.
			Name:     "kr_fragment",
			Category: CategoryBackwardValidation,
			Pattern: regexp.MustCompile(
				`(\d{1,2})\s*월\s*(\d{1,2})\s*일`),
			BaseConfidence: 0.58,
			Priority:       15,
			YearLookback:   true,
			LookbackNormalize: func(g []string, year int) (normalized, bool) {
				t, ok := validYMD(year, atoi(g[1]), atoi(g[2]))
				if !ok {
					return normalized{}, false
				}
				return normalized{date: t, precision: PrecisionDay}, true
			},
		},
	}
}

