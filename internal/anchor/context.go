package anchor

import (
	"regexp"
)

// DefaultDomainPriorities ranks medical context types for conflict
// resolution and hierarchy scoring. Higher wins. The neutral value for
// anchors without a detected context is 50.
func DefaultDomainPriorities() map[string]int {
	return map[string]int{
		"current_visit":    100,
		"diagnosis_date":   90,
		"treatment_date":   80,
		"examination_date": 70,
		"surgery_date":     65,
		"visit_date":       60,
		"history_date":     50,
		"mentioned_event":  40,
	}
}

// keywordClass binds a context type to the keywords that indicate it.
type keywordClass struct {
	typ string
	re  *regexp.Regexp
}

// Classes are checked in priority order; on an equal-distance tie the
// higher-ranked type wins.
var contextClasses = []keywordClass{
	{"current_visit", regexp.MustCompile(`진료|내원|외래`)},
	{"diagnosis_date", regexp.MustCompile(`(?i)진단|발병|diagnos(?:is|ed)`)},
	{"treatment_date", regexp.MustCompile(`(?i)치료|입원|퇴원|처방|투약|treat(?:ment|ed)|admission|admitted|discharged?|hospitalized|prescribed`)},
	{"examination_date", regexp.MustCompile(`(?i)검사|검진|exam(?:ination)?`)},
	{"surgery_date", regexp.MustCompile(`(?i)수술|시술|surgery|operation`)},
	{"visit_date", regexp.MustCompile(`(?i)통원|방문|visit(?:ed)?`)},
	{"history_date", regexp.MustCompile(`(?i)과거|기왕|병력|history`)},
}

// reportedSpeechRE marks hearsay: dates the patient mentioned rather than
// dates the record itself establishes.
var reportedSpeechRE = regexp.MustCompile(`(?i)받았다고|했다고|였다고|이었다고|라고\s*함|다고\s*함|reportedly|stated`)

const (
	contextLeadWindow  = 60 // bytes before the span considered for keywords
	contextTrailWindow = 40 // bytes after the span considered for keywords
	reportedWindow     = 24 // bytes after the span scanned for hearsay markers
)

// AnnotateContexts classifies the clinical role of every anchor from the
// keywords surrounding it, writing the result into anchor.Medical. Anchors
// with no nearby domain keyword are left unannotated (neutral priority).
func AnnotateContexts(text string, anchors []DateAnchor, priorities map[string]int) {
	if priorities == nil {
		priorities = DefaultDomainPriorities()
	}
	for i := range anchors {
		annotateOne(text, &anchors[i], priorities)
	}
}

func annotateOne(text string, a *DateAnchor, priorities map[string]int) {
	lead := a.Span.Start - contextLeadWindow
	if lead < 0 {
		lead = 0
	}
	trail := a.Span.End + contextTrailWindow
	if trail > len(text) {
		trail = len(text)
	}
	window := text[lead:trail]
	spanStart := a.Span.Start - lead
	spanEnd := a.Span.End - lead

	bestType := ""
	bestDist := -1
	var bestKeywords []string
	for _, class := range contextClasses {
		locs := class.re.FindAllStringIndex(window, -1)
		for _, loc := range locs {
			d := keywordDistance(loc[0], loc[1], spanStart, spanEnd)
			if bestDist < 0 || d < bestDist {
				bestDist = d
				bestType = class.typ
				bestKeywords = []string{window[loc[0]:loc[1]]}
			}
		}
	}

	if bestType == "" {
		return
	}

	// Hearsay right after the date demotes any classification: the record
	// is relaying the patient's account, not establishing the event.
	if marker, ok := reportedMarkerAfter(text, a.Span.End); ok {
		bestType = "mentioned_event"
		bestKeywords = append(bestKeywords, marker)
	}

	prio := priorities[bestType]
	a.Medical = &MedicalContext{
		Type:                 bestType,
		Keywords:             bestKeywords,
		ClinicalSignificance: float64(prio) / 100.0,
	}
}

// keywordDistance is the byte gap between a keyword and the anchor span;
// keywords touching or inside the span count as zero.
func keywordDistance(kwStart, kwEnd, spanStart, spanEnd int) int {
	if kwEnd <= spanStart {
		return spanStart - kwEnd
	}
	if kwStart >= spanEnd {
		return kwStart - spanEnd
	}
	return 0
}

// reportedMarkerAfter scans a short window after the span for a hearsay
// marker, stopping at the first digit so a marker belonging to the next
// date reference is never attributed to this one.
func reportedMarkerAfter(text string, from int) (string, bool) {
	end := from + reportedWindow
	if end > len(text) {
		end = len(text)
	}
	window := text[from:end]
	for i := 0; i < len(window); i++ {
		if window[i] >= '0' && window[i] <= '9' {
			window = window[:i]
			break
		}
	}
	if loc := reportedSpeechRE.FindString(window); loc != "" {
		return loc, true
	}
	return "", false
}
