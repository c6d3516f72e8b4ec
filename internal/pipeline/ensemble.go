package pipeline

import (
	"sort"
	"time"
)

// ExternalDate is a date produced by another extraction system (an OCR
// post-processor, an upstream NLP service) offered for cross-checking.
type ExternalDate struct {
	Date       time.Time `json:"date"`
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"confidence"`
}

// EnsembleMode selects how external dates combine with the engine's own.
type EnsembleMode string

const (
	// EnsembleUnion keeps every date either source produced.
	EnsembleUnion EnsembleMode = "union"

	// EnsembleIntersection keeps only dates both sources produced.
	EnsembleIntersection EnsembleMode = "intersection"

	// EnsembleWeighted keeps the union but scales confidence by agreement:
	// corroborated dates average up, single-source dates are discounted.
	EnsembleWeighted EnsembleMode = "weighted"
)

// singleSourceDiscount applies to weighted-mode dates only one source saw.
const singleSourceDiscount = 0.75

// CombineExternal reconciles the engine's result dates with an external
// system's, keyed on calendar-day equality. Output is sorted by date.
func CombineExternal(mode EnsembleMode, internal, external []ExternalDate) []ExternalDate {
	type entry struct {
		in, ex *ExternalDate
	}
	index := make(map[string]*entry)
	order := make([]string, 0, len(internal)+len(external))

	key := func(t time.Time) string { return t.Format("2006-01-02") }

	for i := range internal {
		k := key(internal[i].Date)
		if _, ok := index[k]; !ok {
			index[k] = &entry{}
			order = append(order, k)
		}
		index[k].in = &internal[i]
	}
	for i := range external {
		k := key(external[i].Date)
		if _, ok := index[k]; !ok {
			index[k] = &entry{}
			order = append(order, k)
		}
		index[k].ex = &external[i]
	}

	var out []ExternalDate
	for _, k := range order {
		e := index[k]
		switch mode {
		case EnsembleIntersection:
			if e.in != nil && e.ex != nil {
				out = append(out, combined(e.in, e.ex))
			}
		case EnsembleWeighted:
			switch {
			case e.in != nil && e.ex != nil:
				out = append(out, combined(e.in, e.ex))
			case e.in != nil:
				out = append(out, discounted(*e.in))
			default:
				out = append(out, discounted(*e.ex))
			}
		default: // union
			if e.in != nil {
				out = append(out, *e.in)
			} else {
				out = append(out, *e.ex)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// combined averages the two confidences; the internal label wins when set.
func combined(in, ex *ExternalDate) ExternalDate {
	label := in.Label
	if label == "" {
		label = ex.Label
	}
	return ExternalDate{
		Date:       in.Date,
		Label:      label,
		Confidence: (in.Confidence + ex.Confidence) / 2,
	}
}

func discounted(d ExternalDate) ExternalDate {
	d.Confidence *= singleSourceDiscount
	return d
}
