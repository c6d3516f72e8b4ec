package rank

import (
	"github.com/jinhwalab/chartline/internal/anchor"
)

// Factor weights for the final confidence blend. They sum to 1.0.
const (
	weightTextClarity     = 0.30
	weightContextStrength = 0.25
	weightPositionWeight  = 0.20
	weightEvidenceSpan    = 0.25
)

// corroborationBonus is added per independent anchor agreeing on the same
// date, capped at corroborationCap.
const (
	corroborationBonus = 0.05
	corroborationCap   = 0.10
)

// neutralConfidence is the fallback when scoring fails for an anchor.
const neutralConfidence = 0.5

// evidenceSpanCap is the raw-match byte length treated as maximal evidence.
const evidenceSpanCap = 14

// ConfidenceFactors breaks the final score into its components, for
// explainability in results and the run history.
type ConfidenceFactors struct {
	TextClarity     float64 `json:"text_clarity"`
	ContextStrength float64 `json:"context_strength"`
	PositionWeight  float64 `json:"position_weight"`
	EvidenceSpan    float64 `json:"evidence_span"`
	Corroboration   float64 `json:"corroboration"`
}

// Scorer computes the weighted final confidence of each anchor.
type Scorer struct{}

// NewScorer builds a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// ScoreAll sets FinalConfidence on every anchor, using the full anchor set
// for corroboration lookups. A panic while scoring one anchor degrades that
// anchor to the neutral confidence instead of failing the batch.
func (s *Scorer) ScoreAll(anchors []anchor.DateAnchor, textLength int) {
	for i := range anchors {
		conf, _ := s.scoreSafe(&anchors[i], anchors, textLength)
		anchors[i].FinalConfidence = conf
	}
}

// Score returns the final confidence and its factor breakdown for one anchor.
func (s *Scorer) Score(a *anchor.DateAnchor, all []anchor.DateAnchor, textLength int) (float64, ConfidenceFactors) {
	f := ConfidenceFactors{
		TextClarity:     textClarity(a),
		ContextStrength: contextStrength(a),
		PositionWeight:  positionWeight(a.Span.Start, textLength),
		EvidenceSpan:    evidenceSpan(a),
		Corroboration:   corroboration(a, all),
	}

	conf := weightTextClarity*f.TextClarity +
		weightContextStrength*f.ContextStrength +
		weightPositionWeight*f.PositionWeight +
		weightEvidenceSpan*f.EvidenceSpan +
		f.Corroboration

	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf, f
}

func (s *Scorer) scoreSafe(a *anchor.DateAnchor, all []anchor.DateAnchor, textLength int) (conf float64, f ConfidenceFactors) {
	defer func() {
		if recover() != nil {
			conf = neutralConfidence
			f = ConfidenceFactors{}
		}
	}()
	return s.Score(a, all, textLength)
}

// textClarity blends the rule's base confidence with how exact the reading
// is: a day-precision absolute date is clearer than an approximate relative.
func textClarity(a *anchor.DateAnchor) float64 {
	var precisionFactor float64
	switch a.Precision {
	case anchor.PrecisionDay:
		precisionFactor = 1.0
	case anchor.PrecisionMonth:
		precisionFactor = 0.8
	case anchor.PrecisionYear:
		precisionFactor = 0.6
	default:
		precisionFactor = 0.5
	}
	return a.BaseConfidence * precisionFactor
}

// contextStrength is the clinical significance of the detected medical
// context; no context reads as neutral.
func contextStrength(a *anchor.DateAnchor) float64 {
	if a.Medical == nil {
		return 0.5
	}
	return a.Medical.ClinicalSignificance
}

// evidenceSpan rewards longer raw matches up to a cap: "2025년 5월 10일"
// carries more signal than "5/10".
func evidenceSpan(a *anchor.DateAnchor) float64 {
	n := a.Span.End - a.Span.Start
	if n >= evidenceSpanCap {
		return 1
	}
	if n <= 0 {
		return 0
	}
	return float64(n) / float64(evidenceSpanCap)
}

// corroboration counts other anchors agreeing on the same normalized date.
func corroboration(a *anchor.DateAnchor, all []anchor.DateAnchor) float64 {
	if !a.Valid() {
		return 0
	}
	bonus := 0.0
	for i := range all {
		if all[i].ID == a.ID || !all[i].Valid() {
			continue
		}
		if a.DateEquals(&all[i]) {
			bonus += corroborationBonus
			if bonus >= corroborationCap {
				return corroborationCap
			}
		}
	}
	return bonus
}
