// Package anchor provides pattern-based temporal anchor extraction for chartline.
//
// An anchor is a single date/time reference located in narrative medical or
// insurance text, carrying its source span, the sweep that found it, a
// normalized calendar date, and classification metadata used by the
// downstream conflict-resolution and ranking stages.
package anchor

import (
	"time"

	"github.com/google/uuid"
)

// Category describes which rule family produced an anchor.
type Category string

const (
	CategoryAbsolute           Category = "absolute"
	CategoryRelative           Category = "relative"
	CategoryDuration           Category = "duration"
	CategoryMedicalContextual  Category = "medical_contextual"
	CategoryBackwardValidation Category = "backward_validation"
)

// SweepOrigin identifies which extraction pass found an anchor.
type SweepOrigin string

const (
	SweepForward  SweepOrigin = "forward"
	SweepBackward SweepOrigin = "backward"
)

// Precision describes how exact a normalized date is.
type Precision string

const (
	PrecisionDay         Precision = "day"
	PrecisionMonth       Precision = "month"
	PrecisionYear        Precision = "year"
	PrecisionApproximate Precision = "approximate"
)

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// NearlyCoincides reports whether two spans cover essentially the same text.
// A two-byte slack absorbs separator differences (trailing 일, punctuation).
func (s Span) NearlyCoincides(o Span) bool {
	return abs(s.Start-o.Start) <= 2 && abs(s.End-o.End) <= 2
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MedicalContext classifies the clinical role of the text surrounding an anchor.
type MedicalContext struct {
	Type                 string   `json:"type"` // e.g. "current_visit", "diagnosis_date"
	Keywords             []string `json:"keywords,omitempty"`
	ClinicalSignificance float64  `json:"clinical_significance"` // 0.0–1.0
}

// DateAnchor is one extracted date reference with full provenance.
//
// RawText and Span are fixed at extraction and never mutated; later stages
// only annotate (context, hierarchy score, final confidence).
type DateAnchor struct {
	ID              string          `json:"id"`
	Category        Category        `json:"category"`
	RawText         string          `json:"raw_text"`
	Span            Span            `json:"span"`
	SweepOrigin     SweepOrigin     `json:"sweep_origin"`
	Date            *time.Time      `json:"date,omitempty"` // nil = normalization failed
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Precision       Precision       `json:"precision"`
	BaseConfidence  float64         `json:"base_confidence"`
	Priority        int             `json:"priority"`
	Rule            string          `json:"rule"`
	Context         string          `json:"context"` // evidence window around the match
	Medical         *MedicalContext `json:"medical,omitempty"`
	HierarchyScore  float64         `json:"hierarchy_score"`
	FinalConfidence float64         `json:"final_confidence"`
	ConflictFlagged bool            `json:"conflict_flagged,omitempty"`
}

// Valid reports whether the anchor normalized to a usable calendar date.
// Invalid anchors are excluded from every downstream stage.
func (a *DateAnchor) Valid() bool {
	return a != nil && a.Date != nil
}

// DateEquals compares two anchors' normalized dates at day granularity.
func (a *DateAnchor) DateEquals(b *DateAnchor) bool {
	if a.Date == nil || b.Date == nil {
		return false
	}
	ay, am, ad := a.Date.Date()
	by, bm, bd := b.Date.Date()
	return ay == by && am == bm && ad == bd
}

// MedicalPriority returns the domain priority of the anchor's medical context
// using the supplied table, or the neutral 50 when no context was detected.
func (a *DateAnchor) MedicalPriority(table map[string]int) int {
	if a.Medical == nil {
		return 50
	}
	if p, ok := table[a.Medical.Type]; ok {
		return p
	}
	return 50
}

// NewID mints an identifier for anchors and analysis runs.
func NewID() string {
	return uuid.NewString()
}
