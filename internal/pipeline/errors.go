// Package pipeline wires the extraction, conflict, ranking, and timeline
// stages into one engine with bounded degradation: a stage failure falls
// back to a safe default for that stage instead of failing the analysis.
package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies an analysis error for retry and reporting decisions.
type Kind string

const (
	// KindValidation: the input itself is unusable (empty, oversized).
	// Never retried.
	KindValidation Kind = "validation"

	// KindProcessing: a stage failed while computing. Retryable.
	KindProcessing Kind = "processing"

	// KindTimeout: the context deadline expired mid-analysis. Retryable.
	KindTimeout Kind = "timeout"

	// KindData: persistence or history access failed. Retryable.
	KindData Kind = "data"
)

// Error is the pipeline's typed error.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the stage it occurred in.
func NewError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Validationf builds a validation error from a format string.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, or KindProcessing for untyped errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProcessing
}

// Retryable reports whether an error class is worth retrying. Validation
// failures are deterministic and never retried.
func Retryable(err error) bool {
	return KindOf(err) != KindValidation
}
