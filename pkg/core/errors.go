package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies stage failures.
type ErrorKind string

// Error kinds, one per failure class a stage can report.
const (
	KindNone         ErrorKind = ""
	KindPrecondition ErrorKind = "precondition"
	KindParameter    ErrorKind = "parameter"
	KindCollaborator ErrorKind = "collaborator"
	KindSnippet      ErrorKind = "snippet"
	KindInternal     ErrorKind = "internal"
)

// ErrNothingExtracted is returned by extractors that ran successfully but
// produced no datasets.
var ErrNothingExtracted = errors.New("no data was extracted")

// PreconditionError is returned when a stage runs without its required
// prior state. No mutation happened.
type PreconditionError struct {
	Stage   string
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: missing precondition: %s", e.Stage, e.Missing)
}

// ParamError is returned when an operator receives an empty or
// contradictory parameter combination. No dataset was touched.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// CollaboratorError wraps a failure of an external collaborator
// (extraction, standardization, layout parsing, translation, classification).
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// SnippetError describes a failure inside a sandboxed snippet. It is only
// ever rendered into captured diagnostics.
type SnippetError struct {
	Message   string
	Backtrace string
}

func (e *SnippetError) Error() string { return e.Message }

// Collaborator wraps err as a CollaboratorError unless it already is one.
func Collaborator(name string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: name, Err: err}
}

// Kind classifies err into one of the error kinds.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var (
		pe *PreconditionError
		qe *ParamError
		ce *CollaboratorError
		se *SnippetError
	)
	switch {
	case errors.As(err, &pe):
		return KindPrecondition
	case errors.As(err, &qe):
		return KindParameter
	case errors.As(err, &ce), errors.Is(err, ErrNothingExtracted):
		return KindCollaborator
	case errors.As(err, &se):
		return KindSnippet
	default:
		return KindInternal
	}
}
