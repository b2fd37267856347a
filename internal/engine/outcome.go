package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/internal/state"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Level is the severity of an outcome as shown to the user.
type Level string

// Outcome levels.
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Outcome is the user-visible result of one stage invocation.
type Outcome struct {
	Stage    stage.Stage    `json:"stage"`
	Level    Level          `json:"level"`
	Message  string         `json:"message"`
	Details  []string       `json:"details,omitempty"`
	Kind     core.ErrorKind `json:"kind,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Duration time.Duration  `json:"duration"`
	// Err is the underlying error, kept for callers that need errors.As.
	Err error `json:"-"`
}

// OK reports whether the stage succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) String() string {
	if len(o.Details) == 0 {
		return o.Message
	}
	return o.Message + "\n  " + strings.Join(o.Details, "\n  ")
}

func (o Outcome) status() state.Status {
	switch o.Kind {
	case core.KindNone:
		return state.StatusSuccess
	case core.KindPrecondition, core.KindParameter:
		return state.StatusRejected
	default:
		return state.StatusFailed
	}
}

// failure converts any stage error into an outcome.
func failure(st stage.Stage, err error) Outcome {
	kind := core.Kind(err)
	out := Outcome{Stage: st, Kind: kind, Err: err}

	var (
		pe *core.PreconditionError
		qe *core.ParamError
		ce *core.CollaboratorError
	)
	switch {
	case errors.As(err, &pe):
		out.Level = LevelWarning
		out.Message = fmt.Sprintf("Cannot run %s yet: %s is required.", st, pe.Missing)
	case errors.As(err, &qe):
		out.Level = LevelWarning
		out.Message = fmt.Sprintf("Invalid %s: %s.", qe.Param, qe.Reason)
	case errors.Is(err, core.ErrNothingExtracted):
		out.Level = LevelWarning
		out.Message = "No data was extracted."
	case errors.As(err, &ce):
		out.Level = LevelError
		out.Message = fmt.Sprintf("%s failed: %v", capitalize(ce.Collaborator), ce.Err)
	default:
		out.Level = LevelError
		out.Message = fmt.Sprintf("%s failed: %v", capitalize(string(st)), err)
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
