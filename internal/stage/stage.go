// Package stage defines the workspace stages and the gate that checks their
// preconditions against the session store before any action runs.
package stage

import (
	"fmt"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/internal/workspace"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Stage names a step of the workspace.
type Stage string

// Stages in the order a user typically walks through them.
const (
	Standardize Stage = "standardize"
	Layout      Stage = "layout"
	Extract     Stage = "extract"
	Prune       Stage = "prune"
	Merge       Stage = "merge"
	Translate   Stage = "translate"
	Classify    Stage = "classify"
	Select      Stage = "select"
	Explore     Stage = "explore"
	Export      Stage = "export"
)

// All lists every stage in walk order.
var All = []Stage{Standardize, Layout, Extract, Prune, Merge, Translate, Classify, Select, Explore, Export}

// Requirement is one piece of prior state a stage needs.
type Requirement int

// Requirements a stage may declare.
const (
	NeedDictionary Requirement = iota + 1
	NeedDatasets
)

func (r Requirement) String() string {
	switch r {
	case NeedDictionary:
		return "an active dictionary"
	case NeedDatasets:
		return "at least one loaded dataset"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

var harmonization = []Requirement{NeedDatasets, NeedDictionary}

var requirements = map[Stage][]Requirement{
	Standardize: nil,
	Extract:     nil,
	Explore:     nil,
	Layout:      {NeedDictionary},
	Prune:       harmonization,
	Merge:       harmonization,
	Translate:   harmonization,
	Classify:    harmonization,
	Select:      harmonization,
}

// Parse resolves a stage name.
func Parse(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All {
		if s == known {
			return s, nil
		}
	}
	return "", &UnknownStageError{Name: name}
}

// UnknownStageError is returned for stage names that do not exist.
type UnknownStageError struct {
	Name string
}

func (e *UnknownStageError) Error() string {
	names := make([]string, len(All))
	for i, s := range All {
		names[i] = string(s)
	}
	return fmt.Sprintf("unknown stage %q (available: %s)", e.Name, strings.Join(names, ", "))
}

// Requirements returns what a stage needs before it can run. Export has
// target-dependent requirements and is checked with CheckExport.
func Requirements(s Stage) []Requirement {
	return requirements[s]
}

// Check evaluates the preconditions of s against the store. It never
// mutates the store.
func Check(s Stage, store *workspace.Store) error {
	for _, req := range requirements[s] {
		if !satisfied(req, store) {
			return &core.PreconditionError{Stage: string(s), Missing: req.String()}
		}
	}
	return nil
}

// ExportTarget is what an export writes.
type ExportTarget string

// Export targets.
const (
	ExportDatasets   ExportTarget = "datasets"
	ExportDictionary ExportTarget = "dictionary"
	ExportResult     ExportTarget = "result"
)

// CheckExport verifies there is something to export for target.
func CheckExport(target ExportTarget, store *workspace.Store) error {
	var req Requirement
	switch target {
	case ExportDatasets:
		req = NeedDatasets
	case ExportDictionary:
		req = NeedDictionary
	case ExportResult:
		return nil
	default:
		return &core.ParamError{Param: "target", Reason: fmt.Sprintf("unknown export target %q", target)}
	}
	if !satisfied(req, store) {
		return &core.PreconditionError{Stage: string(Export), Missing: req.String()}
	}
	return nil
}

func satisfied(req Requirement, store *workspace.Store) bool {
	switch req {
	case NeedDictionary:
		return store.HasDictionary()
	case NeedDatasets:
		return store.Len() > 0
	default:
		return false
	}
}
