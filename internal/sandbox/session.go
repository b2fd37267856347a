package sandbox

import (
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// SessionInfo is the read-only view of the session a snippet receives as
// the "session" global.
type SessionInfo struct {
	Dictionary *core.Dataset
	FixedWidth bool
	Layout     *core.Layout
}

// Environment is what a snippet runs against.
type Environment struct {
	Datasets []*core.Dataset
	Session  SessionInfo
}

// toStarlark converts the session view to a Starlark struct.
func (s SessionInfo) toStarlark(datasetCount int) starlark.Value {
	var dict starlark.Value = starlark.None
	if s.Dictionary != nil {
		d := NewDataset(s.Dictionary)
		d.Freeze()
		dict = d
	}
	var layout starlark.Value = starlark.None
	if s.Layout != nil {
		names := make([]starlark.Value, len(s.Layout.Names))
		for i, n := range s.Layout.Names {
			names[i] = starlark.String(n)
		}
		layout = starlark.NewList(names)
	}
	return starlarkstruct.FromStringDict(starlark.String("session"), starlark.StringDict{
		"dataset_count":  starlark.MakeInt(datasetCount),
		"has_dictionary": starlark.Bool(s.Dictionary != nil),
		"dictionary":     dict,
		"is_fixed_width": starlark.Bool(s.FixedWidth),
		"layout":         layout,
	})
}

// globals binds the environment on top of the builtin environment.
func (env Environment) globals() starlark.StringDict {
	g := Predeclared()
	frames := make([]starlark.Value, len(env.Datasets))
	for i, ds := range env.Datasets {
		frames[i] = NewDataset(ds)
	}
	g["dataframes"] = starlark.NewList(frames)
	g["session"] = env.Session.toStarlark(len(env.Datasets))
	return g
}
