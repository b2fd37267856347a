package sandbox

import (
	"fmt"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// tableModule builds new datasets from snippet data.
var tableModule = &starlarkstruct.Module{
	Name: "table",
	Members: starlark.StringDict{
		"new":       starlark.NewBuiltin("table.new", tableNew),
		"from_rows": starlark.NewBuiltin("table.from_rows", tableFromRows),
	},
}

// tableNew implements table.new(columns, name="result") where columns maps
// column names to equally long lists.
func tableNew(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		columns *starlark.Dict
		name    = "result"
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns", &columns, "name?", &name); err != nil {
		return nil, err
	}

	cols := make([]*core.Column, 0, columns.Len())
	for _, item := range columns.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("%s: column names must be strings, got %s", b.Name(), item[0].Type())
		}
		it, ok := item[1].(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("%s: column %q: got %s, want list", b.Name(), key, item[1].Type())
		}
		values, err := valuesFrom(it)
		if err != nil {
			return nil, fmt.Errorf("%s: column %q: %w", b.Name(), key, err)
		}
		cols = append(cols, core.NewColumn(key, values...))
	}
	ds, err := core.NewDataset(name, cols...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewDataset(ds), nil
}

// tableFromRows implements table.from_rows(rows, name="result"). Columns
// appear in first-seen key order; absent keys are missing.
func tableFromRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		rows starlark.Iterable
		name = "result"
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "rows", &rows, "name?", &name); err != nil {
		return nil, err
	}

	var dicts []*starlark.Dict
	iter := rows.Iterate()
	defer iter.Done()
	var x starlark.Value
	for i := 0; iter.Next(&x); i++ {
		d, ok := x.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s: row %d: got %s, want dict", b.Name(), i, x.Type())
		}
		dicts = append(dicts, d)
	}

	var order []string
	seen := make(map[string]bool)
	for i, d := range dicts {
		for _, k := range d.Keys() {
			key, ok := starlark.AsString(k)
			if !ok {
				return nil, fmt.Errorf("%s: row %d: keys must be strings, got %s", b.Name(), i, k.Type())
			}
			if !seen[key] {
				seen[key] = true
				order = append(order, key)
			}
		}
	}

	ds := core.EmptyDataset(name, order...)
	for i, d := range dicts {
		row := make([]core.Value, len(order))
		for j, key := range order {
			v, found, err := d.Get(starlark.String(key))
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			if row[j], err = ValueFromStarlark(v); err != nil {
				return nil, fmt.Errorf("%s: row %d, column %q: %w", b.Name(), i, key, err)
			}
		}
		if err := ds.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return NewDataset(ds), nil
}
