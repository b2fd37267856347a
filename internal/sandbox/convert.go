package sandbox

import (
	"fmt"
	"math"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"go.starlark.net/starlark"
)

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// ValueToStarlark converts a cell to a Starlark value. Missing becomes
// None; integral numbers become int.
func ValueToStarlark(v core.Value) starlark.Value {
	switch v.Kind() {
	case core.KindNumber:
		f, _ := v.Float()
		if f == math.Trunc(f) && math.Abs(f) < maxExactInt {
			return starlark.MakeInt64(int64(f))
		}
		return starlark.Float(f)
	case core.KindText:
		s, _ := v.Str()
		return starlark.String(s)
	default:
		return starlark.None
	}
}

// ValueFromStarlark converts a Starlark scalar back to a cell. Strings are
// kept as text without number parsing.
func ValueFromStarlark(v starlark.Value) (core.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return core.Missing(), nil
	case starlark.Int:
		f, _ := starlark.AsFloat(val)
		return core.Number(f), nil
	case starlark.Float:
		return core.Number(float64(val)), nil
	case starlark.Bool:
		if val {
			return core.Number(1), nil
		}
		return core.Number(0), nil
	case starlark.String:
		return core.Text(string(val)), nil
	default:
		return core.Value{}, fmt.Errorf("cannot store %s in a dataset cell", v.Type())
	}
}

// columnList returns a new Starlark list holding the values of c.
func columnList(c *core.Column) *starlark.List {
	elems := make([]starlark.Value, len(c.Values))
	for i, v := range c.Values {
		elems[i] = ValueToStarlark(v)
	}
	return starlark.NewList(elems)
}

// valuesFrom converts an iterable of scalars into cells.
func valuesFrom(it starlark.Iterable) ([]core.Value, error) {
	var out []core.Value
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for i := 0; iter.Next(&x); i++ {
		v, err := ValueFromStarlark(x)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
