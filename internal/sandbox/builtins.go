package sandbox

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// BuiltinsVersion identifies the allow-list below. Bump it whenever a name
// is added or removed so stored snippets can be checked against it.
const BuiltinsVersion = "1"

// Allowed lists every builtin name a snippet may call, in addition to the
// bound names dataframes, session and table.
var Allowed = []string{
	"abs", "all", "any", "bool", "dict", "enumerate", "filter", "float",
	"getattr", "hasattr", "int", "len", "list", "map", "max", "min",
	"print", "range", "reversed", "round", "set", "sorted", "str", "sum",
	"tuple", "type", "zip",
}

// extraBuiltins are allowed names Starlark does not provide itself.
var extraBuiltins = map[string]*starlark.Builtin{
	"sum":    starlark.NewBuiltin("sum", builtinSum),
	"map":    starlark.NewBuiltin("map", builtinMap),
	"filter": starlark.NewBuiltin("filter", builtinFilter),
	"round":  starlark.NewBuiltin("round", builtinRound),
}

// Predeclared returns the builtin environment for a snippet: allowed
// functions, plus a failing stub for every Starlark universe function that
// is not allowed, so that such names resolve but cannot be used.
func Predeclared() starlark.StringDict {
	globals := make(starlark.StringDict, len(starlark.Universe)+len(extraBuiltins))
	for name, v := range starlark.Universe {
		if _, isFunc := v.(*starlark.Builtin); !isFunc {
			continue
		}
		if !slices.Contains(Allowed, name) {
			globals[name] = unavailable(name)
		}
	}
	for name, b := range extraBuiltins {
		globals[name] = b
	}
	globals["table"] = tableModule
	return globals
}

// Disallowed returns the sorted names that are stubbed out.
func Disallowed() []string {
	var names []string
	for name, v := range starlark.Universe {
		if _, isFunc := v.(*starlark.Builtin); isFunc && !slices.Contains(Allowed, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func unavailable(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("name %s is not available in the sandbox", name)
	})
}

// builtinSum implements sum(iterable, start=0).
func builtinSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		it    starlark.Iterable
		start starlark.Value = starlark.MakeInt(0)
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &it, "start?", &start); err != nil {
		return nil, err
	}
	acc := start
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		next, err := starlark.Binary(syntax.PLUS, acc, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		acc = next
	}
	return acc, nil
}

// builtinMap implements map(fn, iterable) and returns a list.
func builtinMap(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn starlark.Callable
		it starlark.Iterable
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &fn, &it); err != nil {
		return nil, err
	}
	var out []starlark.Value
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		y, err := starlark.Call(thread, fn, starlark.Tuple{x}, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return starlark.NewList(out), nil
}

// builtinFilter implements filter(fn, iterable). A None fn keeps truthy
// elements.
func builtinFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn starlark.Value
		it starlark.Iterable
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &fn, &it); err != nil {
		return nil, err
	}
	callable, isCallable := fn.(starlark.Callable)
	if fn != starlark.None && !isCallable {
		return nil, fmt.Errorf("%s: got %s, want callable or None", b.Name(), fn.Type())
	}

	var out []starlark.Value
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		keep := x.Truth()
		if isCallable {
			y, err := starlark.Call(thread, callable, starlark.Tuple{x}, nil)
			if err != nil {
				return nil, err
			}
			keep = y.Truth()
		}
		if keep {
			out = append(out, x)
		}
	}
	return starlark.NewList(out), nil
}

// builtinRound implements round(x, ndigits=None) with round-half-even.
// Without ndigits the result is an int.
func builtinRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x       starlark.Value
		ndigits starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), x.Type())
	}
	if ndigits == starlark.None {
		if i, isInt := x.(starlark.Int); isInt {
			return i, nil
		}
		r := math.RoundToEven(f)
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return nil, fmt.Errorf("%s: cannot convert %v to int", b.Name(), f)
		}
		return starlark.NumberToInt(starlark.Float(r))
	}
	var n int
	if err := starlark.AsInt(ndigits, &n); err != nil {
		return nil, fmt.Errorf("%s: ndigits: %w", b.Name(), err)
	}
	scale := math.Pow(10, float64(n))
	switch {
	case scale == 0:
		return starlark.Float(0), nil
	case math.IsInf(scale, 0) || math.IsInf(f*scale, 0):
		return starlark.Float(f), nil
	}
	return starlark.Float(math.RoundToEven(f*scale) / scale), nil
}
