package sandbox

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"go.starlark.net/starlark"
)

// Dataset exposes a *core.Dataset to snippets as the "dataset" type.
//
// Reads copy cells into fresh Starlark values. set() writes through to the
// wrapped dataset, so the change is visible to the host after execution.
// Methods that reshape (head, select, filter, drop, fillna) return new
// datasets.
type Dataset struct {
	ds     *core.Dataset
	frozen bool
}

var (
	_ starlark.Value     = (*Dataset)(nil)
	_ starlark.HasAttrs  = (*Dataset)(nil)
	_ starlark.Mapping   = (*Dataset)(nil)
	_ starlark.Indexable = (*Dataset)(nil)
)

// NewDataset wraps ds.
func NewDataset(ds *core.Dataset) *Dataset {
	return &Dataset{ds: ds}
}

// Unwrap returns the wrapped dataset.
func (d *Dataset) Unwrap() *core.Dataset { return d.ds }

func (d *Dataset) String() string {
	return fmt.Sprintf("<dataset %q %d x %d>", d.ds.Name(), d.ds.NumRows(), d.ds.NumCols())
}

func (d *Dataset) Type() string { return "dataset" }

func (d *Dataset) Freeze() { d.frozen = true }

func (d *Dataset) Truth() starlark.Bool { return d.ds.NumCols() > 0 }

func (d *Dataset) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: dataset")
}

// Len returns the row count.
func (d *Dataset) Len() int { return d.ds.NumRows() }

// Index returns row i as a dict.
func (d *Dataset) Index(i int) starlark.Value { return d.row(i) }

// Get implements df["col"] (a list) and df[i] (a row dict).
func (d *Dataset) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch key := k.(type) {
	case starlark.String:
		c := d.ds.Column(string(key))
		if c == nil {
			return nil, false, nil
		}
		return columnList(c), true, nil
	case starlark.Int:
		i, ok := key.Int64()
		n := int64(d.ds.NumRows())
		if ok && i < 0 {
			i += n
		}
		if !ok || i < 0 || i >= n {
			return nil, false, nil
		}
		return d.row(int(i)), true, nil
	default:
		return nil, false, fmt.Errorf("dataset index must be string or int, got %s", k.Type())
	}
}

func (d *Dataset) row(i int) *starlark.Dict {
	dict := starlark.NewDict(d.ds.NumCols())
	for _, c := range d.ds.Columns() {
		_ = dict.SetKey(starlark.String(c.Name), ValueToStarlark(c.Values[i]))
	}
	return dict
}

func (d *Dataset) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(d.ds.Name()), nil
	case "columns":
		names := d.ds.ColumnNames()
		elems := make([]starlark.Value, len(names))
		for i, n := range names {
			elems[i] = starlark.String(n)
		}
		return starlark.NewList(elems), nil
	case "nrows":
		return starlark.MakeInt(d.ds.NumRows()), nil
	case "ncols":
		return starlark.MakeInt(d.ds.NumCols()), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(d.ds.NumRows()), starlark.MakeInt(d.ds.NumCols())}, nil
	}
	if m, ok := datasetMethods[name]; ok {
		return m.BindReceiver(d), nil
	}
	return nil, nil
}

func (d *Dataset) AttrNames() []string {
	names := []string{"columns", "name", "ncols", "nrows", "shape"}
	for m := range datasetMethods {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

var datasetMethods = map[string]*starlark.Builtin{
	"head":         starlark.NewBuiltin("head", datasetHead),
	"col":          starlark.NewBuiltin("col", datasetCol),
	"select":       starlark.NewBuiltin("select", datasetSelect),
	"filter":       starlark.NewBuiltin("filter", datasetFilter),
	"rows":         starlark.NewBuiltin("rows", datasetRows),
	"value_counts": starlark.NewBuiltin("value_counts", datasetValueCounts),
	"set":          starlark.NewBuiltin("set", datasetSet),
	"drop":         starlark.NewBuiltin("drop", datasetDrop),
	"fillna":       starlark.NewBuiltin("fillna", datasetFillNA),
}

func receiver(b *starlark.Builtin) *Dataset {
	return b.Receiver().(*Dataset)
}

func datasetHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return NewDataset(receiver(b).ds.Head(n)), nil
}

func datasetCol(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	c, err := receiver(b).column(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return columnList(c), nil
}

func datasetSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	names, err := stringArgs(b.Name(), args)
	if err != nil {
		return nil, err
	}
	d := receiver(b)
	for _, n := range names {
		if _, err := d.column(n); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	return NewDataset(d.ds.SelectColumns(names...)), nil
}

func datasetDrop(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	names, err := stringArgs(b.Name(), args)
	if err != nil {
		return nil, err
	}
	return NewDataset(receiver(b).ds.DropColumns(names...)), nil
}

func datasetFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fn); err != nil {
		return nil, err
	}
	d := receiver(b)
	var callErr error
	out := d.ds.FilterRows(func(i int) bool {
		if callErr != nil {
			return false
		}
		v, err := starlark.Call(thread, fn, starlark.Tuple{d.row(i)}, nil)
		if err != nil {
			callErr = err
			return false
		}
		return bool(v.Truth())
	})
	if callErr != nil {
		return nil, callErr
	}
	return NewDataset(out), nil
}

func datasetRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	d := receiver(b)
	rows := make([]starlark.Value, d.ds.NumRows())
	for i := range rows {
		rows[i] = d.row(i)
	}
	return starlark.NewList(rows), nil
}

// datasetValueCounts returns a dict of value to count, most frequent first;
// equal counts keep first-seen order.
func datasetValueCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	c, err := receiver(b).column(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	type entry struct {
		key   core.Value
		count int
	}
	var entries []*entry
	for _, v := range c.Values {
		i := slices.IndexFunc(entries, func(e *entry) bool { return e.key.Equal(v) })
		if i < 0 {
			entries = append(entries, &entry{key: v})
			i = len(entries) - 1
		}
		entries[i].count++
	}
	slices.SortStableFunc(entries, func(a, b *entry) int { return cmp.Compare(b.count, a.count) })

	dict := starlark.NewDict(len(entries))
	for _, e := range entries {
		if err := dict.SetKey(ValueToStarlark(e.key), starlark.MakeInt(e.count)); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

// datasetSet replaces or adds a column in place. values is either an
// iterable with one entry per row or a scalar broadcast to every row.
func datasetSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name   string
		values starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &name, &values); err != nil {
		return nil, err
	}
	d := receiver(b)
	if d.frozen {
		return nil, fmt.Errorf("%s: cannot modify frozen dataset", b.Name())
	}

	var cells []core.Value
	if it, ok := values.(starlark.Iterable); ok {
		var err error
		if cells, err = valuesFrom(it); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	} else {
		v, err := ValueFromStarlark(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		cells = make([]core.Value, d.ds.NumRows())
		for i := range cells {
			cells[i] = v
		}
	}
	if cells == nil {
		cells = []core.Value{}
	}
	if err := d.ds.SetColumn(name, cells); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

func datasetFillNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fill starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fill); err != nil {
		return nil, err
	}
	v, err := ValueFromStarlark(fill)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	out := receiver(b).ds.Clone()
	for _, c := range out.Columns() {
		for i := range c.Values {
			if c.Values[i].IsMissing() {
				c.Values[i] = v
			}
		}
	}
	return NewDataset(out), nil
}

func (d *Dataset) column(name string) (*core.Column, error) {
	c := d.ds.Column(name)
	if c == nil {
		return nil, fmt.Errorf("no column %q in dataset %q", name, d.ds.Name())
	}
	return c, nil
}

func stringArgs(fnname string, args starlark.Tuple) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d must be a string, got %s", fnname, i+1, a.Type())
		}
		out[i] = s
	}
	return out, nil
}
