package core

import (
	"fmt"
)

// Column is a named sequence of values.
type Column struct {
	Name   string
	Values []Value
}

// NewColumn creates a column from the given values.
func NewColumn(name string, values ...Value) *Column {
	return &Column{Name: name, Values: values}
}

// TextColumn creates a column by parsing raw string cells with ParseValue.
func TextColumn(name string, raw ...string) *Column {
	values := make([]Value, len(raw))
	for i, s := range raw {
		values[i] = ParseValue(s)
	}
	return &Column{Name: name, Values: values}
}

// Len returns the number of values in the column.
func (c *Column) Len() int { return len(c.Values) }

// MissingCount returns how many values are missing.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	values := make([]Value, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Values: values}
}

// Dataset is a named two-dimensional table: an ordered sequence of
// uniquely named columns that all hold the same number of rows.
type Dataset struct {
	name  string
	cols  []*Column
	index map[string]int
	rows  int
}

// ShapeError is returned when a column length does not match the row count
// of the dataset it is added to.
type ShapeError struct {
	Dataset string
	Column  string
	Want    int
	Got     int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("dataset %q: column %q has %d rows, want %d", e.Dataset, e.Column, e.Got, e.Want)
}

// NewDataset creates a dataset from columns. All columns must have the
// same length and unique names.
func NewDataset(name string, cols ...*Column) (*Dataset, error) {
	ds := &Dataset{name: name, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			ds.rows = c.Len()
		}
		if err := ds.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// MustDataset is like NewDataset but panics on error. Intended for tests
// and literals.
func MustDataset(name string, cols ...*Column) *Dataset {
	ds, err := NewDataset(name, cols...)
	if err != nil {
		panic(err)
	}
	return ds
}

// EmptyDataset creates a dataset with the given column names and no rows.
func EmptyDataset(name string, columns ...string) *Dataset {
	ds := &Dataset{name: name, index: make(map[string]int, len(columns))}
	for _, c := range columns {
		_ = ds.AddColumn(&Column{Name: c})
	}
	return ds
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// SetName renames the dataset.
func (d *Dataset) SetName(name string) { d.name = name }

// NumRows returns the row count shared by every column.
func (d *Dataset) NumRows() int { return d.rows }

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int { return len(d.cols) }

// Columns returns the columns in order. The slice is owned by the dataset.
func (d *Dataset) Columns() []*Column { return d.cols }

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of a column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Column returns the named column, or nil.
func (d *Dataset) Column(name string) *Column {
	if i, ok := d.index[name]; ok {
		return d.cols[i]
	}
	return nil
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// AddColumn appends a column. The first column of an empty dataset sets
// the row count.
func (d *Dataset) AddColumn(c *Column) error {
	if _, dup := d.index[c.Name]; dup {
		return fmt.Errorf("dataset %q: duplicate column %q", d.name, c.Name)
	}
	if len(d.cols) == 0 {
		d.rows = c.Len()
	} else if c.Len() != d.rows {
		return &ShapeError{Dataset: d.name, Column: c.Name, Want: d.rows, Got: c.Len()}
	}
	d.index[c.Name] = len(d.cols)
	d.cols = append(d.cols, c)
	return nil
}

// SetColumn replaces the values of an existing column or appends a new one.
func (d *Dataset) SetColumn(name string, values []Value) error {
	if len(d.cols) > 0 && len(values) != d.rows {
		return &ShapeError{Dataset: d.name, Column: name, Want: d.rows, Got: len(values)}
	}
	if i, ok := d.index[name]; ok {
		d.cols[i].Values = values
		return nil
	}
	return d.AddColumn(&Column{Name: name, Values: values})
}

// AppendRow appends one row. The row must have one value per column.
func (d *Dataset) AppendRow(row []Value) error {
	if len(row) != len(d.cols) {
		return fmt.Errorf("dataset %q: row has %d values, want %d", d.name, len(row), len(d.cols))
	}
	for i, c := range d.cols {
		c.Values = append(c.Values, row[i])
	}
	d.rows++
	return nil
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.cols))
	for j, c := range d.cols {
		row[j] = c.Values[i]
	}
	return row
}

// At returns the value at row i of the named column.
func (d *Dataset) At(i int, name string) (Value, bool) {
	c := d.Column(name)
	if c == nil || i < 0 || i >= d.rows {
		return Missing(), false
	}
	return c.Values[i], true
}

// Head returns a copy holding at most the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 || n > d.rows {
		n = d.rows
	}
	out := &Dataset{name: d.name, index: make(map[string]int, len(d.cols)), rows: n}
	for _, c := range d.cols {
		values := make([]Value, n)
		copy(values, c.Values[:n])
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Values: values})
	}
	return out
}

// SelectColumns returns a copy with only the named columns, in the given
// order. Unknown names are skipped.
func (d *Dataset) SelectColumns(names ...string) *Dataset {
	out := &Dataset{name: d.name, index: make(map[string]int, len(names)), rows: d.rows}
	for _, name := range names {
		c := d.Column(name)
		if c == nil {
			continue
		}
		if _, dup := out.index[name]; dup {
			continue
		}
		out.index[name] = len(out.cols)
		out.cols = append(out.cols, c.Clone())
	}
	return out
}

// DropColumns returns a copy without the named columns.
func (d *Dataset) DropColumns(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]string, 0, len(d.cols))
	for _, c := range d.cols {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return d.SelectColumns(keep...)
}

// FilterRows returns a copy holding the rows for which keep returns true.
func (d *Dataset) FilterRows(keep func(i int) bool) *Dataset {
	var idx []int
	for i := 0; i < d.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := &Dataset{name: d.name, index: make(map[string]int, len(d.cols)), rows: len(idx)}
	for _, c := range d.cols {
		values := make([]Value, len(idx))
		for j, i := range idx {
			values[j] = c.Values[i]
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, &Column{Name: c.Name, Values: values})
	}
	return out
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{name: d.name, index: make(map[string]int, len(d.cols)), rows: d.rows}
	for _, c := range d.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.Clone())
	}
	return out
}

// Equal reports whether both datasets have the same columns, in the same
// order, with identical cells. Names are not compared.
func (d *Dataset) Equal(o *Dataset) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.rows != o.rows || len(d.cols) != len(o.cols) {
		return false
	}
	for i, c := range d.cols {
		oc := o.cols[i]
		if c.Name != oc.Name {
			return false
		}
		for r := range c.Values {
			if !c.Values[r].Equal(oc.Values[r]) {
				return false
			}
		}
	}
	return true
}

// Shape returns rows and columns.
func (d *Dataset) Shape() (rows, cols int) { return d.rows, len(d.cols) }

// String returns a short description for logs.
func (d *Dataset) String() string {
	return fmt.Sprintf("%s (%d rows, %d columns)", d.name, d.rows, len(d.cols))
}
