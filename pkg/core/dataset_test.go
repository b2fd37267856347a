package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset("people",
		TextColumn("id", "1", "2", "3"),
		TextColumn("age", "34", "", "51"),
		TextColumn("city", "Bogotá", "Lima", "NA"),
	)
	require.NoError(t, err)
	return ds
}

func TestNewDataset_ShapeInvariant(t *testing.T) {
	_, err := NewDataset("bad",
		TextColumn("a", "1", "2"),
		TextColumn("b", "1"),
	)
	require.Error(t, err)

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "b", shapeErr.Column)
	assert.Equal(t, 2, shapeErr.Want)
	assert.Equal(t, 1, shapeErr.Got)
}

func TestNewDataset_DuplicateColumn(t *testing.T) {
	_, err := NewDataset("dup", TextColumn("a", "1"), TextColumn("a", "2"))
	assert.Error(t, err)
}

func TestDataset_Accessors(t *testing.T) {
	ds := sample(t)

	rows, cols := ds.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []string{"id", "age", "city"}, ds.ColumnNames())
	assert.Equal(t, 1, ds.ColumnIndex("age"))
	assert.Equal(t, -1, ds.ColumnIndex("nope"))
	assert.Nil(t, ds.Column("nope"))
	assert.Equal(t, 1, ds.Column("age").MissingCount())

	v, ok := ds.At(0, "city")
	require.True(t, ok)
	assert.Equal(t, "Bogotá", v.String())
}

func TestDataset_SetColumnAndAppendRow(t *testing.T) {
	ds := sample(t)

	err := ds.SetColumn("age", []Value{Number(1)})
	assert.Error(t, err, "short column must be rejected")

	require.NoError(t, ds.SetColumn("score", []Value{Number(1), Number(2), Missing()}))
	assert.Equal(t, 4, ds.NumCols())

	require.NoError(t, ds.AppendRow([]Value{Text("4"), Number(20), Text("Quito"), Number(9)}))
	assert.Equal(t, 4, ds.NumRows())
	assert.Error(t, ds.AppendRow([]Value{Text("5")}))
}

func TestDataset_Transforms(t *testing.T) {
	ds := sample(t)

	head := ds.Head(2)
	assert.Equal(t, 2, head.NumRows())
	assert.Equal(t, 3, ds.NumRows(), "Head must not modify the source")

	sel := ds.SelectColumns("city", "id", "missing")
	assert.Equal(t, []string{"city", "id"}, sel.ColumnNames())
	assert.Equal(t, 3, sel.NumRows())

	dropped := ds.DropColumns("age")
	assert.Equal(t, []string{"id", "city"}, dropped.ColumnNames())

	filtered := ds.FilterRows(func(i int) bool {
		v, _ := ds.At(i, "age")
		return !v.IsMissing()
	})
	assert.Equal(t, 2, filtered.NumRows())

	none := ds.SelectColumns()
	assert.Equal(t, 0, none.NumCols())
}

func TestDataset_CloneAndEqual(t *testing.T) {
	ds := sample(t)
	clone := ds.Clone()
	assert.True(t, ds.Equal(clone))

	clone.Column("id").Values[0] = Text("changed")
	assert.False(t, ds.Equal(clone))
	assert.Equal(t, "1", ds.Column("id").Values[0].String())
}
