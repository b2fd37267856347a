package testutil

import (
	"strconv"
	"testing"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"github.com/stretchr/testify/require"
)

// Dataset builds a dataset from a header and raw string rows, parsing each
// cell with core.ParseValue.
func Dataset(t testing.TB, name string, header []string, rows ...[]string) *core.Dataset {
	t.Helper()
	cols := make([]*core.Column, len(header))
	for j, h := range header {
		raw := make([]string, len(rows))
		for i, r := range rows {
			require.Len(t, r, len(header), "row %d width", i)
			raw[i] = r[j]
		}
		cols[j] = core.TextColumn(h, raw...)
	}
	ds, err := core.NewDataset(name, cols...)
	require.NoError(t, err)
	return ds
}

// Dictionary builds a classified dictionary with one row per variable.
// categories maps variable name to its category label.
func Dictionary(t testing.TB, vars []string, categories map[string]string) *core.Dataset {
	t.Helper()
	rows := make([][]string, len(vars))
	for i, v := range vars {
		rows[i] = []string{v, "question about " + v, categories[v]}
	}
	return Dataset(t, "dictionary", []string{core.FieldVariableName, core.FieldQuestion, core.FieldCategory}, rows...)
}

// Sequence builds a single-column dataset holding 1..n.
func Sequence(t testing.TB, name, column string, n int) *core.Dataset {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i + 1)}
	}
	return Dataset(t, name, []string{column}, rows...)
}
