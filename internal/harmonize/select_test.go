package harmonize

import (
	"testing"

	"github.com/harmonize-tools/s4h-workbench/internal/testutil"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectFixtures(t *testing.T) (*core.Dataset, *core.Dataset) {
	t.Helper()
	ds := testutil.Dataset(t, "survey", []string{"id", "age", "income"},
		[]string{"1", "20", "100"},
		[]string{"2", "30", "200"},
		[]string{"3", "40", "300"},
	)
	dict := testutil.Dictionary(t, []string{"id", "age", "income"}, map[string]string{
		"id":     "Identification",
		"age":    "Health",
		"income": "Business",
	})
	return ds, dict
}

func TestSelectData_CategoryOnly(t *testing.T) {
	ds, dict := selectFixtures(t)

	out, err := SelectData([]*core.Dataset{ds}, dict, core.SelectParams{Categories: []string{"Health"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"age"}, out[0].ColumnNames())
	assert.Equal(t, 3, out[0].NumRows())
}

func TestSelectData_CategoryMatchIsCaseInsensitive(t *testing.T) {
	ds, dict := selectFixtures(t)

	out, err := SelectData([]*core.Dataset{ds}, dict, core.SelectParams{Categories: []string{" health ", "BUSINESS"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, out[0].ColumnNames())
}

func TestSelectData_KeyFilter(t *testing.T) {
	ds, dict := selectFixtures(t)
	other := testutil.Dataset(t, "other", []string{"age"}, []string{"50"})

	out, err := SelectData([]*core.Dataset{ds, other}, dict, core.SelectParams{
		Categories: []string{"Health"},
		KeyColumn:  "id",
		KeyValues:  []string{"1", "3"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, []string{"id", "age"}, out[0].ColumnNames())
	assert.Equal(t, 2, out[0].NumRows())
	v, _ := out[0].At(1, "age")
	assert.Equal(t, "40", v.String())

	assert.Equal(t, 0, out[1].NumRows(), "dataset without the key column")
}

func TestSelectData_RejectsBadParams(t *testing.T) {
	ds, dict := selectFixtures(t)
	before := ds.Clone()

	tests := []struct {
		name   string
		params core.SelectParams
		param  string
	}{
		{"no categories", core.SelectParams{}, "categories"},
		{"key without values", core.SelectParams{Categories: []string{"Health"}, KeyColumn: "id"}, "key_values"},
		{"blank category", core.SelectParams{Categories: []string{""}}, "Categories[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := SelectData([]*core.Dataset{ds}, dict, tt.params)
			assert.Nil(t, out)
			var pe *core.ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.param, pe.Param)
		})
	}
	assert.True(t, before.Equal(ds))
}

func TestSelectData_RequiresClassifiedDictionary(t *testing.T) {
	ds, _ := selectFixtures(t)
	unclassified := testutil.Dataset(t, "dictionary", []string{core.FieldVariableName}, []string{"age"})

	_, err := SelectData([]*core.Dataset{ds}, unclassified, core.SelectParams{Categories: []string{"Health"}})
	assert.Equal(t, core.KindPrecondition, core.Kind(err))
}

func TestColumns(t *testing.T) {
	a := testutil.Dataset(t, "a", []string{"id", "age"})
	b := testutil.Dataset(t, "b", []string{"age", "sex", "id"})
	assert.Equal(t, []string{"id", "age", "sex"}, Columns([]*core.Dataset{a, b}))
	assert.Empty(t, Columns(nil))
}
