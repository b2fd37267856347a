package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetValue(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"column index", `print(dataframes[0]["age"])`, "[20, None, 40]\n"},
		{"row index", `print(dataframes[0][-1]["sex"])`, "F\n"},
		{"membership", `print("age" in dataframes[0], "zzz" in dataframes[0])`, "True False\n"},
		{"attributes", `df = dataframes[0]
print(df.name, df.nrows, df.ncols, df.shape, df.columns)`, "survey 3 3 (3, 3) [\"id\", \"age\", \"sex\"]\n"},
		{"select", `print(dataframes[0].select("sex", "id").columns)`, "[\"sex\", \"id\"]\n"},
		{"drop", `print(dataframes[0].drop("sex").columns)`, "[\"id\", \"age\"]\n"},
		{"filter", `print(len(dataframes[0].filter(lambda r: r["sex"] == "F")))`, "2\n"},
		{"rows", `print([r["id"] for r in dataframes[0].rows()])`, "[1, 2, 3]\n"},
		{"value counts", `print(dataframes[0].value_counts("sex"))`, "{\"F\": 2, \"M\": 1}\n"},
		{"fillna", `print(dataframes[0].fillna(0).col("age"))`, "[20, 0, 40]\n"},
		{"fillna copies", `dataframes[0].fillna(0)
print(dataframes[0].col("age"))`, "[20, None, 40]\n"},
		{"type", `print(type(dataframes[0]))`, "dataset\n"},
		{"set list", `df = dataframes[0]
df.set("age2", [1, 2, 3])
print(df["age2"])`, "[1, 2, 3]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, tt.code, surveyEnv(t))
			require.False(t, out.Failed(), out.Stderr)
			assert.Equal(t, tt.want, out.Stdout)
		})
	}
}

func TestDatasetValue_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown column", `dataframes[0]["nope"]`, "nope"},
		{"unknown select", `dataframes[0].select("nope")`, `no column "nope"`},
		{"set wrong length", `dataframes[0].set("x", [1])`, "column \"x\" has 1 rows, want 3"},
		{"set unsupported value", `dataframes[0].set("x", [[1], [2], [3]])`, "cannot store list"},
		{"unhashable", `{dataframes[0]: 1}`, "unhashable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, tt.code, surveyEnv(t))
			require.True(t, out.Failed())
			assert.Contains(t, out.Stderr, tt.want)
		})
	}
}

func TestTableModule(t *testing.T) {
	out := run(t, `result = table.new({"a": [1, 2], "b": ["x", None]}, name="built")`, Environment{})
	require.False(t, out.Failed(), out.Stderr)
	require.NotNil(t, out.Result)
	assert.Equal(t, "built", out.Result.Name())
	assert.Equal(t, []string{"a", "b"}, out.Result.ColumnNames())
	v, _ := out.Result.At(1, "b")
	assert.True(t, v.IsMissing())

	out = run(t, `result = table.from_rows([{"a": 1}, {"b": "y", "a": 2}])`, Environment{})
	require.False(t, out.Failed(), out.Stderr)
	assert.Equal(t, []string{"a", "b"}, out.Result.ColumnNames())
	assert.Equal(t, 2, out.Result.NumRows())
	v, _ = out.Result.At(0, "b")
	assert.True(t, v.IsMissing())

	out = run(t, `table.new({"a": [1], "b": [1, 2]})`, Environment{})
	assert.True(t, out.Failed())
}
