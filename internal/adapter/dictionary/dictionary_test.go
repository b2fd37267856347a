package dictionary

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/testutil"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Variable Name", "variable_name"},
		{"  Pregunta ", "pregunta"},
		{"Descripción", "descripcion"},
		{"Posición-Inicial", "posicion_inicial"},
		{"Tamaño (bytes)", "tamano_bytes"},
		{"already_snake", "already_snake"},
		{"???", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SnakeCase(tt.in), tt.in)
	}
}

func TestStandardize(t *testing.T) {
	raw := testutil.Dataset(t, "raw",
		[]string{"Nombre Variable", "Pregunta", "Respuestas", "Valor", "Notas"},
		[]string{"P01", "Edad", "", "", "n1"},
		[]string{"P02", "Sexo", "Hombre", "1", ""},
		[]string{"", "", "Mujer", "2", "n2"},
		[]string{"P03", "Ocupación", "", "", ""},
	)

	dict, err := NewStandardizer(testutil.NewTestLogger(t)).Standardize(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, []string{
		core.FieldVariableName, core.FieldQuestion, core.FieldPossibleAnswers, core.FieldValue, "notas",
	}, dict.ColumnNames())
	require.Equal(t, 3, dict.NumRows())

	v, _ := dict.At(1, core.FieldPossibleAnswers)
	assert.Equal(t, "Hombre; Mujer", v.String())
	v, _ = dict.At(1, core.FieldValue)
	assert.Equal(t, "1; 2", v.String())
	v, _ = dict.At(1, "notas")
	assert.Equal(t, "n2", v.String(), "first present value kept for other fields")
	v, _ = dict.At(0, core.FieldPossibleAnswers)
	assert.True(t, v.IsMissing())
	v, _ = dict.At(2, core.FieldVariableName)
	assert.Equal(t, "P03", v.String())
}

func TestStandardize_Errors(t *testing.T) {
	s := NewStandardizer(nil)

	_, err := s.Standardize(context.Background(), core.EmptyDataset("raw"))
	assert.Error(t, err)

	raw := testutil.Dataset(t, "raw", []string{"foo", "bar"}, []string{"1", "2"})
	_, err = s.Standardize(context.Background(), raw)
	var mv *MissingVariableError
	require.ErrorAs(t, err, &mv)
	assert.Equal(t, []string{"foo", "bar"}, mv.Headers)
}

func TestParseLayout(t *testing.T) {
	dict := testutil.Dataset(t, "dictionary",
		[]string{core.FieldVariableName, core.FieldInitialPosition, core.FieldSize},
		[]string{"id", "1", "3"},
		[]string{"age", "", "2"},
		[]string{"sex", "7", "1"},
	)

	layout, err := NewLayoutParser(nil).ParseLayout(context.Background(), dict)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "age", "sex"}, layout.Names)
	assert.Equal(t, []core.Span{{Start: 0, End: 3}, {Start: 3, End: 5}, {Start: 6, End: 7}}, layout.Specs)
}

func TestParseLayout_Malformed(t *testing.T) {
	p := NewLayoutParser(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		dict *core.Dataset
	}{
		{"no size field", testutil.Dataset(t, "d", []string{core.FieldVariableName}, []string{"a"})},
		{"text size", testutil.Dataset(t, "d", []string{core.FieldVariableName, core.FieldSize}, []string{"a", "wide"})},
		{"fractional size", testutil.Dataset(t, "d", []string{core.FieldVariableName, core.FieldSize}, []string{"a", "2.5"})},
		{"missing size", testutil.Dataset(t, "d", []string{core.FieldVariableName, core.FieldSize}, []string{"a", ""})},
		{"zero position", testutil.Dataset(t, "d",
			[]string{core.FieldVariableName, core.FieldInitialPosition, core.FieldSize}, []string{"a", "0", "2"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseLayout(ctx, tt.dict)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.csv")
	require.NoError(t, os.WriteFile(path, []byte("variable;pregunta\nP01;Edad\n"), 0o644))

	raw, err := Load(path, adapter.ParseOptions{Separator: ";"})
	require.NoError(t, err)
	assert.Equal(t, []string{"variable", "pregunta"}, raw.ColumnNames())

	_, err = Load(filepath.Join(dir, "dict.json"), adapter.ParseOptions{})
	assert.ErrorContains(t, err, "must be .csv or .xlsx")
}
