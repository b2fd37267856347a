package dictionary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Aliases maps each canonical field to the header spellings recognized for
// it, compared after SnakeCase.
var Aliases = map[string][]string{
	core.FieldVariableName: {
		"variable_name", "variable", "var", "var_name", "name", "nombre_variable",
		"nombre", "codigo", "codigo_variable", "code", "column", "variavel", "nome_variavel",
	},
	core.FieldQuestion: {
		"question", "pregunta", "pergunta", "label", "etiqueta", "enunciado", "rotulo",
	},
	core.FieldDescription: {
		"description", "descripcion", "descricao", "desc", "detalle",
	},
	core.FieldPossibleAnswers: {
		"possible_answers", "answers", "respuestas", "categorias", "categories",
		"options", "opciones", "value_labels", "etiquetas_valor",
	},
	core.FieldValue: {
		"value", "valor", "values", "valores", "code_value",
	},
	core.FieldInitialPosition: {
		"initial_position", "start", "inicio", "posicion_inicial", "posicion", "position", "pos",
	},
	core.FieldSize: {
		"size", "width", "length", "longitud", "tamano", "tamanho", "ancho",
	},
}

// canonicalOrder is the column order of a standardized dictionary.
var canonicalOrder = []string{
	core.FieldVariableName, core.FieldQuestion, core.FieldDescription,
	core.FieldPossibleAnswers, core.FieldValue, core.FieldInitialPosition, core.FieldSize,
}

// answerSeparator joins multi-row answer lists into one cell.
const answerSeparator = "; "

// Standardizer maps raw dictionary headers onto the canonical fields,
// fills the variable name down over continuation rows, and collapses each
// variable into one row.
type Standardizer struct {
	logger *slog.Logger
}

// NewStandardizer creates a standardizer. A nil logger discards output.
func NewStandardizer(logger *slog.Logger) *Standardizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Standardizer{logger: logger}
}

// MissingVariableError is returned when no header maps to variable_name.
type MissingVariableError struct {
	Headers []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("no variable name column found among %v\nHint: name it one of %v",
		e.Headers, Aliases[core.FieldVariableName])
}

// Standardize implements adapter.Standardizer.
func (s *Standardizer) Standardize(ctx context.Context, raw *core.Dataset) (*core.Dataset, error) {
	if core.IsEmpty(raw) {
		return nil, fmt.Errorf("dictionary is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mapping := mapHeaders(raw.ColumnNames())
	varCol := ""
	for src, dst := range mapping {
		if dst == core.FieldVariableName {
			varCol = src
		}
	}
	if varCol == "" {
		return nil, &MissingVariableError{Headers: raw.ColumnNames()}
	}

	// Output columns: canonical fields present, then the other headers.
	var fields []string
	source := make(map[string]string)
	for _, f := range canonicalOrder {
		for src, dst := range mapping {
			if dst == f {
				fields = append(fields, f)
				source[f] = src
			}
		}
	}
	for _, h := range raw.ColumnNames() {
		if _, mapped := mapping[h]; mapped {
			continue
		}
		name := SnakeCase(h)
		if name == "" || slices.Contains(fields, name) {
			continue
		}
		fields = append(fields, name)
		source[name] = h
	}

	groups := groupRows(raw, varCol)
	out := core.EmptyDataset("dictionary", fields...)
	for _, g := range groups {
		row := make([]core.Value, len(fields))
		for j, f := range fields {
			col := raw.Column(source[f])
			row[j] = collapse(f, col, g.rows)
		}
		row[0] = core.Text(g.name)
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("dictionary standardized",
		slog.Int("raw_rows", raw.NumRows()),
		slog.Int("variables", out.NumRows()),
		slog.Any("fields", fields))
	return out, nil
}

type variableGroup struct {
	name string
	rows []int
}

// groupRows fills the variable name down and groups rows per variable in
// first-seen order. Rows before the first named variable are dropped.
func groupRows(raw *core.Dataset, varCol string) []*variableGroup {
	col := raw.Column(varCol)
	var groups []*variableGroup
	index := make(map[string]*variableGroup)
	current := ""
	for i, v := range col.Values {
		if !v.IsMissing() {
			current = strings.TrimSpace(v.String())
		}
		if current == "" {
			continue
		}
		g, ok := index[current]
		if !ok {
			g = &variableGroup{name: current}
			index[current] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, i)
	}
	return groups
}

// collapse reduces the cells of one variable to a single value. Answer
// lists are joined; every other field keeps its first non-missing value.
func collapse(field string, col *core.Column, rows []int) core.Value {
	if field != core.FieldPossibleAnswers && field != core.FieldValue {
		for _, r := range rows {
			if v := col.Values[r]; !v.IsMissing() {
				return v
			}
		}
		return core.Missing()
	}

	var parts []string
	for _, r := range rows {
		v := col.Values[r]
		if v.IsMissing() {
			continue
		}
		if s := v.String(); !slices.Contains(parts, s) {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return core.Missing()
	case 1:
		return col.Values[firstPresent(col, rows)]
	default:
		return core.Text(strings.Join(parts, answerSeparator))
	}
}

func firstPresent(col *core.Column, rows []int) int {
	for _, r := range rows {
		if !col.Values[r].IsMissing() {
			return r
		}
	}
	return rows[0]
}

// mapHeaders maps raw header names to canonical fields. The first header
// matching a field wins.
func mapHeaders(headers []string) map[string]string {
	lookup := make(map[string]string)
	for field, aliases := range Aliases {
		for _, a := range aliases {
			lookup[a] = field
		}
	}
	taken := make(map[string]bool)
	out := make(map[string]string)
	for _, h := range headers {
		field, ok := lookup[SnakeCase(h)]
		if !ok || taken[field] {
			continue
		}
		taken[field] = true
		out[h] = field
	}
	return out
}

// SnakeCase folds a header to lower_snake_case without accents.
func SnakeCase(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
