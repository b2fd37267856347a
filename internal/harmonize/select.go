package harmonize

import (
	"slices"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// SelectData keeps, in every dataset, the columns whose dictionary category
// is one of params.Categories plus the key column, and, when a key column
// is set, only the rows whose key value is listed in params.KeyValues.
//
// Parameters are validated before any dataset is read. A dataset lacking
// the key column yields zero rows.
func SelectData(datasets []*core.Dataset, dict *core.Dataset, params core.SelectParams) ([]*core.Dataset, error) {
	if err := checkSelectParams(params); err != nil {
		return nil, err
	}
	if missing := core.MissingFields(dict, core.FieldVariableName, core.FieldCategory); len(missing) > 0 {
		return nil, &core.PreconditionError{
			Stage:   "select",
			Missing: "classified dictionary field " + strings.Join(missing, ", "),
		}
	}

	wanted := SelectedVariables(dict, params.Categories)
	keys := make(map[string]bool, len(params.KeyValues))
	for _, v := range params.KeyValues {
		keys[strings.TrimSpace(v)] = true
	}

	out := make([]*core.Dataset, len(datasets))
	for i, ds := range datasets {
		var names []string
		for _, c := range ds.Columns() {
			if c.Name == params.KeyColumn || wanted[NormalizeName(c.Name)] {
				names = append(names, c.Name)
			}
		}
		selected := ds.SelectColumns(names...)

		if params.KeyColumn != "" {
			key := ds.Column(params.KeyColumn)
			selected = selected.FilterRows(func(r int) bool {
				return key != nil && keys[strings.TrimSpace(key.Values[r].String())]
			})
		}
		out[i] = selected
	}
	return out, nil
}

// SelectedVariables returns the normalized variable names whose category
// is in categories. Categories compare trimmed and case-insensitively.
func SelectedVariables(dict *core.Dataset, categories []string) map[string]bool {
	want := make([]string, len(categories))
	for i, c := range categories {
		want[i] = foldCategory(c)
	}

	vars := dict.Column(core.FieldVariableName)
	cats := dict.Column(core.FieldCategory)
	out := make(map[string]bool)
	if vars == nil || cats == nil {
		return out
	}
	for r := range vars.Values {
		if vars.Values[r].IsMissing() {
			continue
		}
		if slices.Contains(want, foldCategory(cats.Values[r].String())) {
			out[NormalizeName(vars.Values[r].String())] = true
		}
	}
	return out
}

func foldCategory(s string) string {
	return foldCase(strings.TrimSpace(s))
}

func checkSelectParams(params core.SelectParams) error {
	if len(params.Categories) == 0 {
		return &core.ParamError{Param: "categories", Reason: "select at least one category"}
	}
	if params.KeyColumn != "" && len(params.KeyValues) == 0 {
		return &core.ParamError{Param: "key_values", Reason: "a key column was given without any values"}
	}
	return validateParams(params)
}

// Columns returns the union of column names across datasets in first-seen
// order.
func Columns(datasets []*core.Dataset) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ds := range datasets {
		for _, name := range ds.ColumnNames() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
