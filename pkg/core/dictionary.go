package core

import "strings"

// Canonical dictionary field names produced by standardization.
const (
	FieldVariableName    = "variable_name"
	FieldQuestion        = "question"
	FieldDescription     = "description"
	FieldPossibleAnswers = "possible_answers"
	FieldValue           = "value"
	FieldInitialPosition = "initial_position"
	FieldSize            = "size"
	FieldCategory        = "category"
)

// TranslatableFields are the dictionary fields sent to translation.
var TranslatableFields = []string{FieldQuestion, FieldDescription, FieldPossibleAnswers}

// DefaultCategories are the labels offered for data selection.
var DefaultCategories = []string{
	"Business", "Education", "Fertility", "Housing",
	"Identification", "Migration", "Nonstandard job", "Social Security",
}

// TranslatedField returns the name of the field holding the translation of
// field into lang, e.g. question_en.
func TranslatedField(field, lang string) string {
	return field + "_" + strings.ToLower(lang)
}

// ClassifierInputFields returns the translated fields a classifier needs.
func ClassifierInputFields(lang string) []string {
	out := make([]string, len(TranslatableFields))
	for i, f := range TranslatableFields {
		out[i] = TranslatedField(f, lang)
	}
	return out
}

// MissingFields returns the names in fields that ds does not have.
func MissingFields(ds *Dataset, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if ds == nil || !ds.HasColumn(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// IsEmpty reports whether a dataset carries no usable content. A nil or
// zero-column dataset is empty.
func IsEmpty(ds *Dataset) bool {
	return ds == nil || ds.NumCols() == 0
}
