// Package adapter defines the contracts of the external pipeline
// collaborators the workspace drives: extraction, dictionary
// standardization, fixed-width layout parsing, translation and
// classification. Implementations live in the sub-packages.
package adapter

import (
	"context"
	"time"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// SourceKind selects an extractor from the registry.
type SourceKind string

// Known source kinds.
const (
	SourceFile   SourceKind = "file"
	SourceHTTP   SourceKind = "http"
	SourceDuckDB SourceKind = "duckdb"
)

// ParseOptions control how raw files are turned into datasets.
type ParseOptions struct {
	// Separator is the field delimiter of delimited text. Empty means ",".
	Separator string
	// Encoding is one of utf-8, latin1, iso-8859-1 or cp1252.
	Encoding string
	// Extensions limits which files are read, without the leading dot.
	Extensions []string
	// Layout switches .txt files to fixed-width parsing when set.
	Layout *core.Layout
}

// ExtractRequest describes one extraction.
type ExtractRequest struct {
	Kind SourceKind
	// Inputs are file or directory paths, URLs, or database files,
	// depending on Kind.
	Inputs []string
	// Query is an optional SQL statement for the duckdb source.
	Query string
	// Depth bounds how many link hops the http source follows.
	Depth int
	// Keywords filter discovered links; any match keeps the link.
	Keywords []string
	// OutputDir receives downloaded files. Empty means a temporary
	// directory that is removed after parsing.
	OutputDir string
	Timeout   time.Duration
	Options   ParseOptions
}

// Extractor produces datasets from a source. It returns
// core.ErrNothingExtracted when it ran but found nothing.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]*core.Dataset, error)
}

// Standardizer maps a raw dictionary onto the canonical dictionary schema.
type Standardizer interface {
	Standardize(ctx context.Context, raw *core.Dataset) (*core.Dataset, error)
}

// LayoutParser derives a fixed-width layout from a standardized dictionary.
type LayoutParser interface {
	ParseLayout(ctx context.Context, dict *core.Dataset) (*core.Layout, error)
}

// Translator adds the translation of field into lang as <field>_<lang>.
type Translator interface {
	Translate(ctx context.Context, dict *core.Dataset, field, lang string) (*core.Dataset, error)
}

// Classifier adds the category field using the model at model.
type Classifier interface {
	Classify(ctx context.Context, dict *core.Dataset, fields []string, model string) (*core.Dataset, error)
}
