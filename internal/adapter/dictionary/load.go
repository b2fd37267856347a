// Package dictionary turns raw survey dictionaries into the canonical
// dictionary schema and derives fixed-width layouts from them.
package dictionary

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/extract"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Load reads a raw dictionary from a .csv or .xlsx file.
func Load(path string, opts adapter.ParseOptions) (*core.Dataset, error) {
	switch ext := extract.Ext(path); ext {
	case "csv", "xlsx":
	default:
		return nil, fmt.Errorf("%s: dictionaries must be .csv or .xlsx, got %q", path, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	opts.Layout = nil
	ds, err := extract.Read(f, filepath.Base(path), opts)
	if err != nil {
		return nil, err
	}
	if ds.NumCols() == 0 {
		return nil, fmt.Errorf("%s: dictionary has no columns", path)
	}
	return ds, nil
}
