// Package duckdb provides an extractor that reads data files through an
// embedded DuckDB database: CSV via read_csv_auto, Parquet, JSON, and
// Stata/SAS through the read_stat community extension.
//
// This file registers the extractor with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/harmonize-tools/s4h-workbench/internal/adapter/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

func init() {
	adapter.Register(adapter.SourceDuckDB, func(l *slog.Logger) adapter.Extractor { return New(l) })
}

// Opener opens the database the extractor queries.
type Opener func(ctx context.Context) (*sql.DB, error)

// Extractor reads files with DuckDB table functions.
type Extractor struct {
	open   Opener
	logger *slog.Logger
}

// New creates an extractor backed by an in-memory DuckDB database.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{open: openMemory, logger: logger}
}

// WithOpener replaces how the database is opened.
func (e *Extractor) WithOpener(open Opener) *Extractor {
	e.open = open
	return e
}

func openMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return db, nil
}

// Extract runs req.Query when set, otherwise reads every input file.
func (e *Extractor) Extract(ctx context.Context, req adapter.ExtractRequest) ([]*core.Dataset, error) {
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		e.logger.Debug("closing database connection")
		_ = db.Close()
	}()

	if strings.TrimSpace(req.Query) != "" {
		ds, err := queryDataset(ctx, db, "query", req.Query)
		if err != nil {
			return nil, err
		}
		return nonEmpty([]*core.Dataset{ds})
	}

	var out []*core.Dataset
	statLoaded := false
	for _, in := range req.Inputs {
		fn, err := tableFunction(in)
		if err != nil {
			return nil, err
		}
		if fn == "read_stat" && !statLoaded {
			if _, err := db.ExecContext(ctx, "INSTALL read_stat FROM community; LOAD read_stat;"); err != nil {
				return nil, fmt.Errorf("loading read_stat extension: %w", err)
			}
			statLoaded = true
		}
		query := fmt.Sprintf("SELECT * FROM %s", fn)
		if fn == "read_csv_auto" {
			query += csvArgs(in, req.Options)
		} else {
			query += "(" + quote(in) + ")"
		}
		ds, err := queryDataset(ctx, db, filepath.Base(in), query)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("file read", slog.String("file", in), slog.Int("rows", ds.NumRows()))
		out = append(out, ds)
	}
	return nonEmpty(out)
}

func nonEmpty(out []*core.Dataset) ([]*core.Dataset, error) {
	if len(out) == 0 {
		return nil, core.ErrNothingExtracted
	}
	return out, nil
}

func tableFunction(file string) (string, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file), ".")); ext {
	case "csv", "tsv", "txt":
		return "read_csv_auto", nil
	case "parquet":
		return "read_parquet", nil
	case "json", "ndjson":
		return "read_json_auto", nil
	case "dta", "sas7bdat", "sav":
		return "read_stat", nil
	default:
		return "", fmt.Errorf("%s: duckdb cannot read %q files", file, ext)
	}
}

func csvArgs(file string, opts adapter.ParseOptions) string {
	args := []string{quote(file), "all_varchar=true"}
	if opts.Separator != "" {
		args = append(args, "delim="+quote(opts.Separator))
	}
	return "(" + strings.Join(args, ", ") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// queryDataset runs query and collects the result set into a dataset.
func queryDataset(ctx context.Context, db *sql.DB, name, query string) (*core.Dataset, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	ds := core.EmptyDataset(name, names...)
	if ds.NumCols() != len(names) {
		return nil, fmt.Errorf("%s: duplicate column names in %v", name, names)
	}

	cells := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]core.Value, len(cells))
		for i, c := range cells {
			row[i] = toValue(c)
		}
		if err := ds.AppendRow(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ds, nil
}

// toValue converts a driver value into a cell. Strings go through the same
// parsing as delimited text.
func toValue(v any) core.Value {
	switch x := v.(type) {
	case nil:
		return core.Missing()
	case string:
		return core.ParseValue(x)
	case []byte:
		return core.ParseValue(string(x))
	case int64:
		return core.Number(float64(x))
	case int32:
		return core.Number(float64(x))
	case int:
		return core.Number(float64(x))
	case float64:
		return core.Number(x)
	case float32:
		return core.Number(float64(x))
	case bool:
		if x {
			return core.Number(1)
		}
		return core.Number(0)
	case time.Time:
		return core.Text(x.Format(time.RFC3339))
	default:
		return core.Text(fmt.Sprint(x))
	}
}
