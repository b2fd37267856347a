// Package export writes datasets and dictionaries as delimited text,
// one file per dataset or bundled into a zip archive.
package export

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// File names of the exported artifacts.
const (
	StandardizedDictionaryFile = "standardized_dictionary.csv"
	ClassifiedDictionaryFile   = "classified_dictionary.csv"
	ResultFile                 = "playground_result.csv"
	ArchiveFile                = "dataframes.zip"
)

// Options control the delimited output.
type Options struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
}

// DatasetFile returns the file name of the i-th dataset (0-based index).
func DatasetFile(i int) string {
	return fmt.Sprintf("dataframe_%d.csv", i+1)
}

// DictionaryFile returns the export name of a dictionary, depending on
// whether it carries the category field.
func DictionaryFile(dict *core.Dataset) string {
	if dict != nil && dict.HasColumn(core.FieldCategory) {
		return ClassifiedDictionaryFile
	}
	return StandardizedDictionaryFile
}

// WriteCSV writes ds with a header row. Missing cells are written empty.
func WriteCSV(w io.Writer, ds *core.Dataset, opts Options) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		if opts.Delimiter == '"' || opts.Delimiter == '\r' || opts.Delimiter == '\n' || !utf8.ValidRune(opts.Delimiter) {
			return fmt.Errorf("invalid delimiter %q", opts.Delimiter)
		}
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(ds.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, ds.NumCols())
	cols := ds.Columns()
	for r := 0; r < ds.NumRows(); r++ {
		for j, c := range cols {
			record[j] = c.Values[r].String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes ds to path, creating parent directories.
func WriteFile(path string, ds *core.Dataset, opts Options) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, ds, opts); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return bw.Flush()
}

// WriteDir writes every dataset to dir as dataframe_<i>.csv and returns
// the written paths in order.
func WriteDir(dir string, datasets []*core.Dataset, opts Options) ([]string, error) {
	paths := make([]string, 0, len(datasets))
	for i, ds := range datasets {
		p := filepath.Join(dir, DatasetFile(i))
		if err := WriteFile(p, ds, opts); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteArchive writes a deflate-compressed zip holding one
// dataframe_<i>.csv per dataset.
func WriteArchive(w io.Writer, datasets []*core.Dataset, opts Options) error {
	zw := zip.NewWriter(w)
	for i, ds := range datasets {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: DatasetFile(i), Method: zip.Deflate})
		if err != nil {
			return err
		}
		if err := WriteCSV(fw, ds, opts); err != nil {
			return fmt.Errorf("writing %s: %w", DatasetFile(i), err)
		}
	}
	return zw.Close()
}

// WriteArchiveFile writes the archive to path.
func WriteArchiveFile(path string, datasets []*core.Dataset, opts Options) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteArchive(f, datasets, opts)
}
