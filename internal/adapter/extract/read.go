package extract

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// DefaultExtensions are read when ParseOptions.Extensions is empty.
var DefaultExtensions = []string{"csv", "txt", "xlsx", "xls", "dta", "sav", "sas7bdat", "zip", "tar", "tgz", "gz", "7z"}

// statExtractor reads Stata, SPSS and SAS files, which have no native parser
// in this package.
var statExtractor = func() (adapter.Extractor, error) {
	return adapter.NewExtractor(adapter.SourceDuckDB, nil)
}

func isStatFile(name string) bool {
	switch Ext(name) {
	case "dta", "sav", "sas7bdat":
		return true
	}
	return false
}

func readStatFile(ctx context.Context, filename string, opts adapter.ParseOptions) ([]*core.Dataset, error) {
	ext, err := statExtractor()
	if err != nil {
		return nil, fmt.Errorf("%s: statistical files are read through the duckdb source: %w", filename, err)
	}
	return ext.Extract(ctx, adapter.ExtractRequest{Kind: adapter.SourceDuckDB, Inputs: []string{filename}, Options: opts})
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filepath.ToSlash(name)), "."))
}

func wanted(opts adapter.ParseOptions) []string {
	if len(opts.Extensions) == 0 {
		return DefaultExtensions
	}
	out := make([]string, len(opts.Extensions))
	for i, e := range opts.Extensions {
		out[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
	}
	return out
}

// Wants reports whether a file name has one of the wanted extensions.
func Wants(name string, opts adapter.ParseOptions) bool {
	return slices.Contains(wanted(opts), Ext(name))
}

// ReadFile parses one file into datasets. Archives yield one dataset per
// wanted member.
func ReadFile(filename string, opts adapter.ParseOptions) ([]*core.Dataset, error) {
	if isArchive(filename) {
		return readArchive(filename, opts)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	ds, err := Read(f, filepath.Base(filename), opts)
	if err != nil {
		return nil, err
	}
	return []*core.Dataset{ds}, nil
}

// Read parses r according to the extension of name.
func Read(r io.Reader, name string, opts adapter.ParseOptions) (*core.Dataset, error) {
	switch ext := Ext(name); ext {
	case "xlsx":
		return ReadWorkbook(r, name)
	case "xls":
		return ReadLegacyWorkbook(r, name)
	case "txt":
		if opts.Layout != nil {
			dec, err := Decode(r, opts.Encoding)
			if err != nil {
				return nil, err
			}
			return ReadFixedWidth(dec, name, opts.Layout)
		}
		fallthrough
	case "csv", "tsv", "dat":
		sep := opts.Separator
		if sep == "" && ext == "tsv" {
			sep = "\t"
		}
		dec, err := Decode(r, opts.Encoding)
		if err != nil {
			return nil, err
		}
		return ReadDelimited(dec, name, sep)
	default:
		return nil, fmt.Errorf("%s: unsupported file type %q", name, ext)
	}
}

// Collect expands inputs into the sorted list of wanted files. Directories
// are walked recursively.
func Collect(inputs []string, opts adapter.ParseOptions) ([]string, error) {
	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !Wants(in, opts) {
				return nil, fmt.Errorf("%s: extension %q is not in %v", in, Ext(in), wanted(opts))
			}
			files = append(files, in)
			continue
		}
		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && Wants(p, opts) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// ReadAll parses files in parallel and returns their datasets in file
// order. Statistical package files go to the duckdb extractor.
func ReadAll(ctx context.Context, files []string, opts adapter.ParseOptions) ([]*core.Dataset, error) {
	results := make([][]*core.Dataset, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ds []*core.Dataset
			var err error
			if isStatFile(f) {
				ds, err = readStatFile(ctx, f, opts)
			} else {
				ds, err = ReadFile(f, opts)
			}
			if err != nil {
				return err
			}
			results[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*core.Dataset
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
