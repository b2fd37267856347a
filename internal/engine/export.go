package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harmonize-tools/s4h-workbench/internal/export"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// ExportRequest selects what to write and where.
type ExportRequest struct {
	Target stage.ExportTarget `json:"target"`
	Dir    string             `json:"dir"`
	// Archive bundles datasets into one zip instead of one file each.
	Archive bool `json:"archive,omitempty"`
	// Delimiter is a single character or "tab". Empty means ",".
	Delimiter string `json:"delimiter,omitempty"`
}

func delimiterRune(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, &core.ParamError{Param: "delimiter", Reason: fmt.Sprintf("%q is not a single character", s)}
	}
	return r[0], nil
}

// Export writes datasets, the dictionary, or the last snippet result as
// delimited text under req.Dir.
func (e *Engine) Export(ctx context.Context, req ExportRequest) Outcome {
	gate := func() error { return stage.CheckExport(req.Target, e.store) }
	return e.run(ctx, stage.Export, req, gate, func(ctx context.Context) (string, []string, error) {
		if req.Dir == "" {
			return "", nil, &core.ParamError{Param: "dir", Reason: "an output directory is required"}
		}
		delim, err := delimiterRune(req.Delimiter)
		if err != nil {
			return "", nil, err
		}
		opts := export.Options{Delimiter: delim}

		switch req.Target {
		case stage.ExportDatasets:
			datasets := e.store.Datasets()
			if req.Archive {
				path := filepath.Join(req.Dir, export.ArchiveFile)
				if err := export.WriteArchiveFile(path, datasets, opts); err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("Wrote %d dataset(s) to %s.", len(datasets), path), nil, nil
			}
			paths, err := export.WriteDir(req.Dir, datasets, opts)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Wrote %d file(s).", len(paths)), paths, nil

		case stage.ExportDictionary:
			dict := e.store.Dictionary()
			path := filepath.Join(req.Dir, export.DictionaryFile(dict))
			if err := export.WriteFile(path, dict, opts); err != nil {
				return "", nil, err
			}
			return "Wrote dictionary to " + path + ".", nil, nil

		default:
			res := e.LastResult()
			if res == nil {
				return "", nil, &core.PreconditionError{Stage: string(stage.Export), Missing: "a snippet result"}
			}
			path := filepath.Join(req.Dir, export.ResultFile)
			if err := export.WriteFile(path, res, opts); err != nil {
				return "", nil, err
			}
			return "Wrote result to " + path + ".", nil, nil
		}
	})
}
