package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
)

// ExecOptions holds options for the exec command.
type ExecOptions struct {
	Dictionary string
	Inputs     []string
	Source     string
	OutputDir  string
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec <script.star>",
		Short: "Run a snippet file against extracted datasets",
		Long: `Run a snippet file in a fresh session.

Datasets named with --input are extracted first and the dictionary given
with --dict is loaded, so the snippet sees them as dataframes and session.
When the snippet assigns a table to result and --out is set, the result is
written there as CSV.`,
		Example: `  # Summarize two survey files
  s4h exec summary.star --input wave1.csv --input wave2.csv

  # Keep the result
  s4h exec recode.star --input data/ --out results/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dictionary, "dict", "", "Dictionary to load first")
	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "Input to extract before running (repeatable)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "Source kind of the inputs (file|http|duckdb)")
	cmd.Flags().StringVar(&opts.OutputDir, "out", "", "Directory the result is written to")

	return cmd
}

func runExec(cmd *cobra.Command, path string, opts *ExecOptions) error {
	code, err := os.ReadFile(path) //nolint:gosec // path is user-provided CLI input
	if err != nil {
		return fmt.Errorf("failed to read snippet: %w", err)
	}

	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cctx.Engine
	r := cctx.Renderer
	ex := cctx.Cfg.Extract
	parse := adapter.ParseOptions{Separator: ex.Separator, Encoding: ex.Encoding, Extensions: ex.Extensions}

	if opts.Dictionary != "" {
		if out := eng.LoadDictionary(ctx, opts.Dictionary, parse, true); !out.OK() {
			r.Outcome(out)
			return out.Err
		}
	}
	if len(opts.Inputs) > 0 {
		req := adapter.ExtractRequest{
			Kind:      adapter.SourceKind(ex.Source),
			Inputs:    opts.Inputs,
			Depth:     ex.Depth,
			Keywords:  ex.Keywords,
			OutputDir: ex.OutputDir,
			Options:   parse,
		}
		if opts.Source != "" {
			req.Kind = adapter.SourceKind(opts.Source)
		}
		if req.Kind == adapter.SourceHTTP {
			req.Timeout = ex.HTTPTimeout
		}
		if out := eng.Extract(ctx, req); !out.OK() {
			r.Outcome(out)
			return out.Err
		}
	}

	result := eng.Explore(ctx, string(code))
	r.Snippet(result, cctx.Cfg.Sandbox.PreviewRows)
	if result.Failed() {
		return fmt.Errorf("snippet failed: %w", result.Err)
	}

	if opts.OutputDir != "" && result.Result != nil {
		out := eng.Export(ctx, engine.ExportRequest{Target: stage.ExportResult, Dir: opts.OutputDir})
		r.Outcome(out)
		if !out.OK() {
			return out.Err
		}
	}
	return nil
}
