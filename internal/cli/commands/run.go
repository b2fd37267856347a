package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/pipeline"
)

// ErrStepsFailed is returned when a pipeline ran but a step did not succeed.
var ErrStepsFailed = errors.New("one or more steps failed")

// RunOptions holds options for the run command.
type RunOptions struct {
	FailFast bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline file",
		Long: `Run the steps of a pipeline file in order against a fresh session.

Each step goes through the same checks as in an interactive session: a
step whose inputs are missing is rejected and reported. By default the run
continues after a failed step; --fail-fast stops at the first one. The
command exits non-zero when any step did not succeed.`,
		Example: `  # Run a pipeline
  s4h run harmonize.yaml

  # Stop at the first failed step, with JSON output for CI
  s4h run harmonize.yaml --fail-fast -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "Stop at the first step that does not succeed")

	return cmd
}

func runPipeline(cmd *cobra.Command, path string, opts *RunOptions) error {
	p, err := pipeline.Load(path)
	if err != nil {
		return err
	}

	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := pipeline.NewRunner(cctx.Engine, cctx.Cfg.Settings,
		pipeline.WithFailFast(opts.FailFast),
		pipeline.WithLogger(cctx.Logger),
	)
	report, err := runner.Run(cmd.Context(), p)
	if report != nil {
		cctx.Renderer.Report(report)
	}
	if err != nil {
		return fmt.Errorf("pipeline %s interrupted: %w", p.Name, err)
	}
	if report.Failed() {
		return ErrStepsFailed
	}
	return nil
}
