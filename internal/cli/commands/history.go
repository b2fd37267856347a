package commands

import (
	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit   int
	Stage   string
	Session string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded stage runs",
		Long: `Show the stage runs recorded in the history database, newest first.

Every stage invocation is recorded with its outcome (success, rejected or
failed), its parameters and the number of datasets before and after.`,
		Example: `  # Last 20 runs across all sessions
  s4h history

  # Only merges, as JSON
  s4h history --stage merge -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "Only show runs of this stage")
	cmd.Flags().StringVar(&opts.Session, "session", "", "Only show runs of this session")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cctx := NewCommandContextWithoutEngine(cmd)

	store, err := openHistory(cctx.Cfg.StatePath, cctx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(cmd.Context(), state.Filter{
		SessionID: opts.Session,
		Stage:     opts.Stage,
		Limit:     opts.Limit,
	})
	if err != nil {
		return err
	}
	cctx.Renderer.History(runs)
	return nil
}
