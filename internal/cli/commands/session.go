package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/state"
)

const (
	sessionPrompt      = "s4h> "
	sessionBlockPrompt = " ...> "
)

// NewSessionCommand creates the session command.
func NewSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start an interactive harmonization session",
		Long: `Start an interactive session over one workspace.

Dot-commands run the stages in order: load a dictionary, extract datasets,
prune, merge, translate, classify and select, then export. Any other input
is a snippet run against the loaded datasets. The session state lives for
the lifetime of the process; stage runs are recorded in the history
database.`,
		Example: `  # Start a session
  s4h session

  # Inside the session
  s4h> .dict dictionary.xlsx
  s4h> .extract data/
  s4h> .prune 0.4
  s4h> print(len(dataframes))`,
		Args: cobra.NoArgs,
		RunE: runSession,
	}
	return cmd
}

func runSession(cmd *cobra.Command, _ []string) error {
	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	historyFile := ""
	if cctx.Cfg.StatePath != state.MemoryPath {
		historyFile = filepath.Join(filepath.Dir(cctx.Cfg.StatePath), "session_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sessionPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newSessionCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cctx.Renderer
	r.Printf("s4h session %s (history: %s)\n", cctx.Engine.SessionID(), cctx.Cfg.StatePath)
	r.Println("Type .help for commands, .quit to exit")
	r.Println("")

	shell := NewShell(cctx.Engine, cctx.Cfg.Settings, r)
	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			shell.Cancel()
			rl.SetPrompt(sessionPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if shell.Feed(ctx, line) {
			break
		}
		if shell.Pending() {
			rl.SetPrompt(sessionBlockPrompt)
		} else {
			rl.SetPrompt(sessionPrompt)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil
}

// newSessionCompleter completes dot-commands and their fixed arguments.
func newSessionCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(sessionCommands)+1)
	for _, c := range sessionCommands {
		switch c.name {
		case ".extract":
			items = append(items, readline.PcItem(c.name,
				readline.PcItem("file"), readline.PcItem("http"), readline.PcItem("duckdb")))
		case ".export":
			items = append(items, readline.PcItem(c.name,
				readline.PcItem("datasets"), readline.PcItem("dictionary"), readline.PcItem("result")))
		case ".layout":
			items = append(items, readline.PcItem(c.name, readline.PcItem("off")))
		default:
			items = append(items, readline.PcItem(c.name))
		}
	}
	items = append(items, readline.PcItem(".exit"))
	return readline.NewPrefixCompleter(items...)
}
