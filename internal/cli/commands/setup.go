package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/classify"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/dictionary"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/translate"
	"github.com/harmonize-tools/s4h-workbench/internal/cli/config"
	"github.com/harmonize-tools/s4h-workbench/internal/cli/output"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/state"
	"github.com/harmonize-tools/s4h-workbench/internal/telemetry"

	// Register the extractors.
	_ "github.com/harmonize-tools/s4h-workbench/internal/adapter/duckdb"
	_ "github.com/harmonize-tools/s4h-workbench/internal/adapter/extract"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Metrics  *telemetry.Metrics
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cctx := NewCommandContextWithoutEngine(cmd)

	history, err := openHistory(cctx.Cfg.StatePath, cctx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cctx.Metrics = telemetry.New(telemetry.Config{
		Enabled:   cctx.Cfg.Metrics.Enabled,
		Namespace: cctx.Cfg.Metrics.Namespace,
	})
	cctx.Engine = createEngine(cctx.Cfg, history, cctx.Metrics, cctx.Logger)

	cleanup := func() {
		if err := history.Close(); err != nil {
			cctx.Logger.Warn("failed to close history store", slog.String("error", err.Error()))
		}
	}
	return cctx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only read the history store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// openHistory opens the stage history database, creating its directory.
func openHistory(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path != state.MemoryPath {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	history := state.NewSQLiteStore(logger)
	if err := history.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	return history, nil
}

func createEngine(cfg *config.Config, history state.History, metrics *telemetry.Metrics, logger *slog.Logger) *engine.Engine {
	executor := sandbox.New(
		sandbox.WithTimeout(cfg.Sandbox.Timeout),
		sandbox.WithMaxSteps(cfg.Sandbox.MaxSteps),
		sandbox.WithLogger(logger),
	)

	var translator adapter.Translator
	if cfg.Translate.Endpoint != "" {
		translator = translate.New(cfg.Translate.Endpoint,
			translate.WithAPIKey(cfg.Translate.APIKey),
			translate.WithTimeout(cfg.Translate.Timeout),
			translate.WithLogger(logger),
		)
	}

	return engine.New(engine.Config{
		History:      history,
		Metrics:      metrics,
		Executor:     executor,
		Standardizer: dictionary.NewStandardizer(logger),
		LayoutParser: dictionary.NewLayoutParser(logger),
		Translator:   translator,
		Classifier:   classify.New(logger),
		Seed:         cfg.Harmonize.Seed,
		Logger:       logger,
	})
}
