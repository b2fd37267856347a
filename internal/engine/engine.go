// Package engine is the stage boundary of the workbench. Every stage
// action goes through it: the gate is checked, the collaborator or
// operator runs, and only on success is the session store updated. All
// failures come back as an Outcome; none escape as a fault.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/internal/state"
	"github.com/harmonize-tools/s4h-workbench/internal/telemetry"
	"github.com/harmonize-tools/s4h-workbench/internal/workspace"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// ExtractorFactory resolves an extractor for a source kind.
type ExtractorFactory func(kind adapter.SourceKind, logger *slog.Logger) (adapter.Extractor, error)

// Config holds engine configuration. Only Store is required in practice;
// missing collaborators make their stages fail with a collaborator error.
type Config struct {
	Store        *workspace.Store
	History      state.History
	Metrics      *telemetry.Metrics
	Executor     *sandbox.Executor
	Standardizer adapter.Standardizer
	LayoutParser adapter.LayoutParser
	Translator   adapter.Translator
	Classifier   adapter.Classifier
	// Extractors defaults to adapter.NewExtractor.
	Extractors ExtractorFactory
	// Seed makes sampled pruning reproducible. Zero seeds from the clock.
	Seed uint64
	// SessionID tags history records. Empty generates one.
	SessionID string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine runs stage actions against one session store.
type Engine struct {
	store        *workspace.Store
	history      state.History
	metrics      *telemetry.Metrics
	executor     *sandbox.Executor
	standardizer adapter.Standardizer
	layouts      adapter.LayoutParser
	translator   adapter.Translator
	classifier   adapter.Classifier
	extractors   ExtractorFactory
	seed         uint64
	sessionID    string
	logger       *slog.Logger

	// mu guards rng and lastResult.
	mu         sync.Mutex
	rng        *rand.Rand
	lastResult *core.Dataset
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := cfg.Store
	if store == nil {
		store = workspace.New(logger)
	}
	executor := cfg.Executor
	if executor == nil {
		executor = sandbox.New(sandbox.WithLogger(logger))
	}
	extractors := cfg.Extractors
	if extractors == nil {
		extractors = adapter.NewExtractor
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	e := &Engine{
		store:        store,
		history:      cfg.History,
		metrics:      cfg.Metrics,
		executor:     executor,
		standardizer: cfg.Standardizer,
		layouts:      cfg.LayoutParser,
		translator:   cfg.Translator,
		classifier:   cfg.Classifier,
		extractors:   extractors,
		seed:         cfg.Seed,
		sessionID:    sessionID,
		logger:       logger.With(slog.String("session", sessionID)),
	}
	e.rng = e.newRand()
	return e
}

func (e *Engine) newRand() *rand.Rand {
	seed := e.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Store returns the session store.
func (e *Engine) Store() *workspace.Store { return e.store }

// SessionID returns the id history records are tagged with.
func (e *Engine) SessionID() string { return e.sessionID }

// Status summarizes the session.
func (e *Engine) Status() workspace.Snapshot { return e.store.Snapshot() }

// Reset clears the session and the last sandbox result. A fixed seed
// restarts its sequence.
func (e *Engine) Reset() {
	e.store.Reset()
	e.mu.Lock()
	e.lastResult = nil
	e.rng = e.newRand()
	e.mu.Unlock()
	e.metrics.SetSession(0, 0)
	e.logger.Info("session reset")
}

// History lists recorded stage runs of this session, newest first.
func (e *Engine) History(ctx context.Context, limit int, allSessions bool) ([]*state.StageRun, error) {
	if e.history == nil {
		return nil, nil
	}
	f := state.Filter{Limit: limit}
	if !allSessions {
		f.SessionID = e.sessionID
	}
	return e.history.List(ctx, f)
}

// action is the body of a stage. It returns the success message and
// optional detail lines.
type action func(ctx context.Context) (string, []string, error)

// run wraps a stage action: gate, execution, panic recovery, outcome
// conversion, history and metrics.
func (e *Engine) run(ctx context.Context, st stage.Stage, params any, gate func() error, fn action) (out Outcome) {
	start := time.Now()
	before := e.store.Len()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("stage panicked",
				slog.String("stage", string(st)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			out = failure(st, fmt.Errorf("internal error: %v", r))
		}
		out.Duration = time.Since(start)
		e.finish(ctx, &out, params, before, start)
	}()

	if gate == nil {
		gate = func() error { return stage.Check(st, e.store) }
	}
	if err := gate(); err != nil {
		return failure(st, err)
	}
	if err := ctx.Err(); err != nil {
		return failure(st, err)
	}
	msg, details, err := fn(ctx)
	if err != nil {
		return failure(st, err)
	}
	return Outcome{Stage: st, Level: LevelSuccess, Message: msg, Details: details}
}

func (e *Engine) finish(ctx context.Context, out *Outcome, params any, before int, start time.Time) {
	status := out.status()
	e.metrics.RecordStage(string(out.Stage), string(status), out.Duration)
	snap := e.store.Snapshot()
	e.metrics.SetSession(len(snap.Datasets), snap.DictionaryRows)

	attrs := []any{
		slog.String("stage", string(out.Stage)),
		slog.String("status", string(status)),
		slog.String("message", out.Message),
		slog.Duration("duration", out.Duration),
		slog.Int("datasets", len(snap.Datasets)),
	}
	switch out.Level {
	case LevelError:
		e.logger.Error("stage failed", attrs...)
	case LevelWarning:
		e.logger.Warn("stage finished with warnings", attrs...)
	default:
		e.logger.Info("stage finished", attrs...)
	}

	if e.history == nil {
		return
	}
	run := &state.StageRun{
		SessionID:      e.sessionID,
		Stage:          string(out.Stage),
		Status:         status,
		Message:        out.Message,
		Params:         encodeParams(params),
		DatasetsBefore: before,
		DatasetsAfter:  len(snap.Datasets),
		StartedAt:      start,
		Duration:       out.Duration,
	}
	// History must outlive a cancelled request.
	if err := e.history.Record(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Warn("failed to record stage run", slog.String("error", err.Error()))
		return
	}
	out.RunID = run.ID
}

func encodeParams(params any) string {
	if params == nil {
		return ""
	}
	b, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(b)
}
