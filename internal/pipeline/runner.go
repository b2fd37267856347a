package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/config"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// StepResult is the outcome of one step. Output is set for explore steps.
type StepResult struct {
	Index   int
	Step    Step
	Outcome engine.Outcome
	Output  *sandbox.Output
}

// Report collects the results of a run in step order.
type Report struct {
	Pipeline string
	Results  []StepResult
	// Skipped counts steps not attempted after a fail-fast stop.
	Skipped  int
	Duration time.Duration
}

// Failed reports whether any step did not succeed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if !res.Outcome.OK() {
			return true
		}
	}
	return false
}

// Runner executes pipelines against one engine.
type Runner struct {
	engine   *engine.Engine
	settings config.Settings
	failFast bool
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithFailFast stops the run at the first step that does not succeed.
func WithFailFast(on bool) Option {
	return func(r *Runner) { r.failFast = on }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner. Settings supply the parameters a step leaves
// unset and are used as given, so zero thresholds stay zero.
func NewRunner(eng *engine.Engine, settings config.Settings, opts ...Option) *Runner {
	r := &Runner{engine: eng, settings: settings}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Run executes the steps serially. A failed step is reported and the run
// continues unless fail-fast is set. Only cancellation returns an error.
func (r *Runner) Run(ctx context.Context, p *Pipeline) (*Report, error) {
	start := time.Now()
	report := &Report{Pipeline: p.Name}
	r.logger.Info("pipeline started", slog.String("pipeline", p.Name), slog.Int("steps", len(p.Steps)))

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		res := StepResult{Index: i + 1, Step: step}
		res.Outcome, res.Output = r.runStep(ctx, p, step)
		report.Results = append(report.Results, res)

		r.logger.Debug("step finished",
			slog.Int("step", i+1),
			slog.String("stage", step.Stage),
			slog.Bool("ok", res.Outcome.OK()))

		if !res.Outcome.OK() && r.failFast {
			report.Skipped = len(p.Steps) - i - 1
			break
		}
	}

	report.Duration = time.Since(start)
	r.logger.Info("pipeline finished",
		slog.String("pipeline", p.Name),
		slog.Bool("failed", report.Failed()),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, p *Pipeline, s Step) (engine.Outcome, *sandbox.Output) {
	eng := r.engine
	switch stage.Stage(s.Stage) {
	case stage.Standardize:
		standardize := s.Standardize == nil || *s.Standardize
		return eng.LoadDictionary(ctx, p.resolve(s.Dictionary), r.parseOptions(s), standardize), nil

	case stage.Layout:
		return eng.ParseLayout(ctx), nil

	case stage.Extract:
		return eng.Extract(ctx, r.extractRequest(p, s)), nil

	case stage.Prune:
		params := r.settings.Harmonize.PruneParams()
		if s.NaNThreshold != nil {
			params.NaNThreshold = *s.NaNThreshold
		}
		if s.SampleFraction != nil {
			params.SampleFraction = *s.SampleFraction
		}
		return eng.Prune(ctx, params), nil

	case stage.Merge:
		params := r.settings.Harmonize.MergeParams()
		if s.SimilarityThreshold != nil {
			params.SimilarityThreshold = *s.SimilarityThreshold
		}
		return eng.Merge(ctx, params), nil

	case stage.Translate:
		fields := s.Fields
		if len(fields) == 0 {
			fields = r.settings.Translate.Fields
		}
		return eng.Translate(ctx, fields, r.language(s)), nil

	case stage.Classify:
		model := s.Model
		if model == "" {
			model = r.settings.Classify.Model
		}
		return eng.Classify(ctx, p.resolve(model), r.language(s)), nil

	case stage.Select:
		return eng.Select(ctx, core.SelectParams{
			Categories: s.Categories,
			KeyColumn:  s.KeyColumn,
			KeyValues:  s.KeyValues,
		}), nil

	case stage.Explore:
		return r.explore(ctx, p, s)

	case stage.Export:
		return eng.Export(ctx, engine.ExportRequest{
			Target:    stage.ExportTarget(s.Target),
			Dir:       p.resolve(s.Dir),
			Archive:   s.Archive,
			Delimiter: s.Delimiter,
		}), nil
	}
	// Parse rejects unknown stages; this guards pipelines built in code.
	return engine.Outcome{
		Stage:   stage.Stage(s.Stage),
		Level:   engine.LevelError,
		Message: fmt.Sprintf("Unknown stage %q.", s.Stage),
		Kind:    core.KindParameter,
		Err:     &stage.UnknownStageError{Name: s.Stage},
	}, nil
}

func (r *Runner) explore(ctx context.Context, p *Pipeline, s Step) (engine.Outcome, *sandbox.Output) {
	snippet := s.Snippet
	if s.File != "" {
		data, err := os.ReadFile(p.resolve(s.File))
		if err != nil {
			return engine.Outcome{
				Stage:   stage.Explore,
				Level:   engine.LevelError,
				Message: fmt.Sprintf("Cannot read snippet file: %v", err),
				Kind:    core.KindParameter,
				Err:     err,
			}, nil
		}
		snippet = string(data)
	}

	out := r.engine.Explore(ctx, snippet)
	if !out.Failed() && s.Adopt {
		return r.engine.AdoptResult(ctx), out
	}
	return engine.SnippetOutcome(out), out
}

func (r *Runner) language(s Step) string {
	if s.Language != "" {
		return s.Language
	}
	return r.settings.Translate.Language
}

func (r *Runner) parseOptions(s Step) adapter.ParseOptions {
	ex := r.settings.Extract
	opts := adapter.ParseOptions{Separator: ex.Separator, Encoding: ex.Encoding, Extensions: ex.Extensions}
	if s.Separator != "" {
		opts.Separator = s.Separator
	}
	if s.Encoding != "" {
		opts.Encoding = s.Encoding
	}
	if len(s.Extensions) > 0 {
		opts.Extensions = s.Extensions
	}
	return opts
}

func (r *Runner) extractRequest(p *Pipeline, s Step) adapter.ExtractRequest {
	ex := r.settings.Extract
	req := adapter.ExtractRequest{
		Kind:      adapter.SourceKind(ex.Source),
		Query:     s.Query,
		Depth:     ex.Depth,
		Keywords:  ex.Keywords,
		OutputDir: p.resolve(ex.OutputDir),
		Options:   r.parseOptions(s),
	}
	if s.Source != "" {
		req.Kind = adapter.SourceKind(s.Source)
	}
	if req.Kind == adapter.SourceHTTP {
		req.Timeout = ex.HTTPTimeout
	}
	if s.Depth != nil {
		req.Depth = *s.Depth
	}
	if len(s.Keywords) > 0 {
		req.Keywords = s.Keywords
	}
	if s.OutputDir != "" {
		req.OutputDir = p.resolve(s.OutputDir)
	}
	for _, in := range s.Inputs {
		req.Inputs = append(req.Inputs, p.resolve(in))
	}
	return req
}
