// Package sandbox runs user snippets against the loaded datasets.
//
// Snippets are Starlark programs executed in the host process. Starlark has
// no filesystem, network, or process access and load statements are
// rejected, but this is not an isolation boundary: there is no memory cap,
// and cells changed through dataset.set are changed in the host. WithTimeout
// and WithMaxSteps bound runaway loops when configured.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ResultName is the global a snippet assigns to hand a dataset back.
const ResultName = "result"

// Output is everything a snippet run produced.
type Output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	// Result is the dataset bound to "result", if any. It is the same
	// dataset the snippet built, not a copy.
	Result *core.Dataset `json:"-"`
	// Bound lists the other global names the snippet created, sorted. It
	// is empty when the snippet fails.
	Bound    []string           `json:"bound"`
	Duration time.Duration      `json:"duration"`
	Err      *core.SnippetError `json:"-"`
}

// Failed reports whether the snippet raised an error.
func (o *Output) Failed() bool { return o.Err != nil }

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Executor runs snippets. It holds no session state and no lock; an
// Executor may be reused across calls.
type Executor struct {
	timeout  time.Duration
	maxSteps uint64
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout cancels a snippet after d. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxSteps cancels a snippet after n Starlark computation steps. Zero
// means unlimited.
func WithMaxSteps(n uint64) Option {
	return func(e *Executor) { e.maxSteps = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an executor.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Execute runs snippet against env. It never returns an error and never
// panics: failures are reported in Output.Stderr and Output.Err.
func (e *Executor) Execute(ctx context.Context, snippet string, env Environment) (out *Output) {
	out = &Output{Bound: []string{}}
	var stdout strings.Builder
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Err = &core.SnippetError{Message: fmt.Sprintf("internal error: %v", r)}
			out.Stderr = out.Err.Message + "\n"
			out.Result = nil
		}
		out.Stdout = stdout.String()
		out.Duration = time.Since(start)
		e.logger.Debug("snippet executed",
			slog.Duration("duration", out.Duration),
			slog.Bool("failed", out.Failed()),
			slog.Int("bound", len(out.Bound)),
			slog.Bool("result", out.Result != nil))
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	thread := &starlark.Thread{
		Name: "snippet",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
	}
	if e.maxSteps > 0 {
		thread.SetMaxExecutionSteps(e.maxSteps)
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "snippet.star", snippet, env.globals())
	if err != nil {
		out.Err = snippetError(err)
		out.Stderr = out.Err.Backtrace
		return out
	}

	for name, v := range globals {
		if name == ResultName {
			if ds, ok := v.(*Dataset); ok {
				out.Result = ds.Unwrap()
				continue
			}
		}
		out.Bound = append(out.Bound, name)
	}
	sort.Strings(out.Bound)
	return out
}

// snippetError renders err with its Starlark backtrace when there is one.
func snippetError(err error) *core.SnippetError {
	se := &core.SnippetError{Message: err.Error()}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		se.Backtrace = evalErr.Backtrace()
	} else {
		se.Backtrace = err.Error()
	}
	if !strings.HasSuffix(se.Backtrace, "\n") {
		se.Backtrace += "\n"
	}
	return se
}
