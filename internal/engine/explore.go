package engine

import (
	"context"
	"fmt"

	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Explore runs a snippet against the loaded datasets. The snippet sees the
// store's datasets directly: cell writes through set() are visible to the
// session, but the dataset list itself is never replaced. A dataset bound
// to "result" is kept as the last result until the next run.
func (e *Engine) Explore(ctx context.Context, snippet string) *sandbox.Output {
	env := sandbox.Environment{
		Datasets: e.store.Datasets(),
		Session: sandbox.SessionInfo{
			Dictionary: e.store.Dictionary(),
			FixedWidth: e.store.FixedWidth(),
			Layout:     e.store.Layout(),
		},
	}

	var output *sandbox.Output
	e.run(ctx, stage.Explore, map[string]any{"snippet_bytes": len(snippet)}, nil, func(ctx context.Context) (string, []string, error) {
		output = e.executor.Execute(ctx, snippet, env)
		e.metrics.RecordSnippet(output.Failed(), output.Duration)

		e.mu.Lock()
		e.lastResult = output.Result
		e.mu.Unlock()

		if output.Failed() {
			return "", nil, output.Err
		}
		if output.Result != nil {
			return fmt.Sprintf("Snippet produced a result with %d rows.", output.Result.NumRows()), output.Bound, nil
		}
		return "Snippet ran.", output.Bound, nil
	})
	if output == nil {
		// Only reachable if the context was already done.
		output = &sandbox.Output{Stderr: ctx.Err().Error() + "\n", Err: &core.SnippetError{Message: ctx.Err().Error()}}
	}
	return output
}

// SnippetOutcome summarizes a snippet run as an explore outcome for hosts
// that report stage outcomes uniformly.
func SnippetOutcome(out *sandbox.Output) Outcome {
	if out.Failed() {
		return Outcome{
			Stage:    stage.Explore,
			Level:    LevelError,
			Message:  "Snippet failed: " + out.Err.Error(),
			Kind:     core.KindSnippet,
			Duration: out.Duration,
			Err:      out.Err,
		}
	}
	msg := "Snippet ran."
	if out.Result != nil {
		msg = fmt.Sprintf("Snippet produced a result with %d rows.", out.Result.NumRows())
	}
	return Outcome{Stage: stage.Explore, Level: LevelSuccess, Message: msg, Duration: out.Duration}
}

// LastResult returns the dataset bound to "result" by the last snippet.
func (e *Engine) LastResult() *core.Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// AdoptResult copies the last snippet result into the session as a new
// dataset.
func (e *Engine) AdoptResult(ctx context.Context) Outcome {
	return e.run(ctx, stage.Explore, nil, nil, func(ctx context.Context) (string, []string, error) {
		res := e.LastResult()
		if res == nil {
			return "", nil, &core.PreconditionError{Stage: string(stage.Explore), Missing: "a snippet result"}
		}
		e.store.Add(res.Clone())
		return fmt.Sprintf("Result added as dataset %d.", e.store.Len()), nil, nil
	})
}
