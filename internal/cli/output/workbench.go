package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/pipeline"
	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/state"
	"github.com/harmonize-tools/s4h-workbench/internal/workspace"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// OutcomeInfo is the JSON form of a stage outcome.
type OutcomeInfo struct {
	OK         bool           `json:"ok"`
	Stage      string         `json:"stage"`
	Level      engine.Level   `json:"level"`
	Message    string         `json:"message"`
	Details    []string       `json:"details,omitempty"`
	Kind       core.ErrorKind `json:"kind,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// NewOutcomeInfo converts an outcome for JSON output.
func NewOutcomeInfo(out engine.Outcome) OutcomeInfo {
	return OutcomeInfo{
		OK:         out.OK(),
		Stage:      string(out.Stage),
		Level:      out.Level,
		Message:    out.Message,
		Details:    out.Details,
		Kind:       out.Kind,
		DurationMS: out.Duration.Milliseconds(),
	}
}

// Preview is a bounded rendering of a dataset.
type Preview struct {
	Name    string     `json:"name"`
	Rows    int        `json:"rows"`
	Columns []string   `json:"columns"`
	Data    [][]string `json:"data"`
}

// NewPreview renders at most limit rows of ds.
func NewPreview(ds *core.Dataset, limit int) Preview {
	head := ds.Head(limit)
	p := Preview{Name: ds.Name(), Rows: ds.NumRows(), Columns: ds.ColumnNames(), Data: make([][]string, head.NumRows())}
	for i := range p.Data {
		row := head.Row(i)
		p.Data[i] = make([]string, len(row))
		for j, v := range row {
			p.Data[i][j] = v.String()
		}
	}
	return p
}

// Outcome renders a stage outcome with its details.
func (r *Renderer) Outcome(out engine.Outcome) {
	switch r.EffectiveMode() {
	case ModeJSON:
		_ = r.JSON(NewOutcomeInfo(out))
	case ModeMarkdown:
		r.Printf("**%s** (%s): %s\n", out.Stage, out.Level, out.Message)
		for _, d := range out.Details {
			r.Println("- " + d)
		}
	default:
		icon, style := r.styles.Status(string(out.Level))
		r.Println(style.Render(icon + " " + out.Message))
		for _, d := range out.Details {
			r.Println("  " + r.styles.Muted.Render(d))
		}
	}
}

// Dataset renders a preview of at most limit rows.
func (r *Renderer) Dataset(ds *core.Dataset, limit int) {
	if ds == nil {
		return
	}
	p := NewPreview(ds, limit)
	if r.EffectiveMode() == ModeJSON {
		_ = r.JSON(p)
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	header := make(table.Row, len(p.Columns))
	for i, c := range p.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)
	for _, row := range p.Data {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		tw.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(3, p.Name))
		r.Println("")
		tw.RenderMarkdown()
		r.Println("")
	} else {
		r.Println(r.styles.Bold.Render(p.Name))
		tw.SetStyle(table.StyleLight)
		tw.Render()
	}
	r.Muted(fmt.Sprintf("(%d of %d rows, %d columns)", len(p.Data), p.Rows, len(p.Columns)))
}

// SnippetInfo is the JSON form of a snippet run.
type SnippetInfo struct {
	OK         bool     `json:"ok"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	Error      string   `json:"error,omitempty"`
	Bound      []string `json:"bound"`
	Result     *Preview `json:"result,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// Snippet renders the captured output of a snippet run.
func (r *Renderer) Snippet(out *sandbox.Output, limit int) {
	if r.EffectiveMode() == ModeJSON {
		info := SnippetInfo{
			OK:         !out.Failed(),
			Stdout:     out.Stdout,
			Stderr:     out.Stderr,
			Bound:      out.Bound,
			DurationMS: out.Duration.Milliseconds(),
		}
		if out.Err != nil {
			info.Error = out.Err.Message
		}
		if out.Result != nil {
			p := NewPreview(out.Result, limit)
			info.Result = &p
		}
		_ = r.JSON(info)
		return
	}

	if out.Stdout != "" {
		r.Printf("%s", out.Stdout)
		if !strings.HasSuffix(out.Stdout, "\n") {
			r.Println("")
		}
	}
	if out.Stderr != "" {
		_, _ = fmt.Fprint(r.errOut, r.styles.Error.Render(out.Stderr))
	}
	if len(out.Bound) > 0 {
		r.Muted("bound: " + strings.Join(out.Bound, ", "))
	}
	if out.Result != nil {
		r.Dataset(out.Result, limit)
	}
}

// Status renders a session snapshot.
func (r *Renderer) Status(sessionID string, snap workspace.Snapshot) {
	switch r.EffectiveMode() {
	case ModeJSON:
		_ = r.JSON(struct {
			SessionID string `json:"session_id"`
			workspace.Snapshot
		}{sessionID, snap})
		return
	case ModeMarkdown:
		r.Println(FormatHeader(2, "Session"))
		r.Println("")
		r.Println(FormatKeyValue("Session", sessionID))
		r.Println(FormatKeyValue("Dictionary", dictionarySummary(snap)))
		r.Println(FormatKeyValue("Fixed width", fmt.Sprintf("%t", snap.FixedWidth)))
		if snap.ModelPath != "" {
			r.Println(FormatKeyValue("Model", snap.ModelPath))
		}
		r.Println("")
	default:
		r.Header(1, "Session "+sessionID)
		r.Printf("  Dictionary:  %s\n", dictionarySummary(snap))
		r.Printf("  Fixed width: %t\n", snap.FixedWidth)
		if snap.ModelPath != "" {
			r.Printf("  Model:       %s\n", snap.ModelPath)
		}
	}

	if len(snap.Datasets) == 0 {
		r.Muted("No datasets loaded.")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.AppendHeader(table.Row{"#", "Name", "Rows", "Columns"})
	for _, d := range snap.Datasets {
		tw.AppendRow(table.Row{d.Index, d.Name, d.Rows, d.Columns})
	}
	if r.EffectiveMode() == ModeMarkdown {
		tw.RenderMarkdown()
		return
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

func dictionarySummary(snap workspace.Snapshot) string {
	if !snap.DictionaryLoaded {
		return "not loaded"
	}
	return fmt.Sprintf("%d variables, %d fields", snap.DictionaryRows, len(snap.DictionaryFields))
}

// History renders stage runs, newest first.
func (r *Renderer) History(runs []*state.StageRun) {
	if r.EffectiveMode() == ModeJSON {
		if runs == nil {
			runs = []*state.StageRun{}
		}
		_ = r.JSON(runs)
		return
	}
	if len(runs) == 0 {
		r.Muted("No stage runs recorded.")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.AppendHeader(table.Row{"Started", "Stage", "Status", "Datasets", "Duration", "Message"})
	for _, run := range runs {
		tw.AppendRow(table.Row{
			run.StartedAt.Local().Format(time.DateTime),
			run.Stage,
			string(run.Status),
			fmt.Sprintf("%d → %d", run.DatasetsBefore, run.DatasetsAfter),
			run.Duration.Round(time.Millisecond).String(),
			run.Message,
		})
	}
	if r.EffectiveMode() == ModeMarkdown {
		tw.RenderMarkdown()
		return
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// StepInfo is the JSON form of one pipeline step result.
type StepInfo struct {
	Index   int         `json:"index"`
	Label   string      `json:"label"`
	Outcome OutcomeInfo `json:"outcome"`
}

// ReportInfo is the JSON form of a pipeline report.
type ReportInfo struct {
	Pipeline   string     `json:"pipeline"`
	OK         bool       `json:"ok"`
	Steps      []StepInfo `json:"steps"`
	Skipped    int        `json:"skipped"`
	DurationMS int64      `json:"duration_ms"`
}

// Report renders a pipeline report.
func (r *Renderer) Report(rep *pipeline.Report) {
	if r.EffectiveMode() == ModeJSON {
		info := ReportInfo{
			Pipeline:   rep.Pipeline,
			OK:         !rep.Failed(),
			Steps:      make([]StepInfo, len(rep.Results)),
			Skipped:    rep.Skipped,
			DurationMS: rep.Duration.Milliseconds(),
		}
		for i, res := range rep.Results {
			info.Steps[i] = StepInfo{Index: res.Index, Label: res.Step.Label(), Outcome: NewOutcomeInfo(res.Outcome)}
		}
		_ = r.JSON(info)
		return
	}

	r.Header(1, "Pipeline "+rep.Pipeline)
	for _, res := range rep.Results {
		r.Muted(fmt.Sprintf("[%d] %s", res.Index, res.Step.Label()))
		if res.Output != nil && (res.Output.Stdout != "" || res.Output.Stderr != "") {
			r.Snippet(&sandbox.Output{Stdout: res.Output.Stdout, Stderr: res.Output.Stderr}, 0)
		}
		r.Outcome(res.Outcome)
	}

	failed := 0
	for _, res := range rep.Results {
		if !res.Outcome.OK() {
			failed++
		}
	}
	summary := fmt.Sprintf("%d step(s) run, %d failed, %d skipped in %s",
		len(rep.Results), failed, rep.Skipped, rep.Duration.Round(time.Millisecond))
	if failed > 0 {
		r.Warning(summary)
		return
	}
	r.Success(summary)
}
