package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/cli/output"
	"github.com/harmonize-tools/s4h-workbench/internal/config"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/sandbox"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Shell interprets session input: dot-commands drive the stages and any
// other input is a snippet run against the loaded datasets.
type Shell struct {
	engine   *engine.Engine
	settings config.Settings
	r        *output.Renderer

	// snippet accumulates a multi-line snippet until a blank line.
	snippet strings.Builder
}

// NewShell creates a shell over eng.
func NewShell(eng *engine.Engine, settings config.Settings, r *output.Renderer) *Shell {
	return &Shell{engine: eng, settings: settings, r: r}
}

// Pending reports whether a multi-line snippet is being collected.
func (s *Shell) Pending() bool { return s.snippet.Len() > 0 }

// Cancel drops a partially entered snippet.
func (s *Shell) Cancel() { s.snippet.Reset() }

// Feed handles one input line and reports whether the session should end.
//
// Snippet lines ending in ":" or "\" open a block that is collected until a
// blank line. Dot-commands are only recognized outside a block.
func (s *Shell) Feed(ctx context.Context, line string) (quit bool) {
	if s.Pending() {
		if strings.TrimSpace(line) != "" {
			s.snippet.WriteString(strings.TrimSuffix(line, `\`) + "\n")
			return false
		}
		code := s.snippet.String()
		s.snippet.Reset()
		s.explore(ctx, code)
		return false
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return false
	case strings.HasPrefix(trimmed, "."):
		return s.command(ctx, trimmed)
	case strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, `\`):
		s.snippet.WriteString(strings.TrimSuffix(line, `\`) + "\n")
		return false
	default:
		s.explore(ctx, line)
		return false
	}
}

func (s *Shell) command(ctx context.Context, line string) (quit bool) {
	name, args := splitCommand(line)
	switch name {
	case ".quit", ".exit":
		return true
	case ".help":
		printSessionHelp(s.r.Writer())
	case ".clear":
		s.r.Printf("\033[H\033[2J")
	case ".status":
		s.r.Status(s.engine.SessionID(), s.engine.Status())
	case ".history":
		s.history(ctx, args)
	case ".columns":
		s.columns()
	case ".show":
		s.show(args)
	case ".dict":
		s.dictionary(ctx, args)
	case ".layout":
		s.layout(ctx, args)
	case ".extract":
		s.extract(ctx, args)
	case ".prune":
		s.prune(ctx, args)
	case ".merge":
		s.merge(ctx, args)
	case ".translate":
		s.translate(ctx, args)
	case ".classify":
		s.classify(ctx, args)
	case ".select":
		s.selectRows(ctx, args)
	case ".run":
		s.runFile(ctx, args)
	case ".samples":
		s.samples()
	case ".sample":
		s.sample(ctx, args)
	case ".result":
		s.result()
	case ".adopt":
		s.r.Outcome(s.engine.AdoptResult(ctx))
	case ".export":
		s.export(ctx, args)
	case ".reset":
		s.engine.Reset()
		s.r.Success("Session reset.")
	default:
		s.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", name))
	}
	return false
}

// splitCommand splits a dot-command into its lower-cased name and fields.
func splitCommand(line string) (string, []string) {
	parts := strings.Fields(line)
	return strings.ToLower(parts[0]), parts[1:]
}

func (s *Shell) usage(text string) {
	s.r.Error("Usage: " + text)
}

func (s *Shell) explore(ctx context.Context, code string) {
	out := s.engine.Explore(ctx, code)
	s.r.Snippet(out, s.settings.Sandbox.PreviewRows)
}

func (s *Shell) history(ctx context.Context, args []string) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			s.usage(".history [limit]")
			return
		}
		limit = n
	}
	runs, err := s.engine.History(ctx, limit, false)
	if err != nil {
		s.r.Error(err.Error())
		return
	}
	s.r.History(runs)
}

func (s *Shell) columns() {
	cols := s.engine.AvailableColumns()
	if len(cols) == 0 {
		s.r.Muted("No datasets loaded.")
		return
	}
	s.r.Println(strings.Join(cols, ", "))
}

func (s *Shell) show(args []string) {
	list := s.engine.Store().Datasets()
	if len(list) == 0 {
		s.r.Muted("No datasets loaded.")
		return
	}
	if len(args) == 0 {
		for _, ds := range list {
			s.r.Dataset(ds, s.settings.Sandbox.PreviewRows)
		}
		return
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > len(list) {
		s.usage(fmt.Sprintf(".show [1-%d]", len(list)))
		return
	}
	s.r.Dataset(list[i-1], s.settings.Sandbox.PreviewRows)
}

func (s *Shell) parseOptions() adapter.ParseOptions {
	ex := s.settings.Extract
	return adapter.ParseOptions{Separator: ex.Separator, Encoding: ex.Encoding, Extensions: ex.Extensions}
}

func (s *Shell) dictionary(ctx context.Context, args []string) {
	standardize := true
	var path string
	for _, a := range args {
		if a == "--raw" {
			standardize = false
			continue
		}
		path = a
	}
	if path == "" {
		s.usage(".dict <path> [--raw]")
		return
	}
	s.r.Outcome(s.engine.LoadDictionary(ctx, path, s.parseOptions(), standardize))
}

func (s *Shell) layout(ctx context.Context, args []string) {
	if len(args) > 0 && args[0] == "off" {
		s.engine.DisableFixedWidth()
		s.r.Success("Fixed-width parsing disabled.")
		return
	}
	s.r.Outcome(s.engine.ParseLayout(ctx))
}

// extract handles ".extract [source] <input>... [-- query]".
func (s *Shell) extract(ctx context.Context, args []string) {
	ex := s.settings.Extract
	req := adapter.ExtractRequest{
		Kind:      adapter.SourceKind(ex.Source),
		Depth:     ex.Depth,
		Keywords:  ex.Keywords,
		OutputDir: ex.OutputDir,
		Options:   s.parseOptions(),
	}
	if len(args) > 0 && adapter.IsRegistered(adapter.SourceKind(args[0])) {
		req.Kind = adapter.SourceKind(args[0])
		args = args[1:]
	}
	if i := slices.Index(args, "--"); i >= 0 {
		req.Query = strings.Join(args[i+1:], " ")
		args = args[:i]
	}
	req.Inputs = args
	if len(req.Inputs) == 0 && req.Query == "" {
		s.usage(".extract [file|http|duckdb] <input>... [-- query]")
		return
	}
	if req.Kind == adapter.SourceHTTP {
		req.Timeout = ex.HTTPTimeout
	}
	s.r.Outcome(s.engine.Extract(ctx, req))
}

func parseFloats(args []string, dst ...*float64) error {
	for i, a := range args {
		if i >= len(dst) {
			return fmt.Errorf("too many arguments")
		}
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", a)
		}
		*dst[i] = v
	}
	return nil
}

func (s *Shell) prune(ctx context.Context, args []string) {
	params := s.settings.Harmonize.PruneParams()
	if err := parseFloats(args, &params.NaNThreshold, &params.SampleFraction); err != nil {
		s.usage(".prune [nan_threshold] [sample_fraction]")
		return
	}
	s.r.Outcome(s.engine.Prune(ctx, params))
}

func (s *Shell) merge(ctx context.Context, args []string) {
	params := s.settings.Harmonize.MergeParams()
	if err := parseFloats(args, &params.SimilarityThreshold); err != nil {
		s.usage(".merge [similarity_threshold]")
		return
	}
	s.r.Outcome(s.engine.Merge(ctx, params))
}

func (s *Shell) translate(ctx context.Context, args []string) {
	lang := s.settings.Translate.Language
	fields := s.settings.Translate.Fields
	if len(args) > 0 {
		lang = args[0]
	}
	if len(args) > 1 {
		fields = args[1:]
	}
	s.r.Outcome(s.engine.Translate(ctx, fields, lang))
}

func (s *Shell) classify(ctx context.Context, args []string) {
	model := s.settings.Classify.Model
	if len(args) > 0 {
		model = args[0]
	}
	s.r.Outcome(s.engine.Classify(ctx, model, s.settings.Translate.Language))
}

// selectRows handles ".select <cat,cat> [key_column [v1,v2]]".
func (s *Shell) selectRows(ctx context.Context, args []string) {
	if len(args) == 0 {
		s.usage(".select <category,...> [key_column [value,...]]")
		return
	}
	params := core.SelectParams{Categories: splitList(args[0])}
	if len(args) > 1 {
		params.KeyColumn = args[1]
	}
	if len(args) > 2 {
		params.KeyValues = splitList(strings.Join(args[2:], ","))
	}
	s.r.Outcome(s.engine.Select(ctx, params))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Shell) runFile(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.usage(".run <snippet-file>")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		s.r.Error(fmt.Sprintf("Cannot read snippet file: %v", err))
		return
	}
	s.explore(ctx, string(data))
}

func (s *Shell) samples() {
	for i, sample := range sandbox.Samples {
		s.r.Printf("%d. %s\n", i+1, sample.Name)
	}
}

// sample runs a sample snippet chosen by number or name.
func (s *Shell) sample(ctx context.Context, args []string) {
	if len(args) == 0 {
		s.usage(".sample <number|name>")
		return
	}
	arg := strings.Join(args, " ")
	var code string
	if i, err := strconv.Atoi(arg); err == nil && i >= 1 && i <= len(sandbox.Samples) {
		code = sandbox.Samples[i-1].Code
	} else if sample, ok := sandbox.SampleByName(arg); ok {
		code = sample.Code
	} else {
		s.r.Error(fmt.Sprintf("Unknown sample %q (see .samples)", arg))
		return
	}
	s.r.Println(s.r.Styles().Muted.Render(strings.TrimRight(code, "\n")))
	s.explore(ctx, code)
}

func (s *Shell) result() {
	ds := s.engine.LastResult()
	if ds == nil {
		s.r.Muted("The last snippet bound no result.")
		return
	}
	s.r.Dataset(ds, s.settings.Sandbox.PreviewRows)
}

// export handles ".export <datasets|dictionary|result> <dir> [--zip] [--delimiter=X]".
func (s *Shell) export(ctx context.Context, args []string) {
	req := engine.ExportRequest{}
	var positional []string
	for _, a := range args {
		switch {
		case a == "--zip":
			req.Archive = true
		case strings.HasPrefix(a, "--delimiter="):
			req.Delimiter = strings.TrimPrefix(a, "--delimiter=")
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) != 2 {
		s.usage(".export <datasets|dictionary|result> <dir> [--zip] [--delimiter=X]")
		return
	}
	req.Target = stage.ExportTarget(positional[0])
	req.Dir = positional[1]
	s.r.Outcome(s.engine.Export(ctx, req))
}

// sessionCommands lists the dot-commands for help and completion.
var sessionCommands = []struct {
	name  string
	usage string
	help  string
}{
	{".dict", ".dict <path> [--raw]", "Load (and standardize) a dictionary"},
	{".layout", ".layout [off]", "Parse the fixed-width layout, or turn it off"},
	{".extract", ".extract [source] <input>... [-- query]", "Extract datasets from files, URLs or DuckDB"},
	{".prune", ".prune [nan] [fraction]", "Drop columns with too many missing values"},
	{".merge", ".merge [similarity]", "Merge datasets with similar columns"},
	{".translate", ".translate [lang] [field...]", "Translate dictionary fields"},
	{".classify", ".classify [model]", "Classify dictionary variables"},
	{".select", ".select <cat,...> [key [v,...]]", "Keep category columns and matching rows"},
	{".columns", ".columns", "List the columns of the loaded datasets"},
	{".show", ".show [n]", "Preview loaded datasets"},
	{".run", ".run <file>", "Run a snippet file"},
	{".samples", ".samples", "List sample snippets"},
	{".sample", ".sample <n|name>", "Run a sample snippet"},
	{".result", ".result", "Show the last snippet result"},
	{".adopt", ".adopt", "Add the last snippet result as a dataset"},
	{".export", ".export <target> <dir> [--zip]", "Write datasets, dictionary or result as CSV"},
	{".status", ".status", "Show the session state"},
	{".history", ".history [n]", "Show recent stage runs"},
	{".reset", ".reset", "Clear the session"},
	{".clear", ".clear", "Clear the screen"},
	{".help", ".help", "Show this help message"},
	{".quit", ".quit / .exit", "Exit the session"},
}

func printSessionHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nCommands:")
	for _, c := range sessionCommands {
		_, _ = fmt.Fprintf(w, "  %-40s %s\n", c.usage, c.help)
	}
	_, _ = fmt.Fprint(w, `
Snippets:
  Any other input runs as a snippet. dataframes holds the loaded datasets,
  session the dictionary and layout; assign a table to result to keep it.
  A line ending in ":" or "\" starts a block that ends at a blank line.
`)
	_, _ = fmt.Fprintln(w)
}
