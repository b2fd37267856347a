package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/dictionary"
	"github.com/harmonize-tools/s4h-workbench/internal/harmonize"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// DefaultLanguage is the translation target used when none is given.
const DefaultLanguage = "en"

// LoadDictionary reads a dictionary file. When standardize is set the raw
// table goes through the standardizer; otherwise the file must already be
// in the canonical schema (for instance a previously exported dictionary).
func (e *Engine) LoadDictionary(ctx context.Context, path string, opts adapter.ParseOptions, standardize bool) Outcome {
	params := map[string]any{"path": path, "standardize": standardize}
	return e.run(ctx, stage.Standardize, params, nil, func(ctx context.Context) (string, []string, error) {
		raw, err := dictionary.Load(path, opts)
		if err != nil {
			return "", nil, core.Collaborator("dictionary loader", err)
		}
		dict := raw
		if standardize {
			if dict, err = e.standardize(ctx, raw); err != nil {
				return "", nil, err
			}
		} else if !dict.HasColumn(core.FieldVariableName) {
			return "", nil, &core.ParamError{Param: "dictionary", Reason: "file has no variable_name field; standardize it first"}
		}
		dict.SetName(filepath.Base(path))
		e.store.SetDictionary(dict)
		return fmt.Sprintf("Dictionary loaded with %d variables.", dict.NumRows()),
			[]string{"fields: " + strings.Join(dict.ColumnNames(), ", ")}, nil
	})
}

// StandardizeDictionary standardizes an in-memory raw dictionary and makes
// it the active one.
func (e *Engine) StandardizeDictionary(ctx context.Context, raw *core.Dataset) Outcome {
	return e.run(ctx, stage.Standardize, nil, nil, func(ctx context.Context) (string, []string, error) {
		dict, err := e.standardize(ctx, raw)
		if err != nil {
			return "", nil, err
		}
		e.store.SetDictionary(dict)
		return fmt.Sprintf("Dictionary standardized: %d variables.", dict.NumRows()), nil, nil
	})
}

func (e *Engine) standardize(ctx context.Context, raw *core.Dataset) (*core.Dataset, error) {
	if e.standardizer == nil {
		return nil, core.Collaborator("standardizer", fmt.Errorf("not configured"))
	}
	dict, err := e.standardizer.Standardize(ctx, raw)
	if err != nil {
		return nil, core.Collaborator("standardizer", err)
	}
	if core.IsEmpty(dict) {
		return nil, core.Collaborator("standardizer", fmt.Errorf("returned an empty dictionary"))
	}
	return dict, nil
}

// ParseLayout derives the fixed-width layout from the active dictionary
// and switches extraction of .txt files to fixed-width parsing.
func (e *Engine) ParseLayout(ctx context.Context) Outcome {
	return e.run(ctx, stage.Layout, nil, nil, func(ctx context.Context) (string, []string, error) {
		if e.layouts == nil {
			return "", nil, core.Collaborator("layout parser", fmt.Errorf("not configured"))
		}
		layout, err := e.layouts.ParseLayout(ctx, e.store.Dictionary())
		if err != nil {
			return "", nil, core.Collaborator("layout parser", err)
		}
		if err := layout.Validate(); err != nil {
			return "", nil, core.Collaborator("layout parser", err)
		}
		e.store.SetFixedWidth(true, layout)
		details := make([]string, len(layout.Names))
		for i, n := range layout.Names {
			details[i] = fmt.Sprintf("%s [%d, %d)", n, layout.Specs[i].Start, layout.Specs[i].End)
		}
		return fmt.Sprintf("Fixed-width layout parsed: %d columns.", len(layout.Names)), details, nil
	})
}

// DisableFixedWidth turns fixed-width parsing off and drops the layout.
func (e *Engine) DisableFixedWidth() {
	e.store.SetFixedWidth(false, nil)
}

// Extract runs an extractor and appends what it produced. In fixed-width
// mode the session layout is passed to the extractor.
func (e *Engine) Extract(ctx context.Context, req adapter.ExtractRequest) Outcome {
	if req.Kind == "" {
		req.Kind = adapter.SourceFile
	}
	if e.store.FixedWidth() && req.Options.Layout == nil {
		req.Options.Layout = e.store.Layout()
	}
	params := map[string]any{"kind": req.Kind, "inputs": req.Inputs, "depth": req.Depth, "keywords": req.Keywords}
	return e.run(ctx, stage.Extract, params, nil, func(ctx context.Context) (string, []string, error) {
		if len(req.Inputs) == 0 && req.Query == "" {
			return "", nil, &core.ParamError{Param: "inputs", Reason: "give at least one path or URL"}
		}
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}
		ex, err := e.extractors(req.Kind, e.logger)
		if err != nil {
			return "", nil, &core.ParamError{Param: "kind", Reason: err.Error()}
		}
		datasets, err := ex.Extract(ctx, req)
		if err != nil {
			return "", nil, core.Collaborator(string(req.Kind)+" extractor", err)
		}
		if len(datasets) == 0 {
			return "", nil, core.ErrNothingExtracted
		}
		e.store.Add(datasets...)
		details := make([]string, len(datasets))
		for i, ds := range datasets {
			details[i] = fmt.Sprintf("%s: %d rows x %d columns", ds.Name(), ds.NumRows(), ds.NumCols())
		}
		return fmt.Sprintf("Extracted %d dataset(s).", len(datasets)), details, nil
	})
}

// Prune drops columns whose missing ratio exceeds the threshold.
func (e *Engine) Prune(ctx context.Context, params core.PruneParams) Outcome {
	return e.run(ctx, stage.Prune, params, nil, func(ctx context.Context) (string, []string, error) {
		datasets := e.store.Datasets()
		e.mu.Lock()
		out, err := harmonize.PruneNaN(datasets, params, e.rng)
		e.mu.Unlock()
		if err != nil {
			return "", nil, err
		}
		e.store.ReplaceAll(out)

		var details []string
		dropped := 0
		for i, ds := range out {
			n := datasets[i].NumCols() - ds.NumCols()
			dropped += n
			if n > 0 {
				details = append(details, fmt.Sprintf("%s: %d column(s) dropped, %d kept", ds.Name(), n, ds.NumCols()))
			}
		}
		msg := fmt.Sprintf("Pruned %d column(s) above %.2f missing.", dropped, params.NaNThreshold)
		if params.Sampling() {
			msg += fmt.Sprintf(" Ratios estimated from a %.0f%% sample.", params.SampleFraction*100)
		}
		return msg, details, nil
	})
}

// Merge stacks datasets with similar schemas.
func (e *Engine) Merge(ctx context.Context, params core.MergeParams) Outcome {
	return e.run(ctx, stage.Merge, params, nil, func(ctx context.Context) (string, []string, error) {
		datasets := e.store.Datasets()
		out, err := harmonize.VerticalMerge(datasets, e.store.Dictionary(), params)
		if err != nil {
			return "", nil, err
		}
		e.store.ReplaceAll(out)
		details := make([]string, len(out))
		for i, ds := range out {
			details[i] = fmt.Sprintf("%s: %d rows x %d columns", ds.Name(), ds.NumRows(), ds.NumCols())
		}
		return fmt.Sprintf("Merged %d dataset(s) into %d.", len(datasets), len(out)), details, nil
	})
}

// Select keeps the columns of the chosen categories and, with a key
// column, the rows whose key is listed.
func (e *Engine) Select(ctx context.Context, params core.SelectParams) Outcome {
	return e.run(ctx, stage.Select, params, nil, func(ctx context.Context) (string, []string, error) {
		out, err := harmonize.SelectData(e.store.Datasets(), e.store.Dictionary(), params)
		if err != nil {
			return "", nil, err
		}
		e.store.ReplaceAll(out)
		rows := 0
		for _, ds := range out {
			rows += ds.NumRows()
		}
		return fmt.Sprintf("Selected %d row(s) across %d dataset(s).", rows, len(out)), nil, nil
	})
}

// AvailableColumns lists the union of column names of the loaded datasets.
func (e *Engine) AvailableColumns() []string {
	return harmonize.Columns(e.store.Datasets())
}

// Translate adds <field>_<lang> for each field. The dictionary is replaced
// only when every field translated.
func (e *Engine) Translate(ctx context.Context, fields []string, lang string) Outcome {
	if len(fields) == 0 {
		fields = core.TranslatableFields
	}
	if strings.TrimSpace(lang) == "" {
		lang = DefaultLanguage
	}
	params := map[string]any{"fields": fields, "language": lang}
	return e.run(ctx, stage.Translate, params, nil, func(ctx context.Context) (string, []string, error) {
		if e.translator == nil {
			return "", nil, core.Collaborator("translator", fmt.Errorf("not configured"))
		}
		dict := e.store.Dictionary()
		var details []string
		translated := 0
		for _, f := range fields {
			if !dict.HasColumn(f) {
				details = append(details, fmt.Sprintf("%s: skipped, not in dictionary", f))
				continue
			}
			next, err := e.translator.Translate(ctx, dict, f, lang)
			if err != nil {
				return "", nil, core.Collaborator("translator", fmt.Errorf("%s: %w", f, err))
			}
			dict = next
			translated++
			details = append(details, fmt.Sprintf("%s translated into %s", f, core.TranslatedField(f, lang)))
		}
		if translated == 0 {
			return "", nil, &core.ParamError{Param: "fields", Reason: fmt.Sprintf("none of %s is in the dictionary", strings.Join(fields, ", "))}
		}
		e.store.SetDictionary(dict)
		return fmt.Sprintf("Translated %d field(s).", translated), details, nil
	})
}

// Classify writes the category field using the model and remembers the
// model reference.
func (e *Engine) Classify(ctx context.Context, model, lang string) Outcome {
	if strings.TrimSpace(lang) == "" {
		lang = DefaultLanguage
	}
	if model == "" {
		model = e.store.ModelPath()
	}
	params := map[string]any{"model": model, "language": lang}
	return e.run(ctx, stage.Classify, params, nil, func(ctx context.Context) (string, []string, error) {
		if model == "" {
			return "", nil, &core.ParamError{Param: "model", Reason: "no classifier model given"}
		}
		if e.classifier == nil {
			return "", nil, core.Collaborator("classifier", fmt.Errorf("not configured"))
		}
		dict, err := e.classifier.Classify(ctx, e.store.Dictionary(), core.ClassifierInputFields(lang), model)
		if err != nil {
			return "", nil, core.Collaborator("classifier", err)
		}
		if !dict.HasColumn(core.FieldCategory) {
			return "", nil, core.Collaborator("classifier", fmt.Errorf("result has no %s field", core.FieldCategory))
		}
		e.store.SetDictionary(dict)
		e.store.SetModelPath(model)

		counts := make(map[string]int)
		var order []string
		for _, v := range dict.Column(core.FieldCategory).Values {
			label := v.String()
			if _, ok := counts[label]; !ok {
				order = append(order, label)
			}
			counts[label]++
		}
		details := make([]string, len(order))
		for i, label := range order {
			details[i] = fmt.Sprintf("%s: %d", label, counts[label])
		}
		e.logger.Debug("classification counts", slog.Any("counts", counts))
		return fmt.Sprintf("Dictionary classified into %d categories.", len(order)), details, nil
	})
}
