package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Classifier implements adapter.Classifier with a YAML keyword model.
type Classifier struct {
	logger *slog.Logger
}

// New creates a classifier. A nil logger discards output.
func New(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{logger: logger}
}

// MissingFieldsError is returned when the dictionary lacks classifier input.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("dictionary is missing required fields %s\nHint: translate them first",
		strings.Join(e.Fields, ", "))
}

// Classify implements adapter.Classifier. The concatenated input fields of
// each row are scored against the model; the returned copy carries the
// category field.
func (c *Classifier) Classify(ctx context.Context, dict *core.Dataset, fields []string, model string) (*core.Dataset, error) {
	if missing := core.MissingFields(dict, fields...); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no input fields given")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("no model given")
	}
	m, err := LoadModel(model)
	if err != nil {
		return nil, err
	}

	cols := make([]*core.Column, len(fields))
	for i, f := range fields {
		cols[i] = dict.Column(f)
	}
	values := make([]core.Value, dict.NumRows())
	counts := make(map[string]int)
	for r := range values {
		if r%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		parts := make([]string, 0, len(cols))
		for _, col := range cols {
			if v := col.Values[r]; !v.IsMissing() {
				parts = append(parts, v.String())
			}
		}
		label := m.Predict(strings.Join(parts, " "))
		counts[label]++
		values[r] = core.Text(label)
	}

	out := dict.Clone()
	if out.HasColumn(core.FieldCategory) {
		err = out.SetColumn(core.FieldCategory, values)
	} else {
		err = out.AddColumn(core.NewColumn(core.FieldCategory, values...))
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("dictionary classified",
		slog.String("model", model),
		slog.Int("rows", len(values)),
		slog.Any("counts", counts))
	return out, nil
}
