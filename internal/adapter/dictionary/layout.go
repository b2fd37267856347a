package dictionary

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// LayoutParser derives a fixed-width layout from a standardized
// dictionary's initial_position and size fields.
type LayoutParser struct {
	logger *slog.Logger
}

// NewLayoutParser creates a layout parser. A nil logger discards output.
func NewLayoutParser(logger *slog.Logger) *LayoutParser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LayoutParser{logger: logger}
}

// WidthError reports malformed width metadata for one variable.
type WidthError struct {
	Row      int
	Variable string
	Field    string
	Value    string
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("dictionary row %d (%s): %s %q is not a positive whole number",
		e.Row+1, e.Variable, e.Field, e.Value)
}

// ParseLayout implements adapter.LayoutParser. Positions are 1-based; a
// missing position continues from the end of the previous variable.
func (p *LayoutParser) ParseLayout(ctx context.Context, dict *core.Dataset) (*core.Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if missing := core.MissingFields(dict, core.FieldVariableName, core.FieldSize); len(missing) > 0 {
		return nil, fmt.Errorf("dictionary has no width metadata: missing %s", strings.Join(missing, ", "))
	}

	names := dict.Column(core.FieldVariableName).Values
	sizes := dict.Column(core.FieldSize).Values
	var positions []core.Value
	if c := dict.Column(core.FieldInitialPosition); c != nil {
		positions = c.Values
	}

	layout := &core.Layout{}
	end := 0
	for i := range names {
		if names[i].IsMissing() {
			continue
		}
		name := strings.TrimSpace(names[i].String())

		size, ok := wholeNumber(sizes[i])
		if !ok {
			return nil, &WidthError{Row: i, Variable: name, Field: core.FieldSize, Value: sizes[i].String()}
		}
		start := end
		if positions != nil && !positions[i].IsMissing() {
			pos, ok := wholeNumber(positions[i])
			if !ok {
				return nil, &WidthError{Row: i, Variable: name, Field: core.FieldInitialPosition, Value: positions[i].String()}
			}
			start = pos - 1
		}
		end = start + size
		layout.Names = append(layout.Names, name)
		layout.Specs = append(layout.Specs, core.Span{Start: start, End: end})
	}

	if len(layout.Names) == 0 {
		return nil, fmt.Errorf("dictionary lists no variables")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	p.logger.Debug("layout parsed", slog.Int("columns", len(layout.Names)), slog.Int("record_width", end))
	return layout, nil
}

// wholeNumber accepts numbers and numeric text such as "3" or "3.0".
func wholeNumber(v core.Value) (int, bool) {
	f, ok := v.Float()
	if !ok {
		s, isText := v.Str()
		if !isText {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
