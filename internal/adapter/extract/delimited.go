package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// ReadDelimited parses delimited text with a header row. Short records are
// padded with missing values.
func ReadDelimited(r io.Reader, name, separator string) (*core.Dataset, error) {
	sep, err := separatorRune(separator)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.EmptyDataset(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", name, err)
	}
	names := headerNames(header)

	raw := make([][]string, len(names))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		if len(rec) > len(names) {
			return nil, fmt.Errorf("%s: line %d has %d fields, header has %d", name, line, len(rec), len(names))
		}
		for j := range names {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			raw[j] = append(raw[j], cell)
		}
	}
	return buildDataset(name, names, raw)
}

func separatorRune(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid separator %q: must be a single character", s)
	}
	return r, nil
}

// headerNames trims header cells, names blank ones column_<i> and makes
// duplicates unique with a numeric suffix.
func headerNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := trimCell(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		out[i] = name
	}
	return out
}

func buildDataset(name string, names []string, raw [][]string) (*core.Dataset, error) {
	cols := make([]*core.Column, len(names))
	for j, n := range names {
		cols[j] = core.TextColumn(n, raw[j]...)
	}
	return core.NewDataset(name, cols...)
}
