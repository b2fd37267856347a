package core

import "fmt"

// Span is a half-open byte range [Start, End) of a fixed-width record.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Width returns the span width.
func (s Span) Width() int { return s.End - s.Start }

// Layout is a parsed fixed-width file layout: one name per span.
type Layout struct {
	Names []string `json:"names"`
	Specs []Span   `json:"specs"`
}

// Validate checks that names and spans line up and every span is well formed.
func (l *Layout) Validate() error {
	if l == nil {
		return fmt.Errorf("layout is nil")
	}
	if len(l.Names) != len(l.Specs) {
		return fmt.Errorf("layout has %d names but %d spans", len(l.Names), len(l.Specs))
	}
	for i, s := range l.Specs {
		if s.Start < 0 || s.End <= s.Start {
			return fmt.Errorf("layout span %d (%s) is invalid: [%d, %d)", i, l.Names[i], s.Start, s.End)
		}
	}
	return nil
}

// Slice cuts one fixed-width record into raw cell strings. Spans beyond
// the end of the record yield empty strings.
func (l *Layout) Slice(record string) []string {
	out := make([]string, len(l.Specs))
	for i, s := range l.Specs {
		if s.Start >= len(record) {
			continue
		}
		end := s.End
		if end > len(record) {
			end = len(record)
		}
		out[i] = record[s.Start:end]
	}
	return out
}
