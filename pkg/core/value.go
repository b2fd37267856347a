package core

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies the kind of scalar held by a Value.
type ValueKind uint8

// Value kinds.
const (
	KindMissing ValueKind = iota
	KindNumber
	KindText
)

// String returns the lower-case kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// Value is a single table cell. The zero Value is the missing marker.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

// Missing returns the explicit missing-value marker.
func Missing() Value { return Value{} }

// Number returns a numeric cell. NaN is stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text cell.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// missingTokens are the raw strings adapters read as missing values.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
	"n/a":  true,
}

// IsMissingToken reports whether a raw cell string denotes a missing value.
func IsMissingToken(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

// ParseValue converts a raw string cell into a Value: missing tokens become
// Missing, decimal numbers become Number, anything else becomes trimmed
// Text.
func ParseValue(s string) Value {
	if IsMissingToken(s) {
		return Missing()
	}
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) {
		// Identifier-like values with leading zeros keep their text form.
		if len(trimmed) > 1 && trimmed[0] == '0' && trimmed[1] != '.' {
			return Text(trimmed)
		}
		return Number(f)
	}
	return Text(trimmed)
}

// Kind returns the value kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsMissing reports whether the value is the missing marker.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the text payload and whether the value is text.
func (v Value) Str() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// String renders the value the way it is written to delimited text.
// Missing renders as the empty string; integral numbers have no fraction.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatFloat(v.num, 'f', -1, 64)
		}
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}
