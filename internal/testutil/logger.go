// Package testutil provides shared helpers for tests: a logger that writes
// to t.Log and small dataset fixtures.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger returns a debug-level logger whose records go to t.Log, so
// they show up only for failing tests or under -v.
func NewTestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	h := slog.NewTextHandler(logWriter{tb}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h)
}

// logWriter forwards one handler record per Write to t.Log.
type logWriter struct {
	tb testing.TB
}

func (w logWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
