package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct{ logger *slog.Logger }

func (s *stubExtractor) Extract(context.Context, ExtractRequest) ([]*core.Dataset, error) {
	return nil, core.ErrNothingExtracted
}

func TestRegistry(t *testing.T) {
	const kind SourceKind = "stub-test"
	assert.False(t, IsRegistered(kind))

	Register(kind, func(l *slog.Logger) Extractor { return &stubExtractor{logger: l} })
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, kind)
		registryMu.Unlock()
	})

	assert.True(t, IsRegistered(kind))
	assert.Contains(t, ListSources(), kind)

	ex, err := NewExtractor(kind, nil)
	require.NoError(t, err)
	require.NotNil(t, ex.(*stubExtractor).logger, "nil logger replaced")
}

func TestNewExtractor_Unknown(t *testing.T) {
	_, err := NewExtractor("ftp", nil)
	var ue *UnknownSourceError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, SourceKind("ftp"), ue.Kind)
	assert.Contains(t, err.Error(), "Available sources")

	_, err = NewExtractor("", nil)
	assert.Error(t, err)
}
