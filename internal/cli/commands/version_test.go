package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-tools/s4h-workbench/internal/cli/config"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		info    BuildInfo
		wantOut []string
	}{
		{"release", BuildInfo{Version: "0.1.0"}, []string{"s4h v0.1.0", "harmonization"}},
		{"with commit", BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"}, []string{"s4h v1.2.3", "commit abc123, built 2026-01-02"}},
		{"dev", BuildInfo{Version: "dev"}, []string{"s4h vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{})

			require.NoError(t, cmd.Execute())
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "1.0.0", Commit: "abc"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	cfg := config.Default()
	cfg.OutputFormat = "json"
	ctx := context.WithValue(context.Background(), config.ConfigKey(), cfg)
	require.NoError(t, cmd.ExecuteContext(ctx))

	var got BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "abc", got.Commit)
	assert.NotEmpty(t, got.Go)
}
