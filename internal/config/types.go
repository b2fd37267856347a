// Package config provides the workbench configuration sections shared by
// the CLI, the pipeline runner and the HTTP server.
package config

import (
	"time"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// HarmonizeConfig holds the default threshold parameters.
type HarmonizeConfig struct {
	NaNThreshold        float64 `koanf:"nan_threshold" validate:"gte=0,lte=1"`
	SimilarityThreshold float64 `koanf:"similarity_threshold" validate:"gte=0,lte=1"`
	SampleFraction      float64 `koanf:"sample_fraction" validate:"gte=0,lte=1"`
	// Seed makes sampled pruning reproducible. Zero seeds from the clock.
	Seed uint64 `koanf:"seed"`
}

// PruneParams returns the pruning parameters of this section.
func (h HarmonizeConfig) PruneParams() core.PruneParams {
	return core.PruneParams{NaNThreshold: h.NaNThreshold, SampleFraction: h.SampleFraction}
}

// MergeParams returns the merge parameters of this section.
func (h HarmonizeConfig) MergeParams() core.MergeParams {
	return core.MergeParams{SimilarityThreshold: h.SimilarityThreshold}
}

// ExtractConfig holds extraction defaults.
type ExtractConfig struct {
	Source      string        `koanf:"source" validate:"omitempty,oneof=file http duckdb"`
	Separator   string        `koanf:"separator"`
	Encoding    string        `koanf:"encoding" validate:"omitempty,oneof=utf-8 utf8 latin1 iso-8859-1 cp1252"`
	Extensions  []string      `koanf:"extensions"`
	OutputDir   string        `koanf:"output_dir"`
	Depth       int           `koanf:"depth" validate:"gte=0,lte=5"`
	Keywords    []string      `koanf:"keywords"`
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}

// TranslateConfig configures the translation endpoint.
type TranslateConfig struct {
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	APIKey   string        `koanf:"api_key"`
	Language string        `koanf:"language" validate:"required"`
	Fields   []string      `koanf:"fields"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ClassifyConfig configures the keyword classifier.
type ClassifyConfig struct {
	Model string `koanf:"model"`
}

// SandboxConfig holds the opt-in sandbox hardening knobs.
type SandboxConfig struct {
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxSteps    uint64        `koanf:"max_steps"`
	PreviewRows int           `koanf:"preview_rows" validate:"gte=1"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// Settings groups every section.
type Settings struct {
	Harmonize HarmonizeConfig `koanf:"harmonize"`
	Extract   ExtractConfig   `koanf:"extract"`
	Translate TranslateConfig `koanf:"translate"`
	Classify  ClassifyConfig  `koanf:"classify"`
	Sandbox   SandboxConfig   `koanf:"sandbox"`
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}
