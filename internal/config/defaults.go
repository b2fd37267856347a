package config

import (
	"time"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Default configuration values.
const (
	DefaultNaNThreshold        = 0.5
	DefaultSimilarityThreshold = 0.8
	DefaultSource              = "file"
	DefaultEncoding            = "utf-8"
	DefaultDepth               = 1
	DefaultHTTPTimeout         = 45 * time.Second
	DefaultLanguage            = "en"
	DefaultTranslateTimeout    = 30 * time.Second
	DefaultPreviewRows         = 10
	DefaultServerAddr          = "127.0.0.1:8080"
	DefaultMetricsNamespace    = "s4h"
)

// Defaults returns the flattened default values in koanf key form.
func Defaults() map[string]any {
	return map[string]any{
		"harmonize.nan_threshold":        DefaultNaNThreshold,
		"harmonize.similarity_threshold": DefaultSimilarityThreshold,
		"harmonize.sample_fraction":      0.0,
		"harmonize.seed":                 0,
		"extract.source":                 DefaultSource,
		"extract.encoding":               DefaultEncoding,
		"extract.depth":                  DefaultDepth,
		"extract.http_timeout":           DefaultHTTPTimeout.String(),
		"translate.language":             DefaultLanguage,
		"translate.fields":               core.TranslatableFields,
		"translate.timeout":              DefaultTranslateTimeout.String(),
		"sandbox.preview_rows":           DefaultPreviewRows,
		"server.addr":                    DefaultServerAddr,
		"metrics.enabled":                true,
		"metrics.namespace":              DefaultMetricsNamespace,
	}
}

// ApplyDefaults fills zero values that have defaults. It is used for
// settings built in code rather than loaded.
func (s *Settings) ApplyDefaults() {
	if s.Harmonize.NaNThreshold == 0 {
		s.Harmonize.NaNThreshold = DefaultNaNThreshold
	}
	if s.Harmonize.SimilarityThreshold == 0 {
		s.Harmonize.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if s.Extract.Source == "" {
		s.Extract.Source = DefaultSource
	}
	if s.Extract.HTTPTimeout == 0 {
		s.Extract.HTTPTimeout = DefaultHTTPTimeout
	}
	if s.Translate.Language == "" {
		s.Translate.Language = DefaultLanguage
	}
	if len(s.Translate.Fields) == 0 {
		s.Translate.Fields = core.TranslatableFields
	}
	if s.Translate.Timeout == 0 {
		s.Translate.Timeout = DefaultTranslateTimeout
	}
	if s.Sandbox.PreviewRows == 0 {
		s.Sandbox.PreviewRows = DefaultPreviewRows
	}
	if s.Server.Addr == "" {
		s.Server.Addr = DefaultServerAddr
	}
	if s.Metrics.Namespace == "" {
		s.Metrics.Namespace = DefaultMetricsNamespace
	}
}
