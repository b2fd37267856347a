// Package config provides configuration management for the s4h CLI.
//
// This package embeds the shared workbench sections from internal/config
// and adds the CLI-only fields: log level, output mode and the path of the
// stage history database.
package config

import (
	intconfig "github.com/harmonize-tools/s4h-workbench/internal/config"
)

// Default configuration values.
const (
	DefaultLogLevel  = "warn"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultStateFile = ".s4h/history.db"
)

// Config holds all CLI configuration options.
type Config struct {
	LogLevel     string `koanf:"log_level"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	// StatePath is the stage history database. ":memory:" keeps history
	// for the lifetime of the process only.
	StatePath string `koanf:"state_path"`

	intconfig.Settings `koanf:",squash"`
}

// Level returns the effective log level name. Verbose forces debug.
func (c *Config) Level() string {
	if c.Verbose {
		return "debug"
	}
	return c.LogLevel
}

// defaults returns the flattened default values of every key.
func defaults() map[string]any {
	m := intconfig.Defaults()
	m["log_level"] = DefaultLogLevel
	m["verbose"] = false
	m["output"] = DefaultOutput
	m["state_path"] = DefaultStateFile
	return m
}
