package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the CLI fields and every shared section.
func (c *Config) Validate() error {
	if err := validate.Var(c.LogLevel, "oneof=debug info warn error"); err != nil {
		return fmt.Errorf("invalid configuration:\n  log_level: must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	if err := validate.Var(c.OutputFormat, "oneof=auto text markdown json"); err != nil {
		return fmt.Errorf("invalid configuration:\n  output: must be one of auto, text, markdown, json (got %q)\nHint: use --output text", c.OutputFormat)
	}
	if c.StatePath == "" {
		return fmt.Errorf("invalid configuration:\n  state_path is required")
	}
	return c.Settings.Validate()
}
