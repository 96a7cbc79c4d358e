package config

import (
	"fmt"
	"strings"
)

// LogConfig selects the minimum log level. The output format follows APP_ENV
// (console writer for "dev", JSON otherwise).
type LogConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return nil
	}
	return fmt.Errorf("log: unknown level %q", c.Level)
}
