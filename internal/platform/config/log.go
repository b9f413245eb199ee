package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LogConfig selects the level of the JSON service logger.
type LogConfig struct {
	Level string `koanf:"level"`
}

// String returns a string representation of the log configuration.
func (c *LogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Log ---\n")
	b.WriteString(fmt.Sprintf("  level: %s\n", c.Level))
	return b.String()
}

// Validate lower-cases the level and defaults an empty one to info.
func (c *LogConfig) Validate() error {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if c.Level == "" {
		c.Level = "info"
		return nil
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("unknown log level: %s", c.Level)
	}
	return nil
}

// SlogLevel parses Level with slog's own syntax, so offsets such as "debug+2" are accepted.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Level))
	return level, err
}
