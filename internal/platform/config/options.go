package config

import (
	"fmt"
	"strings"
)

// OptionsConfig tunes the option read API.
type OptionsConfig struct {
	// AllowEmptyList makes listing the options of an item with none return an empty list instead of not found.
	AllowEmptyList bool `koanf:"allowEmptyList"`
}

func (c *OptionsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Options ---\n")
	b.WriteString(fmt.Sprintf("  allowEmptyList: %t\n", c.AllowEmptyList))
	return b.String()
}
