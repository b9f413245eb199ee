package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultShutdownTimeout is used when no shutdown timeout is configured.
const DefaultShutdownTimeout = 10 * time.Second

// ShutdownConfig bounds how long the servers, the NATS subscriber and the telemetry
// exporters may take to stop once the process is signalled.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("shutdown timeout must not be negative: %s", c.Timeout)
	case c.Timeout == 0:
		c.Timeout = DefaultShutdownTimeout
	}
	return nil
}

// Context returns a fresh context bounded by Timeout. It does not derive from the
// signal context, which is already done when shutdown starts.
func (c *ShutdownConfig) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.Timeout)
}
