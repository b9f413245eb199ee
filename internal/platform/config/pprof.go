package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPProfAddr keeps the profiler on loopback unless an address is configured.
const DefaultPProfAddr = "localhost:6060"

// PProfConfig exposes net/http/pprof on its own listener, apart from the REST API.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// String returns a string representation of the pprof configuration.
func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if c.Enabled {
		b.WriteString(fmt.Sprintf("  address: %s\n", c.Addr))
	}
	return b.String()
}

// Validate fills in DefaultPProfAddr and requires an explicit host and a valid port,
// so the profiler never binds every interface by accident.
func (c *PProfConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		c.Addr = DefaultPProfAddr
	}
	host, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("invalid pprof address %q: %w", c.Addr, err)
	}
	if host == "" {
		return fmt.Errorf("pprof address %q must name a host", c.Addr)
	}
	if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid pprof port %q", port)
	}
	return nil
}
