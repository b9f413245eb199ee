package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type ProbesConfig struct {
	ReadinessFileName string        `koanf:"readinessfilename"`
	LivenessFileName  string        `koanf:"livenessfilename"`
	LivenessInterval  time.Duration `koanf:"livenessinterval"`
}

const (
	defaultReadinessFileName = "/tmp/option-service-ready"
	defaultLivenessFileName  = "/tmp/option-service-live"
	defaultLivenessInterval  = 20 * time.Second
)

// String returns a string representation of the ProbesConfig.
func (c *ProbesConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Probes ---\n")
	b.WriteString(fmt.Sprintf("  readinessfilename: %s\n", c.ReadinessFileName))
	b.WriteString(fmt.Sprintf("  livenessfilename: %s\n", c.LivenessFileName))
	b.WriteString(fmt.Sprintf("  livenessinterval: %s\n", c.LivenessInterval))
	return b.String()
}

// Validate fills in defaults for missing values, it never fails.
func (c *ProbesConfig) Validate() error {
	if c.ReadinessFileName == "" {
		slog.Info("using default value for probes.readinessfilename", "value", defaultReadinessFileName)
		c.ReadinessFileName = defaultReadinessFileName
	}
	if c.LivenessFileName == "" {
		slog.Info("using default value for probes.livenessfilename", "value", defaultLivenessFileName)
		c.LivenessFileName = defaultLivenessFileName
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = defaultLivenessInterval
	}
	return nil
}
