package config

import (
	"fmt"
	"strings"
	"time"
)

// Circuit breaker defaults for the item catalog lookup.
const (
	DefaultConsecutiveFailures = 5
	DefaultOpenTimeout         = 30 * time.Second
	DefaultHalfOpenRequests    = 3
)

type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// CircuitBreakerConfig guards the item catalog lookup done before a variant is added.
// ErrorRatePercent 0 disables the failure-ratio trip, leaving only the consecutive one.
type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
	HalfOpenRequests    uint32        `koanf:"halfopenrequests"`
}

// String returns a string representation of the ResilienceConfig.
func (c *ResilienceConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Catalog circuit breaker ---\n")
	b.WriteString(fmt.Sprintf("  consecutivefailures: %d\n", c.CircuitBreaker.ConsecutiveFailures))
	b.WriteString(fmt.Sprintf("  errorratepercent: %d\n", c.CircuitBreaker.ErrorRatePercent))
	b.WriteString(fmt.Sprintf("  opentimeout: %v\n", c.CircuitBreaker.OpenTimeout))
	b.WriteString(fmt.Sprintf("  halfopenrequests: %d\n", c.CircuitBreaker.HalfOpenRequests))
	return b.String()
}

// Validate fills in the defaults for unset breaker settings.
func (c *ResilienceConfig) Validate() error {
	cb := &c.CircuitBreaker
	if cb.ConsecutiveFailures == 0 {
		cb.ConsecutiveFailures = DefaultConsecutiveFailures
	}
	if cb.HalfOpenRequests == 0 {
		cb.HalfOpenRequests = DefaultHalfOpenRequests
	}
	if cb.OpenTimeout == 0 {
		cb.OpenTimeout = DefaultOpenTimeout
	}
	if cb.ErrorRatePercent < 0 || cb.ErrorRatePercent > 100 {
		return fmt.Errorf("circuitbreaker.errorratepercent must be between 0 and 100, got %d", cb.ErrorRatePercent)
	}
	if cb.OpenTimeout < 0 {
		return fmt.Errorf("circuitbreaker.opentimeout must not be negative, got %s", cb.OpenTimeout)
	}
	return nil
}
