// Package probes maintains the marker files used by file-based readiness and liveness probes.
package probes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// MarkReady creates the readiness file. It returns a function that removes it.
func MarkReady(fileName string) (func(), error) {
	if err := touch(fileName); err != nil {
		return nil, fmt.Errorf("failed to create readiness file: %w", err)
	}
	return func() { _ = os.Remove(fileName) }, nil
}

// RunLiveness touches fileName every interval until ctx is done, then removes it.
func RunLiveness(ctx context.Context, fileName string, interval time.Duration, logger *slog.Logger) error {
	defer func() { _ = os.Remove(fileName) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := touch(fileName); err != nil {
			logger.Error("failed to update liveness file", "file", fileName, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func touch(fileName string) error {
	now := time.Now()
	if err := os.Chtimes(fileName, now, now); err == nil {
		return nil
	}
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	return f.Close()
}
