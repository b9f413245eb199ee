package probes

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkReady(t *testing.T) {
	// given
	file := filepath.Join(t.TempDir(), "ready")

	// when
	cleanup, err := MarkReady(file)

	// then
	require.NoError(t, err)
	assert.FileExists(t, file)
	cleanup()
	assert.NoFileExists(t, file)
}

func TestRunLiveness(t *testing.T) {
	// given
	file := filepath.Join(t.TempDir(), "live")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// when
	go func() { done <- RunLiveness(ctx, file, 10*time.Millisecond, slog.Default()) }()

	// then
	require.Eventually(t, func() bool {
		_, err := os.Stat(file)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.NoFileExists(t, file)
}
