//go:build !windows

package exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New()
	require.NotNil(t, r)
}

func TestRunner_Run(t *testing.T) {
	r := New()

	t.Run("captures stdout", func(t *testing.T) {
		result, err := r.Run(context.Background(), &RunOptions{
			Name: "echo",
			Args: []string{"hello"},
		})

		require.NoError(t, err)
		assert.Equal(t, "hello\n", result.Stdout)
		assert.Empty(t, result.Stderr)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("captures stderr separately", func(t *testing.T) {
		result, err := r.Run(context.Background(), &RunOptions{
			Name: "sh",
			Args: []string{"-c", "echo out; echo error >&2"},
		})

		require.NoError(t, err)
		assert.Equal(t, "out\n", result.Stdout)
		assert.Equal(t, "error\n", result.Stderr)
	})

	t.Run("reports non-zero exit without error", func(t *testing.T) {
		result, err := r.Run(context.Background(), &RunOptions{
			Name: "sh",
			Args: []string{"-c", "exit 42"},
		})

		require.NoError(t, err)
		assert.Equal(t, 42, result.ExitCode)
	})

	t.Run("normalizes line separators", func(t *testing.T) {
		result, err := r.Run(context.Background(), &RunOptions{
			Name:          "printf",
			Args:          []string{`a\r\nb\nc`},
			LineSeparator: "\r\n",
		})

		require.NoError(t, err)
		assert.Equal(t, "a\r\nb\r\nc\r\n", result.Stdout, "unterminated last line gets a separator")
	})

	t.Run("keeps raw output without separator", func(t *testing.T) {
		result, err := r.Run(context.Background(), &RunOptions{
			Name: "printf",
			Args: []string{"no newline"},
		})

		require.NoError(t, err)
		assert.Equal(t, "no newline", result.Stdout)
	})

	t.Run("respects working directory", func(t *testing.T) {
		result, err := r.Run(context.Background(), &RunOptions{
			Name: "pwd",
			Dir:  "/tmp",
		})

		require.NoError(t, err)
		// On macOS, /tmp is a symlink to /private/tmp
		assert.Contains(t, result.Stdout, "/tmp")
	})

	t.Run("drains large interleaved output without deadlock", func(t *testing.T) {
		// Each stream writes well past a 64KiB pipe buffer.
		script := `i=0; while [ $i -lt 5000 ]; do echo "stdout line $i"; echo "stderr line $i" >&2; i=$((i+1)); done`

		result, err := r.Run(context.Background(), &RunOptions{
			Name:    "sh",
			Args:    []string{"-c", script},
			Timeout: 30 * time.Second,
		})

		require.NoError(t, err)
		assert.Equal(t, 5000, strings.Count(result.Stdout, "\n"))
		assert.Equal(t, 5000, strings.Count(result.Stderr, "\n"))
	})

	t.Run("kills the process group on timeout", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "marker")

		start := time.Now()
		result, err := r.Run(context.Background(), &RunOptions{
			Name:    "sh",
			Args:    []string{"-c", "sleep 2 && touch " + marker},
			Timeout: 200 * time.Millisecond,
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTimeout), "expected ErrTimeout, got: %v", err)
		assert.Nil(t, result)
		assert.Less(t, time.Since(start), 2*time.Second)

		// The child sleep must have died with its shell.
		time.Sleep(2500 * time.Millisecond)
		_, statErr := os.Stat(marker)
		assert.True(t, os.IsNotExist(statErr), "marker should not exist after kill")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		_, err := r.Run(ctx, &RunOptions{
			Name: "sleep",
			Args: []string{"10"},
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("returns error for nonexistent command", func(t *testing.T) {
		_, err := r.Run(context.Background(), &RunOptions{
			Name: "nonexistent_command_12345",
		})

		require.Error(t, err)
	})
}

func TestDrain(t *testing.T) {
	out, err := drain(strings.NewReader("one\ntwo\r\nthree"), "\n")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", out)

	out, err = drain(strings.NewReader(""), "\n")
	require.NoError(t, err)
	assert.Empty(t, out)
}
