// Package exec provides an abstraction over running child processes and
// capturing their output.
package exec

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a process is killed because its deadline passed.
var ErrTimeout = errors.New("process exceeded its deadline")

// Result holds the output from a completed process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunOptions configures process execution.
type RunOptions struct {
	Name string   // Command name or path (required)
	Args []string // Command arguments
	Dir  string   // Working directory (empty = current)

	// Timeout bounds the whole run. Zero means only ctx applies.
	Timeout time.Duration

	// LineSeparator terminates every captured line, replacing the line ending
	// the process wrote. Empty keeps output byte-for-byte.
	LineSeparator string

	// KillGrace is how long to wait for output pipes to close after the
	// process group was killed before they are closed forcibly.
	// Zero uses DefaultKillGrace.
	KillGrace time.Duration
}

// DefaultKillGrace is used when RunOptions.KillGrace is zero.
const DefaultKillGrace = 2 * time.Second

// Runner runs child processes.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/runner.go . Runner
type Runner interface {
	// Run starts a process, drains stdout and stderr concurrently, and waits
	// for it to exit. A non-zero exit code is reported in Result, not as an
	// error. When the deadline passes the whole process group is killed and
	// an error wrapping ErrTimeout is returned with a nil Result.
	Run(ctx context.Context, opts *RunOptions) (*Result, error)
}
