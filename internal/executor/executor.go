// Package executor runs translated commands as native processes and reports
// the outcome as a Result.
//
// A non-zero exit code is a normal outcome and is returned as data. Failures
// of the call itself (missing working directory, timeout, invalid timeout)
// are returned as *ExecutionError. Unexpected spawn or read faults are folded
// into an ERROR Result with exit code -1.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/jmgilman/xcmd/internal/exec"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/slogger"
	"github.com/jmgilman/xcmd/internal/translate"
)

// Sentinel errors wrapped by *ExecutionError.
var (
	ErrWorkingDirectory = errors.New("working directory does not exist or is not a directory")
	ErrTimeout          = errors.New("command exceeded the wait time")
	ErrInvalidTimeout   = errors.New("timeout out of range")
)

// MaxTimeout is the longest accepted timeout: the most whole seconds a
// time.Duration can hold.
const MaxTimeout = time.Duration(math.MaxInt64/int64(time.Second)) * time.Second

// ExecutionError is a call-level failure. Reason is the human-readable message
// reported to clients.
type ExecutionError struct {
	Reason string
	Err    error
}

func (e *ExecutionError) Error() string {
	return e.Reason
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Status is the coarse outcome of an execution.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Result describes a finished execution.
type Result struct {
	Status           Status    `json:"status" yaml:"status"`
	ExitCode         int       `json:"exitCode" yaml:"exitCode"`
	Output           string    `json:"output" yaml:"output"`
	ErrorOutput      string    `json:"errorOutput" yaml:"errorOutput"`
	ExecutedCommand  string    `json:"executedCommand" yaml:"executedCommand"`
	OperatingSystem  string    `json:"operatingSystem" yaml:"operatingSystem"`
	ExecutionTime    int64     `json:"executionTime" yaml:"executionTime"` // milliseconds
	ExecutedAt       time.Time `json:"executedAt" yaml:"executedAt"`
	Message          string    `json:"message" yaml:"message"`
	WorkingDirectory string    `json:"workingDirectory" yaml:"workingDirectory"`

	// Fault is the spawn or read failure behind a degraded result.
	Fault error `json:"-" yaml:"-"`
}

// Succeeded reports whether the command exited with code zero.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Mode selects how a command line is handed to the operating system.
type Mode string

const (
	// ModeRaw passes "<name> <arguments>" verbatim to the host shell. The
	// arguments are not escaped, so shell metacharacters are interpreted.
	ModeRaw Mode = "raw"

	// ModeDirect splits the line into an argument vector with shell quoting
	// rules and runs it without a shell.
	ModeDirect Mode = "direct"
)

// ParseMode converts a configuration value to a Mode. Empty means ModeRaw.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeDirect:
		return ModeDirect, nil
	}
	return "", fmt.Errorf("unknown execution mode %q (valid: raw, direct)", s)
}

// Options configures a single execution.
type Options struct {
	// WorkingDirectory must exist and be a directory. Empty uses the current
	// directory of this process.
	WorkingDirectory string

	// Timeout bounds the run. It must be positive and at most MaxTimeout.
	Timeout time.Duration
}

// Executor runs translated commands on the host.
type Executor struct {
	host      platform.Host
	runner    exec.Runner
	mode      Mode
	shell     []string
	killGrace time.Duration
	now       func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithMode sets the default execution mode used by Execute.
func WithMode(m Mode) Option {
	return func(e *Executor) {
		e.mode = m
	}
}

// WithShellPrefix overrides the interpreter invocation derived from the host.
func WithShellPrefix(prefix ...string) Option {
	return func(e *Executor) {
		e.shell = prefix
	}
}

// WithKillGrace sets how long output pipes may stay open after a kill.
func WithKillGrace(d time.Duration) Option {
	return func(e *Executor) {
		e.killGrace = d
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// New returns an Executor for host that spawns processes with runner.
func New(host platform.Host, runner exec.Runner, opts ...Option) *Executor {
	e := &Executor{
		host:   host,
		runner: runner,
		mode:   ModeRaw,
		shell:  host.ShellPrefix(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Host returns the host the executor runs commands on.
func (e *Executor) Host() platform.Host {
	return e.host
}

// Execute runs cmd with the executor's configured mode.
func (e *Executor) Execute(ctx context.Context, cmd translate.Command, opts Options) (*Result, error) {
	if e.mode == ModeDirect {
		return e.ExecuteDirect(ctx, cmd, opts)
	}
	return e.ExecuteUnsafeRaw(ctx, cmd, opts)
}

// ExecuteUnsafeRaw hands "<name> <arguments>" to the host shell unescaped.
// The shell prefix comes from the executing host, not from the platform the
// command was translated for.
func (e *Executor) ExecuteUnsafeRaw(ctx context.Context, cmd translate.Command, opts Options) (*Result, error) {
	dir, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}

	argv := make([]string, 0, len(e.shell)+1)
	argv = append(argv, e.shell...)
	argv = append(argv, cmd.Line())
	return e.run(ctx, argv, dir, opts)
}

// ExecuteDirect splits the command line with shell quoting rules and runs the
// resulting argument vector without an interpreter.
func (e *Executor) ExecuteDirect(ctx context.Context, cmd translate.Command, opts Options) (*Result, error) {
	dir, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}

	argv, err := shlex.Split(cmd.Line())
	if err == nil && len(argv) == 0 {
		err = errors.New("empty command line")
	}
	if err != nil {
		return e.degraded(cmd.Line(), dir, e.now(), fmt.Errorf("parse command line: %w", err)), nil
	}
	return e.run(ctx, argv, dir, opts)
}

// prepare validates opts before anything is spawned and returns the working
// directory reported in the result.
func (e *Executor) prepare(opts Options) (string, error) {
	if opts.Timeout <= 0 || opts.Timeout > MaxTimeout {
		return "", &ExecutionError{
			Reason: fmt.Sprintf("%s: %s must be greater than zero and at most %s", ErrInvalidTimeout, opts.Timeout, MaxTimeout),
			Err:    ErrInvalidTimeout,
		}
	}
	return workingDirectory(opts.WorkingDirectory)
}

func (e *Executor) run(ctx context.Context, argv []string, dir string, opts Options) (*Result, error) {
	log := slogger.L(ctx)
	executed := strings.Join(argv, " ")
	start := e.now()

	log.Info("executing command", "command", executed, "host", e.host.Platform, "dir", dir)

	res, err := e.runner.Run(ctx, &exec.RunOptions{
		Name:          argv[0],
		Args:          argv[1:],
		Dir:           opts.WorkingDirectory,
		Timeout:       opts.Timeout,
		LineSeparator: e.host.LineSeparator(),
		KillGrace:     e.killGrace,
	})
	if err != nil {
		if errors.Is(err, exec.ErrTimeout) {
			reason := fmt.Sprintf("command exceeded the wait time of %s seconds", seconds(opts.Timeout))
			log.Error(reason, "command", executed)
			return nil, &ExecutionError{Reason: reason, Err: ErrTimeout}
		}
		log.Error("command failed to run", "command", executed, "error", err)
		return e.degraded(executed, dir, start, err), nil
	}

	end := e.now()
	result := &Result{
		ExitCode:         res.ExitCode,
		Output:           res.Stdout,
		ErrorOutput:      res.Stderr,
		ExecutedCommand:  executed,
		OperatingSystem:  e.host.Description(),
		ExecutionTime:    end.Sub(start).Milliseconds(),
		ExecutedAt:       end,
		WorkingDirectory: dir,
	}
	if res.ExitCode == 0 {
		result.Status = StatusSuccess
		result.Message = "command executed successfully"
	} else {
		result.Status = StatusError
		result.Message = "command finished with error code " + strconv.Itoa(res.ExitCode)
	}

	log.Debug("command finished", "command", executed, "exit_code", res.ExitCode, "duration_ms", result.ExecutionTime)
	return result, nil
}

// degraded builds the ERROR result reported for spawn and read faults.
func (e *Executor) degraded(executed, dir string, start time.Time, cause error) *Result {
	end := e.now()
	return &Result{
		Status:           StatusError,
		ExitCode:         -1,
		ExecutedCommand:  executed,
		OperatingSystem:  e.host.Description(),
		ExecutionTime:    end.Sub(start).Milliseconds(),
		ExecutedAt:       end,
		Message:          "error executing command: " + cause.Error(),
		WorkingDirectory: dir,
		Fault:            cause,
	}
}

// workingDirectory checks dir and returns the absolute path reported in the
// result. An empty dir reports the current directory of this process.
func workingDirectory(dir string) (string, error) {
	if dir == "" {
		wd, _ := os.Getwd()
		return wd, nil
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", &ExecutionError{
			Reason: fmt.Sprintf("%s: %s", ErrWorkingDirectory, dir),
			Err:    ErrWorkingDirectory,
		}
	}

	if abs, err := filepath.Abs(dir); err == nil {
		return abs, nil
	}
	return dir, nil
}

// seconds renders d as whole seconds when it has no fractional part.
func seconds(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10)
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
