package exec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type runner struct{}

// New returns a Runner that uses os/exec.
func New() Runner {
	return &runner{}
}

func (r *runner) Run(ctx context.Context, opts *RunOptions) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// G204: This is intentional - running caller-supplied commands is the point.
	cmd := exec.Command(opts.Name, opts.Args...) //nolint:gosec // Intentional subprocess execution

	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Name, err)
	}

	grace := opts.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	var killed atomic.Bool
	exited := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			killed.Store(true)
			_ = killProcessGroup(cmd.Process)
			// A descendant that left the group can keep the pipes open.
			select {
			case <-exited:
			case <-time.After(grace):
				_ = stdout.Close()
				_ = stderr.Close()
			}
		case <-exited:
		}
	}()

	// Both pipes are drained at once so a child blocked on a full stderr
	// buffer cannot stall the stdout reader.
	var out, errOut string
	var g errgroup.Group
	g.Go(func() error {
		var err error
		out, err = drain(stdout, opts.LineSeparator)
		return err
	})
	g.Go(func() error {
		var err error
		errOut, err = drain(stderr, opts.LineSeparator)
		return err
	})
	drainErr := g.Wait()
	waitErr := cmd.Wait()
	close(exited)
	<-watcherDone

	// The deadline can pass after the process already exited on its own.
	// Only a process that was actually terminated counts as timed out.
	if killed.Load() && terminated(cmd.ProcessState) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout)
		}
		return nil, fmt.Errorf("process canceled: %w", ctx.Err())
	}

	result := &Result{
		Stdout:   out,
		Stderr:   errOut,
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if drainErr != nil {
		return result, fmt.Errorf("read output: %w", drainErr)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return result, fmt.Errorf("wait for %s: %w", opts.Name, waitErr)
	}

	return result, nil
}

// drain reads r to EOF. With a non-empty sep every line, including an
// unterminated last one, ends with sep instead of its original line ending.
func drain(r io.Reader, sep string) (string, error) {
	var b strings.Builder
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if sep == "" {
				b.WriteString(line)
			} else {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
				b.WriteString(line)
				b.WriteString(sep)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return b.String(), err
		}
	}
}
