package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/xcmd/internal/exec"
	"github.com/jmgilman/xcmd/internal/exec/mocks"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/prompt"
	promptmocks "github.com/jmgilman/xcmd/internal/prompt/mocks"
)

var linuxHost = platform.Host{Platform: platform.Linux, Name: "Linux", Version: "6.8.0", Arch: "amd64", Hostname: "box"}

// lockedBuffer is safe to read while a command is still writing to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setup isolates HOME and replaces the host and process runner.
func setup(t *testing.T, runner exec.Runner) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	prevHost, prevRunner := detectHost, newRunner
	detectHost = func() platform.Host { return linuxHost }
	newRunner = func() exec.Runner { return runner }
	t.Cleanup(func() {
		detectHost, newRunner = prevHost, prevRunner
	})
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	c.SetContext(nil) //nolint:staticcheck // cobra only inherits the execute context when nil
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCLIContext(ctx context.Context, stdout, stderr *lockedBuffer, args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr lockedBuffer
	err := runCLIContext(context.Background(), &stdout, &stderr, args...)
	return stdout.String(), stderr.String(), err
}

func exitRunner(stdout, stderr string, code int) *mocks.RunnerMock {
	return &mocks.RunnerMock{
		RunFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
			return &exec.Result{Stdout: stdout, Stderr: stderr, ExitCode: code}, nil
		},
	}
}

func TestRootCommand_Help(t *testing.T) {
	setup(t, &mocks.RunnerMock{})

	stdout, _, err := runCLI(t, "--help")
	require.NoError(t, err)

	for _, want := range []string{"xcmd", "Usage:", "serve", "run", "translate", "commands", "config"} {
		assert.Contains(t, stdout, want)
	}
}

func TestVersionCommand(t *testing.T) {
	setup(t, &mocks.RunnerMock{})

	stdout, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "xcmd "))
	assert.Contains(t, stdout, "commit:")
}

func TestRunCommand(t *testing.T) {
	t.Run("success writes both streams", func(t *testing.T) {
		runner := exitRunner("file1\n", "warn\n", 0)
		setup(t, runner)

		stdout, stderr, err := runCLI(t, "run", "dir", "/a")

		require.NoError(t, err)
		assert.Equal(t, "file1\n", stdout)
		assert.Contains(t, stderr, "warn\n")

		calls := runner.RunCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"-c", "ls -la"}, calls[0].Opts.Args, "windows dialect is translated for the host")
		assert.Equal(t, 30*time.Second, calls[0].Opts.Timeout)
	})

	t.Run("exit code is mirrored", func(t *testing.T) {
		setup(t, exitRunner("", "", 3))

		_, _, err := runCLI(t, "run", "false")

		var exitErr *ExitCodeError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.Code)
	})

	t.Run("flags reach the request", func(t *testing.T) {
		runner := exitRunner("", "", 0)
		setup(t, runner)
		dir := t.TempDir()

		_, _, err := runCLI(t, "run", "-p", "windows", "-t", "5", "-C", dir, "ls", "-la")

		require.NoError(t, err)
		calls := runner.RunCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"-c", "dir /a"}, calls[0].Opts.Args)
		assert.Equal(t, 5*time.Second, calls[0].Opts.Timeout)
		assert.Equal(t, dir, calls[0].Opts.Dir)
	})

	t.Run("configured default timeout", func(t *testing.T) {
		runner := exitRunner("", "", 0)
		setup(t, runner)
		t.Setenv("XCMD_EXECUTION_DEFAULT_TIMEOUT", "12")

		_, _, err := runCLI(t, "run", "ls")

		require.NoError(t, err)
		assert.Equal(t, 12*time.Second, runner.RunCalls()[0].Opts.Timeout)
	})

	t.Run("json output", func(t *testing.T) {
		setup(t, exitRunner("hi\n", "", 0))

		stdout, _, err := runCLI(t, "run", "-o", "json", "echo", "hi")

		require.NoError(t, err)
		assert.Contains(t, stdout, `"status": "SUCCESS"`)
		assert.Contains(t, stdout, `"executedCommand": "/bin/sh -c echo hi"`)
	})

	t.Run("yaml output keeps exit code", func(t *testing.T) {
		setup(t, exitRunner("", "", 2))

		stdout, _, err := runCLI(t, "run", "-o", "yaml", "false")

		assert.Contains(t, stdout, "exitCode: 2")
		var exitErr *ExitCodeError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("unknown output format", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "run", "-o", "xml", "ls")
		assert.ErrorContains(t, err, `unknown output format "xml"`)
	})

	t.Run("invalid platform is rejected", func(t *testing.T) {
		runner := &mocks.RunnerMock{}
		setup(t, runner)

		_, _, err := runCLI(t, "run", "-p", "beos", "ls")

		assert.ErrorContains(t, err, "operatingSystem")
		assert.Empty(t, runner.RunCalls())
	})

	t.Run("missing working directory", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "run", "-C", filepath.Join(t.TempDir(), "nope"), "ls")
		assert.ErrorContains(t, err, "working directory does not exist or is not a directory")
	})

	t.Run("spawn fault is an error", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{
			RunFunc: func(ctx context.Context, opts *exec.RunOptions) (*exec.Result, error) {
				return nil, errors.New("fork failed")
			},
		})

		_, _, err := runCLI(t, "run", "ls")
		assert.EqualError(t, err, "error executing command: fork failed")
	})

	t.Run("requires a command", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "run")
		assert.Error(t, err)
	})
}

func TestTranslateCommand(t *testing.T) {
	t.Run("prints translated line", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "translate", "-p", "windows", "ls", "-la")

		require.NoError(t, err)
		assert.Equal(t, "dir /a\n", stdout)
	})

	t.Run("auto resolves to host", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "translate", "ping", "-n", "4", "example.com")

		require.NoError(t, err)
		assert.Equal(t, "ping -c 4 example.com\n", stdout)
	})

	t.Run("yaml output", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "translate", "-o", "yaml", "-p", "windows", "clear")

		require.NoError(t, err)
		assert.Contains(t, stdout, "command: cls")
		assert.Contains(t, stdout, "platform: WINDOWS")
	})

	t.Run("lists families", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "translate", "--list")

		require.NoError(t, err)
		assert.Contains(t, stdout, "FAMILY")
		assert.Contains(t, stdout, "ipconfig")
	})

	t.Run("lists equivalents for named commands", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "translate", "--list", "tasklist", "ls", "ping")

		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, []string{"COMMAND", "FAMILY", "EQUIVALENT"}, strings.Fields(lines[0]))
		assert.Equal(t, "ps", strings.Fields(lines[1])[2])
		assert.Equal(t, "dir", strings.Fields(lines[2])[2])
		assert.Equal(t, "ping", strings.Fields(lines[3])[2])
	})

	t.Run("rejects unknown names with --list", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "translate", "--list", "make")
		assert.ErrorContains(t, err, `"make" is not a translated command`)
	})

	t.Run("requires command without --list", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "translate")
		assert.ErrorContains(t, err, "requires a command")
	})
}

func TestCommandsCommand(t *testing.T) {
	t.Run("lists host examples with notes", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "commands")

		require.NoError(t, err)
		assert.Contains(t, stdout, "ls -la")
		assert.Contains(t, stdout, "NOTE: commands are translated automatically between operating systems")
	})

	t.Run("lists another dialect", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "commands", "-p", "windows")

		require.NoError(t, err)
		assert.Contains(t, stdout, "ipconfig")
	})

	t.Run("pick runs the chosen example", func(t *testing.T) {
		runner := exitRunner("picked\n", "", 0)
		setup(t, runner)

		p := &promptmocks.PrompterMock{
			ChoiceFunc:  func(string, []string) (int, error) { return 0, nil },
			ConfirmFunc: func(string, string) (bool, error) { return true, nil },
		}
		prev := newPrompter
		newPrompter = func() prompt.Prompter { return p }
		t.Cleanup(func() { newPrompter = prev })

		stdout, _, err := runCLI(t, "commands", "--pick")

		require.NoError(t, err)
		assert.Equal(t, "picked\n", stdout)
		require.Len(t, p.ChoiceCalls(), 1)
		assert.NotEmpty(t, p.ChoiceCalls()[0].Options)
		assert.Len(t, runner.RunCalls(), 1)
	})

	t.Run("pick declined runs nothing", func(t *testing.T) {
		runner := &mocks.RunnerMock{}
		setup(t, runner)

		prev := newPrompter
		newPrompter = func() prompt.Prompter {
			return &promptmocks.PrompterMock{
				ChoiceFunc:  func(string, []string) (int, error) { return 1, nil },
				ConfirmFunc: func(string, string) (bool, error) { return false, nil },
			}
		}
		t.Cleanup(func() { newPrompter = prev })

		_, stderr, err := runCLI(t, "commands", "--pick")

		require.NoError(t, err)
		assert.Contains(t, stderr, "Canceled")
		assert.Empty(t, runner.RunCalls())
	})

	t.Run("pick aborted", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		prev := newPrompter
		newPrompter = func() prompt.Prompter {
			return &promptmocks.PrompterMock{
				ChoiceFunc: func(string, []string) (int, error) { return 0, prompt.ErrCanceled },
			}
		}
		t.Cleanup(func() { newPrompter = prev })

		_, _, err := runCLI(t, "commands", "--pick")
		assert.NoError(t, err)
	})
}

func TestInfoCommand(t *testing.T) {
	setup(t, &mocks.RunnerMock{})

	stdout, _, err := runCLI(t, "info")

	require.NoError(t, err)
	assert.Contains(t, stdout, "os.name: Linux")
	assert.Contains(t, stdout, "platform: LINUX")
	assert.Contains(t, stdout, "hostname: box")
}

func TestConfigCommand(t *testing.T) {
	t.Run("show all", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "config")

		require.NoError(t, err)
		assert.Contains(t, stdout, "default_timeout: 30")
		assert.Contains(t, stdout, "mode: raw")
	})

	t.Run("set then get", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "config", "execution.mode", "direct")
		require.NoError(t, err)
		assert.Equal(t, "Set execution.mode = direct\n", stdout)

		stdout, _, err = runCLI(t, "config", "execution.mode")
		require.NoError(t, err)
		assert.Equal(t, "direct\n", stdout)
	})

	t.Run("invalid key", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "config", "nope.key")
		assert.ErrorContains(t, err, "invalid configuration key")
	})

	t.Run("invalid value", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "config", "log.level", "loud")
		assert.ErrorContains(t, err, "invalid configuration value")
	})

	t.Run("explicit config file", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("execution:\n  mode: direct\n"), 0o644))

		stdout, _, err := runCLI(t, "--config", path, "config", "execution.mode")

		require.NoError(t, err)
		assert.Equal(t, "direct\n", stdout)
	})

	t.Run("keys", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		stdout, _, err := runCLI(t, "config", "--keys")

		require.NoError(t, err)
		assert.Contains(t, stdout, "server.addr\n")
		assert.Contains(t, stdout, "audit.path\n")
	})

	t.Run("edit without editor", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})
		t.Setenv("EDITOR", "")

		_, _, err := runCLI(t, "config", "--edit")
		assert.ErrorContains(t, err, "$EDITOR")
	})
}

func TestAuditCommand(t *testing.T) {
	t.Run("records and shows executions", func(t *testing.T) {
		setup(t, exitRunner("", "", 0))
		path := filepath.Join(t.TempDir(), "audit.log")
		t.Setenv("XCMD_AUDIT_ENABLED", "true")
		t.Setenv("XCMD_AUDIT_PATH", path)

		_, _, err := runCLI(t, "run", "echo", "one")
		require.NoError(t, err)
		_, _, err = runCLI(t, "run", "-C", filepath.Join(t.TempDir(), "nope"), "echo", "two")
		require.Error(t, err)

		stdout, _, err := runCLI(t, "audit")
		require.NoError(t, err)
		assert.Contains(t, stdout, `EXEC COMPLETE`)
		assert.Contains(t, stdout, `cmd="/bin/sh -c echo one"`)
		assert.Contains(t, stdout, `EXEC REJECT`)

		stdout, _, err = runCLI(t, "audit", "--type", "reject")
		require.NoError(t, err)
		assert.NotContains(t, stdout, "EXEC COMPLETE")
		assert.Contains(t, stdout, "EXEC REJECT")

		stdout, _, err = runCLI(t, "audit", "-n", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(stdout, "\n"))
	})

	t.Run("disabled", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "audit")
		assert.ErrorContains(t, err, "audit log is disabled")
	})

	t.Run("unknown type", func(t *testing.T) {
		setup(t, &mocks.RunnerMock{})

		_, _, err := runCLI(t, "audit", "--type", "crash")
		assert.ErrorContains(t, err, "unknown event type")
	})
}

func TestServeCommand(t *testing.T) {
	setup(t, exitRunner("served\n", "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr lockedBuffer
	done := make(chan error, 1)
	go func() {
		done <- runCLIContext(ctx, &stdout, &stderr, "serve", "--addr", "127.0.0.1:0")
	}()

	var addr string
	require.Eventually(t, func() bool {
		out := stdout.String()
		if i := strings.Index(out, "listening on "); i >= 0 {
			addr = strings.TrimSpace(out[i+len("listening on "):])
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	// rootCmd is busy serving, so go through the remote path directly.
	res, err := execute(context.Background(), "http://"+addr, requestFromArgs([]string{"echo", "served"}, "", "", 5))
	require.NoError(t, err)
	assert.Equal(t, "served\n", res.Output)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "", formatList(nil))
	assert.Equal(t, "a", formatList([]string{"a"}))
	assert.Equal(t, "a or b", formatList([]string{"a", "b"}))
	assert.Equal(t, "a, b, or c", formatList([]string{"a", "b", "c"}))
}

func TestExitStatus(t *testing.T) {
	assert.Equal(t, 1, exitStatus(-1))
	assert.Equal(t, 1, exitStatus(0))
	assert.Equal(t, 42, exitStatus(42))
	assert.Equal(t, 1, exitStatus(256))
}
