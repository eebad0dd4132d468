package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/client"
	"github.com/jmgilman/xcmd/internal/executor"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/service"
	"github.com/jmgilman/xcmd/internal/slogger"
	"github.com/jmgilman/xcmd/internal/spinner"
)

var runCmd = &cobra.Command{
	Use:   "run <command> [arguments...]",
	Short: "Translate and run a command",
	Long: `Translate a command for the target platform and run it.

The command runs on this host unless --server points at a running
'xcmd serve' instance. Standard output and standard error of the command are
written to the matching streams, and xcmd exits with the command's exit code.

Arguments are joined with spaces and handed to the host shell unescaped when
execution.mode is "raw", so shell syntax such as pipes is interpreted.`,
	Example: `  # List a directory with the host's dialect
  xcmd run ls -la

  # Translate a Windows command for this Unix host
  xcmd run dir /w

  # Run against a remote server and print the full result
  xcmd run --server http://build-box:8080 -o json ping -c 4 example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRunCmd,
}

// runFlags holds parsed flags for the run command.
type runFlags struct {
	platform string
	dir      string
	server   string
	output   string
}

func parseRunFlags(cmd *cobra.Command) (*runFlags, error) {
	target, err := cmd.Flags().GetString("platform")
	if err != nil {
		return nil, fmt.Errorf("get platform flag: %w", err)
	}
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, fmt.Errorf("get dir flag: %w", err)
	}
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, fmt.Errorf("get server flag: %w", err)
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, fmt.Errorf("get output flag: %w", err)
	}
	if err := checkOutputFormat(output); err != nil {
		return nil, err
	}

	return &runFlags{platform: target, dir: dir, server: server, output: output}, nil
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	flags, err := parseRunFlags(cmd)
	if err != nil {
		return err
	}

	cfg := ConfigFromContext(cmd.Context())
	req := requestFromArgs(args, flags.platform, flags.dir, timeoutFlag(cmd, cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spin *spinner.Spinner
	if flags.output == outputText && spinner.Enabled(os.Stderr) {
		spin = spinner.New(cmd.ErrOrStderr(), "running "+req.Command)
		spin.Start()
	}

	res, err := execute(ctx, flags.server, req)

	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	return reportResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), flags.output, res)
}

// execute runs req locally, or on server when it is set.
func execute(ctx context.Context, server string, req service.Request) (*executor.Result, error) {
	if server != "" {
		slogger.L(ctx).Debug("running remotely", "server", server, "command", req.Command)
		return client.New(server).Execute(ctx, req)
	}

	cfg, err := requireConfig(ctx)
	if err != nil {
		return nil, err
	}

	svc, auditLog, err := buildService(cfg, detectHost())
	if err != nil {
		return nil, err
	}
	defer auditLog.Close()

	return svc.Execute(ctx, req)
}

// reportResult prints res and turns a non-zero exit into an ExitCodeError.
func reportResult(stdout, stderr io.Writer, format string, res *executor.Result) error {
	if format == outputText {
		fmt.Fprint(stdout, res.Output)
		fmt.Fprint(stderr, res.ErrorOutput)
	} else if err := writeStructured(stdout, format, res); err != nil {
		return err
	}

	if res.Succeeded() {
		return nil
	}
	if format == outputText && (res.Fault != nil || res.ExitCode == -1) {
		return errors.New(res.Message)
	}
	return NewExitCodeError(exitStatus(res.ExitCode))
}

// exitStatus maps a child exit code to one this process can exit with.
func exitStatus(code int) int {
	if code <= 0 || code > 255 {
		return 1
	}
	return code
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("platform", "p", "", "target dialect ("+formatList(platform.Names())+"; default AUTO)")
	cmd.Flags().StringP("dir", "C", "", "working directory for the command")
	cmd.Flags().IntP("timeout", "t", 0, "timeout in seconds (default execution.default_timeout)")
	cmd.Flags().String("server", "", "run on a remote xcmd server (e.g. http://localhost:8080)")
	cmd.Flags().StringP("output", "o", outputText, "output format ("+formatList(outputFormats)+")")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}
