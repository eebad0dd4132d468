package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/catalog"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/prompt"
)

// newPrompter is replaced in tests.
var newPrompter = func() prompt.Prompter { return prompt.New() }

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List example commands",
	Long: `List example commands for a platform, followed by notes on translation.

With --pick, choose one of the examples interactively and run it.`,
	Example: `  # Examples for this host
  xcmd commands

  # Examples in the Windows dialect
  xcmd commands -p windows

  # Pick one and run it
  xcmd commands --pick`,
	Args: cobra.NoArgs,
	RunE: runCommandsCmd,
}

func runCommandsCmd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("platform")
	target, err := platform.Parse(name)
	if err != nil {
		return err
	}
	target = detectHost().Resolve(target)

	pick, _ := cmd.Flags().GetBool("pick")
	if pick {
		return pickAndRun(cmd, target)
	}

	for _, line := range catalog.Lines(target) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func pickAndRun(cmd *cobra.Command, target platform.Platform) error {
	entries := catalog.ForPlatform(target)
	options := make([]string, len(entries))
	for i, e := range entries {
		options[i] = e.String()
	}

	p := newPrompter()
	idx, err := p.Choice("Choose a command to run", options)
	if err != nil {
		if errors.Is(err, prompt.ErrCanceled) {
			return nil
		}
		return err
	}
	entry := entries[idx]

	ok, err := p.Confirm("Run "+entry.Line()+"?", entry.Description)
	if err != nil && !errors.Is(err, prompt.ErrCanceled) {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "Canceled")
		return nil
	}

	cfg := ConfigFromContext(cmd.Context())
	// Examples from either dialect are translated for the host.
	req := requestFromArgs([]string{entry.Command, entry.Arguments}, "", "", timeoutFlag(cmd, cfg))

	server, _ := cmd.Flags().GetString("server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := execute(ctx, server, req)
	if err != nil {
		return err
	}
	return reportResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputText, res)
}

func init() {
	rootCmd.AddCommand(commandsCmd)

	commandsCmd.Flags().StringP("platform", "p", "", "dialect to list ("+formatList(platform.Names())+"; default AUTO)")
	commandsCmd.Flags().Bool("pick", false, "choose an example interactively and run it")
	commandsCmd.Flags().IntP("timeout", "t", 0, "timeout in seconds for --pick (default execution.default_timeout)")
	commandsCmd.Flags().String("server", "", "run the picked command on a remote xcmd server")
}
