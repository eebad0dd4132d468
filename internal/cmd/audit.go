package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/audit"
)

// auditPollInterval is how often --follow checks for new lines.
const auditPollInterval = 250 * time.Millisecond

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the execution audit log",
	Long: `Show recent entries of the execution audit log written by 'xcmd run'
and 'xcmd serve' when audit.enabled is true.`,
	Example: `  # Last 100 entries
  xcmd audit

  # Last 20 timeouts and faults
  xcmd audit -n 20 --type timeout --type fault

  # Follow new entries
  xcmd audit -f`,
	Args: cobra.NoArgs,
	RunE: runAuditCmd,
}

func runAuditCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}

	lines, _ := cmd.Flags().GetInt("lines")
	follow, _ := cmd.Flags().GetBool("follow")
	names, _ := cmd.Flags().GetStringSlice("type")

	types := make([]audit.EventType, 0, len(names))
	for _, n := range names {
		t, err := audit.ParseEventType(n)
		if err != nil {
			return err
		}
		types = append(types, t)
	}
	filter := audit.TypeFilter(types...)

	history, err := audit.Tail(cfg.Audit.Path, lines, filter)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !cfg.Audit.Enabled {
			return errors.New("audit log is disabled; enable it with 'xcmd config audit.enabled true'")
		}
		return err
	}
	for _, line := range history {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = audit.Follow(ctx, cfg.Audit.Path, cmd.OutOrStdout(), auditPollInterval, filter)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().IntP("lines", "n", audit.DefaultTailLines, "number of entries to show")
	auditCmd.Flags().BoolP("follow", "f", false, "keep printing new entries")
	auditCmd.Flags().StringSlice("type", nil, "only show these event types (complete, fault, timeout, reject)")
}
