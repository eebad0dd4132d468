package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/xcmd/internal/audit"
	"github.com/jmgilman/xcmd/internal/config"
	"github.com/jmgilman/xcmd/internal/exec"
	"github.com/jmgilman/xcmd/internal/executor"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/service"
)

// Output formats accepted by -o.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var outputFormats = []string{outputText, outputJSON, outputYAML}

// detectHost is replaced in tests.
var detectHost = platform.Detect

// newRunner is replaced in tests.
var newRunner = exec.New

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := ConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// buildService wires a Service for the local host from cfg. The returned
// audit logger is nil when auditing is disabled; it is safe to Close either way.
func buildService(cfg *config.Config, host platform.Host) (*service.Service, *audit.Logger, error) {
	mode, err := executor.ParseMode(cfg.Execution.Mode)
	if err != nil {
		return nil, nil, err
	}

	exe := executor.New(host, newRunner(),
		executor.WithMode(mode),
		executor.WithKillGrace(cfg.Execution.KillGrace),
	)

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog = audit.Open(audit.Config{
			Path:       cfg.Audit.Path,
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
			Compress:   cfg.Audit.Compress,
		})
	}

	return service.New(host, exe, service.WithAudit(auditLog)), auditLog, nil
}

// requestFromArgs builds a request from "<command> [arguments...]".
func requestFromArgs(args []string, target, dir string, timeout int) service.Request {
	req := service.NewRequest(args[0], strings.Join(args[1:], " "))
	req.Timeout = timeout
	if target != "" {
		req.OperatingSystem = target
	}
	req.WorkingDirectory = dir
	return req
}

// timeoutFlag returns --timeout when given, else the configured default.
func timeoutFlag(cmd *cobra.Command, cfg *config.Config) int {
	if cmd.Flags().Changed("timeout") {
		t, _ := cmd.Flags().GetInt("timeout")
		return t
	}
	if cfg != nil {
		return cfg.Execution.DefaultTimeout
	}
	return service.DefaultTimeoutSeconds
}

func checkOutputFormat(format string) error {
	for _, f := range outputFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (valid: %s)", format, formatList(outputFormats))
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
