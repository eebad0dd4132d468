// Package cmd implements the xcmd CLI commands using Cobra.
// It provides commands for serving the command API, running and translating
// commands locally or against a remote server, and managing configuration.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/config"
	"github.com/jmgilman/xcmd/internal/slogger"
)

// appConfig holds the loaded application configuration.
var appConfig *config.Config

// configLoader is the loader appConfig came from.
var configLoader *config.Loader

// configFile overrides the default configuration path when set.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "xcmd",
	Short: "Run commands across Windows and Unix dialects",
	Long: `xcmd translates common shell commands between the Windows and Unix
dialects and runs them on the local host.

Commands can be run directly from the CLI or exposed over an HTTP API with
'xcmd serve'. Translation is best-effort: known command families such as ls/dir
and ping have their names and flags rewritten, everything else passes through.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")

		format := ""
		if appConfig != nil {
			format = appConfig.Log.Format
		}
		log, err := slogger.New(slogger.Config{
			Verbosity: verbosity,
			Format:    format,
			Output:    cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}

		// Store dependencies in context for subcommands
		ctx := cmd.Context()
		ctx = WithConfig(ctx, appConfig)
		ctx = WithLoader(ctx, configLoader)
		ctx = slogger.WithLogger(ctx, log)
		cmd.SetContext(ctx)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Errors other than *ExitCodeError are printed to stderr.
func Execute() error {
	err := rootCmd.Execute()
	var exitErr *ExitCodeError
	if err != nil && !errors.As(err, &exitErr) {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/"+config.DefaultConfigDir+"/"+config.DefaultConfigFile+")")
}

func initConfig() {
	appConfig, configLoader = nil, nil

	var (
		loader *config.Loader
		err    error
	)
	if configFile != "" {
		loader, err = config.NewLoaderAt(configFile)
	} else {
		loader, err = config.NewLoader()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		return
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config validation failed: %v\n", err)
	}

	appConfig = cfg
	configLoader = loader
}

// formatList joins strings with commas and "or" before the last item.
func formatList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
	}
}
