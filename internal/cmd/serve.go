package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/config"
	"github.com/jmgilman/xcmd/internal/server"
	"github.com/jmgilman/xcmd/internal/slogger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command API over HTTP",
	Long: `Start the HTTP API under ` + server.BasePath + `.

The server runs until it receives SIGINT or SIGTERM, then drains in-flight
requests for up to server.shutdown_timeout. Changes to log.level in the
config file are applied without a restart.`,
	Example: `  # Listen on the configured address
  xcmd serve

  # Listen on loopback only
  xcmd serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServeCmd,
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr, _ = cmd.Flags().GetString("addr")
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	log, err := slogger.New(slogger.Config{
		Level:      cfg.Log.Level,
		Verbosity:  verbosity,
		Format:     cfg.Log.Format,
		Timestamps: true,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	host := detectHost()
	svc, auditLog, err := buildService(cfg, host)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	srv := server.New(svc, server.Config{
		Addr:              addr,
		Debug:             cfg.Server.Debug,
		CORSOrigins:       cfg.Server.CORSOrigins,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		DefaultTimeout:    cfg.Execution.DefaultTimeout,
		Logger:            log,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	log.Info("server started",
		"addr", srv.ListenAddr(),
		"platform", host.Platform,
		"os", host.Description(),
		"mode", cfg.Execution.Mode,
		"audit", cfg.Audit.Enabled)
	fmt.Fprintf(cmd.OutOrStdout(), "xcmd listening on %s\n", srv.ListenAddr())

	if loader := LoaderFromContext(cmd.Context()); loader != nil {
		loader.Watch(func(next *config.Config, err error) {
			if err != nil {
				log.Warn("ignoring invalid config change", "error", err)
				return
			}
			if err := slogger.SetLevel(log, next.Log.Level); err != nil {
				log.Warn("apply log level", "error", err)
				return
			}
			log.Info("config reloaded", "log_level", next.Log.Level)
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
}
