// Package slogger provides structured logging for xcmd using Go's slog with
// charmbracelet/log as the handler.
package slogger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

type contextKey string

const loggerKey contextKey = "logger"

// Log output formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	// Empty means error.
	Level string

	// Verbosity lowers the level:
	// 1 (-v)   -> at most Info
	// 2+ (-vv) -> Debug
	Verbosity int

	// Format is one of FormatText, FormatJSON or FormatLogfmt. Empty means text.
	Format string

	// Timestamps adds a time field to every record. The server enables it.
	Timestamps bool

	// Output is the writer for log output. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a new slog.Logger with charmbracelet/log as the handler.
func New(cfg Config) (*slog.Logger, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level, err := resolveLevel(cfg.Level, cfg.Verbosity)
	if err != nil {
		return nil, err
	}

	formatter, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	handler := charmlog.NewWithOptions(output, charmlog.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: cfg.Timestamps,
	})

	return slog.New(handler), nil
}

func resolveLevel(name string, verbosity int) (charmlog.Level, error) {
	level := charmlog.ErrorLevel
	if name != "" {
		parsed, err := charmlog.ParseLevel(strings.ToLower(name))
		if err != nil {
			return 0, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	switch {
	case verbosity >= 2:
		level = charmlog.DebugLevel
	case verbosity == 1 && level > charmlog.InfoLevel:
		level = charmlog.InfoLevel
	}
	return level, nil
}

func parseFormat(name string) (charmlog.Formatter, error) {
	switch strings.ToLower(name) {
	case "", FormatText:
		return charmlog.TextFormatter, nil
	case FormatJSON:
		return charmlog.JSONFormatter, nil
	case FormatLogfmt:
		return charmlog.LogfmtFormatter, nil
	}
	return 0, fmt.Errorf("unknown log format %q", name)
}

// SetLevel changes the minimum level of a logger created by New. Loggers
// derived with With before the change keep their level.
func SetLevel(logger *slog.Logger, level string) error {
	h, ok := logger.Handler().(*charmlog.Logger)
	if !ok {
		return errors.New("logger does not support level changes")
	}
	lvl, err := resolveLevel(level, 0)
	if err != nil {
		return err
	}
	h.SetLevel(lvl)
	return nil
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context.
// Returns a discarding logger if none is set (never returns nil).
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.New(discardHandler{})
}

// L is a convenience alias for FromContext.
func L(ctx context.Context) *slog.Logger {
	return FromContext(ctx)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
