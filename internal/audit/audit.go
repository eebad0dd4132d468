// Package audit records every command execution as one key=value line.
//
// Format:
//
//	2025-01-15T14:32:05Z EXEC COMPLETE id="..." platform=LINUX cmd="/bin/sh -c ls -la" dir="/srv" exit=0 duration=12.0ms
//	2025-01-15T14:32:09Z EXEC TIMEOUT id="..." platform=LINUX cmd="sleep 60" dir="" reason="command exceeded the wait time of 30 seconds"
package audit

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// EventType classifies an audit entry.
type EventType string

const (
	// EventComplete is a process that ran to completion, whatever its exit code.
	EventComplete EventType = "COMPLETE"
	// EventFault is a spawn or read failure reported as a degraded result.
	EventFault EventType = "FAULT"
	// EventTimeout is a process killed at its deadline.
	EventTimeout EventType = "TIMEOUT"
	// EventReject is a request refused before anything was spawned.
	EventReject EventType = "REJECT"
)

// Event is a single audit entry.
type Event struct {
	Timestamp time.Time
	Type      EventType

	// RequestID correlates the entry with the HTTP request log.
	RequestID string

	// Platform is the dialect the command was translated for.
	Platform string

	// Cmd is the command line as spawned, or as requested when rejected.
	Cmd string
	Dir string

	// ExitCode and Duration are set for COMPLETE and FAULT events.
	ExitCode int
	Duration time.Duration

	// Reason is set for FAULT, TIMEOUT and REJECT events.
	Reason string
}

// Format returns the entry as a single line without a trailing newline.
func (e *Event) Format() string {
	var b strings.Builder

	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" EXEC ")
	b.WriteString(string(e.Type))

	b.WriteString(" id=")
	b.WriteString(quoteValue(e.RequestID))
	b.WriteString(" platform=")
	b.WriteString(e.Platform)
	b.WriteString(" cmd=")
	b.WriteString(quoteValue(e.Cmd))
	b.WriteString(" dir=")
	b.WriteString(quoteValue(e.Dir))

	switch e.Type {
	case EventComplete:
		writeExit(&b, e)
	case EventFault:
		writeExit(&b, e)
		writeOptionalField(&b, "reason", e.Reason)
	case EventTimeout, EventReject:
		writeOptionalField(&b, "reason", e.Reason)
	}

	return b.String()
}

func writeExit(b *strings.Builder, e *Event) {
	b.WriteString(" exit=")
	b.WriteString(strconv.Itoa(e.ExitCode))
	b.WriteString(" duration=")
	b.WriteString(formatDuration(e.Duration))
}

func writeOptionalField(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString("=")
	b.WriteString(quoteValue(value))
}

func quoteValue(s string) string {
	return strconv.Quote(s)
}

// formatDuration renders d as "12.0ms", "2.3s" or "1m30s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Config configures a rotating audit file.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Logger writes audit events. A nil *Logger discards everything, so callers
// never need to check whether auditing is enabled.
type Logger struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewLogger returns a Logger that writes to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w, now: time.Now}
}

// Open returns a Logger backed by a size-rotated file.
func Open(cfg Config) *Logger {
	return NewLogger(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// Log writes e, stamping it with the current time when Timestamp is zero.
func (l *Logger) Log(e *Event) error {
	if l == nil || l.w == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}

	if _, err := io.WriteString(l.w, e.Format()+"\n"); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Close closes the underlying writer when it is closable.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
