// Package service validates command requests, translates them for the target
// platform, executes them on the host, and records the outcome.
package service

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/jmgilman/xcmd/internal/audit"
	"github.com/jmgilman/xcmd/internal/catalog"
	"github.com/jmgilman/xcmd/internal/executor"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/slogger"
	"github.com/jmgilman/xcmd/internal/translate"
)

// Executor runs a translated command.
type Executor interface {
	Execute(ctx context.Context, cmd translate.Command, opts executor.Options) (*executor.Result, error)
}

// Translation is the dry-run outcome of a request.
type Translation struct {
	Command   string            `json:"command" yaml:"command"`
	Arguments string            `json:"arguments" yaml:"arguments"`
	Platform  platform.Platform `json:"platform" yaml:"platform"`
}

// Service is the single entry point used by every transport.
type Service struct {
	host       platform.Host
	translator *translate.Translator
	executor   Executor
	audit      *audit.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAudit records every execution to l.
func WithAudit(l *audit.Logger) Option {
	return func(s *Service) {
		s.audit = l
	}
}

// New returns a Service for host.
func New(host platform.Host, exec Executor, opts ...Option) *Service {
	s := &Service{
		host:       host,
		translator: translate.New(host),
		executor:   exec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Host returns the host commands run on.
func (s *Service) Host() platform.Host {
	return s.host
}

// Translate validates req and returns the command that Execute would run,
// without running it.
func (s *Service) Translate(req Request) (*Translation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	target := s.target(req)
	cmd := s.translator.Translate(req.Command, req.Arguments, target)
	return &Translation{Command: cmd.Name, Arguments: cmd.Arguments, Platform: target}, nil
}

// Execute validates, translates and runs req. A *ValidationError or an
// *executor.ExecutionError is returned for call-level failures; a command
// that exits non-zero is reported in the Result.
func (s *Service) Execute(ctx context.Context, req Request) (*executor.Result, error) {
	log := slogger.L(ctx)

	if err := req.Validate(); err != nil {
		log.Debug("rejected request", "error", err)
		return nil, err
	}

	target := s.target(req)
	cmd := s.translator.Translate(req.Command, req.Arguments, target)
	log.Debug("translated command",
		"from", translate.Command{Name: req.Command, Arguments: req.Arguments}.Line(),
		"to", cmd.Line(),
		"platform", target)

	res, err := s.executor.Execute(ctx, cmd, executor.Options{
		WorkingDirectory: req.WorkingDirectory,
		Timeout:          time.Duration(req.Timeout) * time.Second,
	})

	s.record(ctx, req, target, cmd, res, err)
	return res, err
}

// AvailableCommands lists example commands for the host platform followed by
// the translation notes.
func (s *Service) AvailableCommands() []string {
	return catalog.Lines(s.host.Platform)
}

// Info describes the host and the running process.
func (s *Service) Info() map[string]string {
	wd, _ := os.Getwd()
	home, _ := os.UserHomeDir()

	return map[string]string{
		"os.name":    s.host.Name,
		"os.version": s.host.Version,
		"os.arch":    s.host.Arch,
		"platform":   s.host.Platform.String(),
		"hostname":   s.host.Hostname,
		"go.version": runtime.Version(),
		"user.dir":   wd,
		"user.home":  home,
	}
}

func (s *Service) target(req Request) platform.Platform {
	p, err := platform.Parse(req.OperatingSystem)
	if err != nil {
		p = platform.Auto
	}
	return s.host.Resolve(p)
}

func (s *Service) record(ctx context.Context, req Request, target platform.Platform, cmd translate.Command, res *executor.Result, err error) {
	if s.audit == nil {
		return
	}

	e := &audit.Event{
		RequestID: RequestID(ctx),
		Platform:  target.String(),
		Dir:       req.WorkingDirectory,
	}

	switch {
	case err != nil:
		e.Type = audit.EventReject
		if errors.Is(err, executor.ErrTimeout) {
			e.Type = audit.EventTimeout
		}
		e.Cmd = cmd.Line()
		e.Reason = err.Error()
	case res != nil:
		e.Type = audit.EventComplete
		e.Cmd = res.ExecutedCommand
		e.Dir = res.WorkingDirectory
		e.ExitCode = res.ExitCode
		e.Duration = time.Duration(res.ExecutionTime) * time.Millisecond
		if res.Fault != nil {
			e.Type = audit.EventFault
			e.Reason = res.Message
		}
	default:
		return
	}

	if err := s.audit.Log(e); err != nil {
		slogger.L(ctx).Warn("audit write failed", "error", err)
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request identifier used to correlate audit lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the identifier set with WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
