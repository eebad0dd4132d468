// Package server exposes the command service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmgilman/xcmd/internal/executor"
	"github.com/jmgilman/xcmd/internal/service"
	"github.com/jmgilman/xcmd/internal/slogger"
)

// BasePath prefixes every route.
const BasePath = "/api/v1/command"

// ServiceName is reported by the health endpoint.
const ServiceName = "xcmd command executor"

// CommandService is the behavior the HTTP layer needs from the service.
type CommandService interface {
	Execute(ctx context.Context, req service.Request) (*executor.Result, error)
	Translate(req service.Request) (*service.Translation, error)
	AvailableCommands() []string
	Info() map[string]string
}

// Config configures a Server.
type Config struct {
	// Addr is the TCP address to listen on, e.g. ":8080".
	Addr string

	// Debug puts gin in debug mode.
	Debug bool

	// CORSOrigins lists allowed origins. "*" allows any origin.
	CORSOrigins []string

	ReadHeaderTimeout time.Duration

	// DefaultTimeout in seconds for requests that omit one.
	DefaultTimeout int

	// Logger receives request logs. Nil discards them.
	Logger *slog.Logger
}

// Server serves the command API.
type Server struct {
	cfg    Config
	svc    CommandService
	engine *gin.Engine
	log    *slog.Logger

	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
	running  bool
}

// New builds a Server and registers its routes. Nothing listens until Start.
func New(svc CommandService, cfg Config) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 30 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = service.DefaultTimeoutSeconds
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	log := cfg.Logger
	if log == nil {
		log = slogger.L(context.Background())
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		engine: gin.New(),
		log:    log,
	}

	s.engine.Use(
		requestID(log),
		recovery(log),
		requestLogger(),
		cors(cfg.CORSOrigins),
	)
	s.registerRoutes()

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", "error", err)
		}
	}()

	s.log.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.server.Shutdown(ctx)
}

// ListenAddr returns the bound address, or "" before Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
