package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmgilman/xcmd/internal/executor"
	"github.com/jmgilman/xcmd/internal/service"
	"github.com/jmgilman/xcmd/internal/slogger"
)

// ValidationBody is returned with status 400 when a request is invalid.
type ValidationBody struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthBody is returned by the health endpoint.
type HealthBody struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"` // Unix milliseconds
}

func (s *Server) registerRoutes() {
	api := s.engine.Group(BasePath)

	api.POST("/execute", s.handleExecute)
	api.POST("/execute/simple", s.handleExecuteSimple)
	api.POST("/translate", s.handleTranslate)
	api.GET("/info", s.handleInfo)
	api.GET("/available-commands", s.handleAvailableCommands)
	api.GET("/health", s.handleHealth)
}

func (s *Server) handleExecute(c *gin.Context) {
	req := s.newRequest("", "")
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationBody(map[string]string{"body": err.Error()}))
		return
	}

	slogger.L(c.Request.Context()).Info("execute request", "command", req.Command)
	s.execute(c, req)
}

func (s *Server) handleExecuteSimple(c *gin.Context) {
	req := s.newRequest(c.Query("command"), c.Query("arguments"))

	if raw := c.Query("timeout"); raw != "" {
		timeout, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, validationBody(map[string]string{"timeout": "must be an integer"}))
			return
		}
		req.Timeout = timeout
	}

	slogger.L(c.Request.Context()).Info("simple execute request", "command", req.Command)
	s.execute(c, req)
}

// newRequest applies the configured default timeout before binding.
func (s *Server) newRequest(command, arguments string) service.Request {
	req := service.NewRequest(command, arguments)
	req.Timeout = s.cfg.DefaultTimeout
	return req
}

func (s *Server) execute(c *gin.Context, req service.Request) {
	res, err := s.svc.Execute(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, req.Command, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTranslate(c *gin.Context) {
	req := s.newRequest("", "")
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationBody(map[string]string{"body": err.Error()}))
		return
	}

	tr, err := s.svc.Translate(req)
	if err != nil {
		s.writeError(c, req.Command, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Info())
}

func (s *Server) handleAvailableCommands(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.AvailableCommands())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthBody{
		Status:    "UP",
		Service:   ServiceName,
		Timestamp: strconv.FormatInt(time.Now().UnixMilli(), 10),
	})
}

// writeError maps a call-level error to a status code and body:
// validation errors and execution errors are the client's problem (400),
// anything else is ours (500).
func (s *Server) writeError(c *gin.Context, command string, err error) {
	log := slogger.L(c.Request.Context())

	var verr *service.ValidationError
	var eerr *executor.ExecutionError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, validationBody(verr.Fields))
	case errors.As(err, &eerr):
		log.Error("command execution failed", "command", command, "error", err)
		c.JSON(http.StatusBadRequest, failure(command, eerr.Error()))
	default:
		log.Error("unexpected error", "command", command, "error", err)
		c.JSON(http.StatusInternalServerError, failure(command, "internal server error: "+err.Error()))
	}
}

func validationBody(fields map[string]string) ValidationBody {
	return ValidationBody{
		Status:    string(executor.StatusError),
		Message:   "validation failed",
		Errors:    fields,
		Timestamp: time.Now(),
	}
}

// failure is the Result-shaped body of a failed call.
func failure(command, message string) *executor.Result {
	return &executor.Result{
		Status:          executor.StatusError,
		ExitCode:        -1,
		ExecutedCommand: command,
		ExecutedAt:      time.Now(),
		Message:         message,
	}
}
