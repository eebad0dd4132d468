// Package client talks to a running xcmd server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/jmgilman/xcmd/internal/executor"
	"github.com/jmgilman/xcmd/internal/server"
	"github.com/jmgilman/xcmd/internal/service"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string

	// Fields holds per-field reasons for validation failures.
	Fields map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("server returned %d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

// Client calls the command API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The default has no
// timeout; requests are bounded by their context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs req on the server.
func (c *Client) Execute(ctx context.Context, req service.Request) (*executor.Result, error) {
	var res executor.Result
	if err := c.do(ctx, http.MethodPost, "/execute", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Translate asks the server how it would translate req.
func (c *Client) Translate(ctx context.Context, req service.Request) (*service.Translation, error) {
	var tr service.Translation
	if err := c.do(ctx, http.MethodPost, "/translate", req, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (*server.HealthBody, error) {
	var h server.HealthBody
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// AvailableCommands returns the server's example command list.
func (c *Client) AvailableCommands(ctx context.Context) ([]string, error) {
	var lines []string
	if err := c.do(ctx, http.MethodGet, "/available-commands", nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Info returns the server's host information.
func (c *Client) Info(ctx context.Context) (map[string]string, error) {
	var info map[string]string
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	endpoint, err := url.JoinPath(c.baseURL, server.BasePath, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError reads either the validation body or the Result-shaped failure
// body; both carry a message.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
		apiErr.Fields = body.Errors
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
