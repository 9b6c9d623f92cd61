package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClientOption configures a Client via functional options.
type ClientOption func(*Client)

// Client calls the HTTP API of a running monitor Server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client targeting baseURL. A bare host:port
// is treated as http.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithTimeout overrides the default HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// APIError is a non-2xx response from the monitor.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("monitor returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Health reports whether the monitor answers /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// State returns the current run state.
func (c *Client) State(ctx context.Context) (*RunState, error) {
	var st RunState
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Dashboard returns the dashboard snapshot.
func (c *Client) Dashboard(ctx context.Context) (*DashboardSnapshot, error) {
	var snap DashboardSnapshot
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Send posts a command and returns the resulting run state. Motion
// commands return a nil state.
func (c *Client) Send(ctx context.Context, cmd Command) (*RunState, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	if cmd.Type == CommandMotion {
		return nil, c.do(ctx, http.MethodPost, "/api/commands", body, nil)
	}
	var st RunState
	if err := c.do(ctx, http.MethodPost, "/api/commands", body, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(
	ctx context.Context, method, path string, body []byte, out any,
) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
