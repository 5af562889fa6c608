package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/version"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second
)

// Health is the bridge's /healthz reply.
type Health struct {
	Status              string       `json:"status"`
	LastFrameAgeSeconds *float64     `json:"last_frame_age_seconds"`
	WebSocketClients    int          `json:"websocket_clients"`
	Build               version.Info `json:"build"`
}

// Client talks to a running bridge over its REST API.
type Client struct {
	// BaseURL is the bridge root, e.g. "http://192.168.1.20:8080"
	BaseURL string

	HTTPClient *http.Client

	// TLSConfig is used for https and wss; nil means system defaults
	TLSConfig *tls.Config

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// New creates a client for the bridge at baseURL. A bare "host:port" is
// treated as http.
func New(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the HTTP request and WebSocket handshake timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetTLSConfig sets the TLS settings for both REST and WebSocket calls.
func (c *Client) SetTLSConfig(cfg *tls.Config) {
	c.TLSConfig = cfg
	c.HTTPClient.Transport = &http.Transport{TLSClientConfig: cfg}
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Health fetches /healthz.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// State fetches the unit's last known state.
func (c *Client) State(ctx context.Context) (climate.State, error) {
	var st climate.State
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &st)
	return st, err
}

// Traits fetches the capabilities the bridge advertises.
func (c *Client) Traits(ctx context.Context) (climate.Traits, error) {
	var tr climate.Traits
	err := c.do(ctx, http.MethodGet, "/api/traits", nil, &tr)
	return tr, err
}

// Control sends a control request and returns the state the bridge asked for.
// Control is not retried: a 502 means the frame may or may not have reached
// the unit.
func (c *Client) Control(ctx context.Context, req protocol.Request) (climate.State, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return climate.State{}, err
	}
	var st climate.State
	err = c.attempt(ctx, http.MethodPost, "/api/control", body, &st)
	return st, err
}

// do runs a request with retries and exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	delay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying bridge request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return &BridgeError{Type: ErrTypeNetwork, Message: "failed to create request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyNetworkError("failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return newHTTPError(resp.StatusCode, fmt.Sprintf("%s %s: %s", method, path, msg))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return newParseError("failed to parse response", err)
	}
	return nil
}
