// Package kickbase is a client for the Kickbase v4 REST API.
package kickbase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.kickbase.com/v4"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

var (
	// ErrUnauthorized is returned when login fails or the token is rejected.
	ErrUnauthorized = errors.New("kickbase: unauthorized")
	// ErrMalformedPayload is returned when a response lacks required fields.
	ErrMalformedPayload = errors.New("kickbase: malformed payload")
	// ErrNoLeague is returned when the account is not a member of any league.
	ErrNoLeague = errors.New("kickbase: account has no league")
)

// Client talks to the Kickbase API with a bearer token obtained from login.
type Client struct {
	baseURL     string
	email       string
	password    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	now         func() time.Time

	mu    sync.Mutex
	token string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithToken skips login and uses an existing bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithClock sets the reference clock used to find the next matchday.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Kickbase client. Login happens lazily on the first request.
func NewClient(baseURL, email, password string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		email:       email,
		password:    password,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string         `json:"em"`
	Password string         `json:"pass"`
	Loyalty  bool           `json:"loy"`
	Rep      map[string]any `json:"rep"`
}

type loginResponse struct {
	Token string `json:"tkn"`
}

// Login authenticates and stores the bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.email == "" || c.password == "" {
		return fmt.Errorf("%w: missing credentials", ErrUnauthorized)
	}

	body, err := json.Marshal(loginRequest{Email: c.email, Password: c.password, Rep: map[string]any{}})
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/user/login", body, "", &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login: %w: no token in response", ErrUnauthorized)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// get performs an authorized GET and decodes the JSON response into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, path, nil, token, result)
}

// do performs a request with retries and exponential backoff.
// Transport errors, 429 and 5xx are retried; other statuses are not.
func (c *Client) do(ctx context.Context, method, path string, body []byte, token string, result any) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
			continue
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%s %s: %w (status %d)", method, path, ErrUnauthorized, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, truncate(respBody, 200))
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("%w: decode %s: %v", ErrMalformedPayload, path, err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
