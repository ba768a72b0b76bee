// Package apiclient is the JSON client for the external commerce backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-bff/internal/resilience"
	"storefront-bff/internal/telemetry"
)

const maxBodyBytes = 10 << 20

type Config struct {
	Name       string
	BaseURL    string
	Timeout    time.Duration
	Token      string
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
}

type Client struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func New(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "backend"
	}

	c := &Client{
		cfg:    cfg,
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenKey struct{}

// WithToken attaches a bearer token that overrides the configured one for
// calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// RequestOption tweaks an outgoing request.
type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out, opts...)
}

// Do sends one JSON request. GETs are retried on transport errors and 5xx.
// Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any, opts ...RequestOption) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}

	target := c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.cfg.Retries
	}

	call := func() error {
		return resilience.Retry(ctx, attempts, c.cfg.RetryDelay, func() error {
			err := c.once(ctx, method, target, payload, out, opts)
			var apiErr *Error
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return resilience.Permanent(err)
			}
			return err
		})
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call, countable)
		if errors.Is(err, resilience.ErrOpen) {
			err = &Error{Status: http.StatusServiceUnavailable, Message: "backend temporarily unavailable"}
		}
	} else {
		err = call()
	}

	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			err = apiErr
		} else {
			err = &Error{Status: StatusOf(err), Message: err.Error()}
		}
		slog.Warn("Backend call failed", "backend", c.cfg.Name, "method", method, "path", path, "error", err)
	}
	return err
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any, opts []RequestOption) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Status: http.StatusInternalServerError, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if tok := c.token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := telemetry.RequestID(ctx); id != "" {
		req.Header.Set(telemetry.RequestIDHeader, id)
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		telemetry.ObserveUpstream(c.cfg.Name, method, 0, time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Status: http.StatusGatewayTimeout, Message: "request timeout"}
		}
		return &Error{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()
	telemetry.ObserveUpstream(c.cfg.Name, method, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Status: http.StatusBadGateway, Message: "read backend response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: http.StatusBadGateway, Message: "invalid backend response"}
	}
	return nil
}

func (c *Client) token(ctx context.Context) string {
	if tok := tokenFrom(ctx); tok != "" {
		return tok
	}
	return c.cfg.Token
}

func countable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
