// Package apiclient is the HTTP transport to the shop backend. It encodes
// JSON requests, decodes the {allOK, message, data} envelope and classifies
// every failure into one of the error kinds in errors.go.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// ErrInvalidBaseURL is returned by New for an unusable base URL.
var ErrInvalidBaseURL = errors.New("base URL must be an absolute http(s) URL")

// Middleware wraps the transport used for backend calls.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Chain composes middlewares around base. The first middleware is the
// outermost.
func Chain(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	rt := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		rt = middlewares[i](rt)
	}
	return rt
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the innermost transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithMiddleware appends middlewares at construction time.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// Client performs JSON calls against the backend base URL.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
	base    http.RoundTripper

	mu          sync.RWMutex
	middlewares []Middleware
	httpClient  *http.Client
}

// New creates a Client for baseURL. A zero timeout disables the per-request
// deadline.
func New(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
		base:    http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rebuild()

	return c, nil
}

// Use appends middlewares after construction. Middlewares added later sit
// inside the ones added earlier.
func (c *Client) Use(middlewares ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.middlewares = append(c.middlewares, middlewares...)
	c.rebuildLocked()
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) rebuild() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildLocked()
}

func (c *Client) rebuildLocked() {
	c.httpClient = &http.Client{
		Timeout:   c.timeout,
		Transport: Chain(c.base, c.middlewares...),
	}
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// Get issues a GET and decodes the envelope payload into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do issues one JSON request. A nil body sends no payload; a nil out
// discards the envelope payload.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var (
		reader      io.Reader
		contentType string
	)

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: ErrValidation, Message: msgValidation, Err: err}
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	raw, err := c.send(ctx, method, path, query, contentType, reader)
	if err != nil {
		return err
	}

	return decodeEnvelope(raw, out)
}

// DoRaw issues one request with a caller-encoded body and returns the raw
// response body of a successful (2xx) call. Status classification still
// applies.
func (c *Client) DoRaw(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	return c.send(ctx, method, path, nil, contentType, body)
}

// PostMultipart posts a multipart body and decodes the envelope payload.
func (c *Client) PostMultipart(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	raw, err := c.send(ctx, http.MethodPost, path, nil, contentType, body)
	if err != nil {
		return err
	}

	return decodeEnvelope(raw, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) ([]byte, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, &Error{Kind: ErrTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: ErrTransport, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &Error{
			Kind:    ErrUnauthorized,
			Status:  resp.StatusCode,
			Message: envelopeMessage(raw),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := envelopeMessage(raw)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{Kind: ErrBusiness, Status: resp.StatusCode, Message: message}
	}

	return raw, nil
}

// rawEnvelope keeps the payload undecoded until the success flag is known.
type rawEnvelope struct {
	AllOK   *bool           `json:"allOK"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func envelopeMessage(raw []byte) string {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Message
}

// decodeEnvelope checks the success flag and decodes data into out.
func decodeEnvelope(raw []byte, out any) error {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Kind: ErrBusiness, Message: msgBusiness, Err: fmt.Errorf("decoding envelope: %w", err)}
	}

	if env.AllOK == nil {
		return &Error{Kind: ErrBusiness, Message: msgBusiness, Err: errors.New("response is not an envelope")}
	}

	if !*env.AllOK {
		return &Error{Kind: ErrBusiness, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: ErrBusiness, Message: msgBusiness, Err: fmt.Errorf("decoding payload: %w", err)}
	}

	return nil
}
