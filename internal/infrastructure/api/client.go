package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	apperrors "faindi/pkg/errors"
)

const maxResponseBytes = 5 << 20

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// Observer receives one call per completed backend request.
type Observer interface {
	ObserveREST(endpoint string, status int)
}

// TokenSource returns the current access token, "" when signed out.
type TokenSource func() string

// Client talks JSON to the FAINDI backend. Authenticated calls carry the
// token in the x-access-token header.
type Client struct {
	baseURL        string
	http           *http.Client
	token          TokenSource
	logger         logger
	observer       Observer
	onUnauthorized func()
}

type Option func(*Client)

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithLogger(l logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, httpClient *http.Client, token TokenSource, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if token == nil {
		token = func() string { return "" }
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		token:   token,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized registers the hook run when an authenticated call gets a 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

type errorBody struct {
	Message string `json:"message"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}, auth bool) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal request body for %s", path)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, errors.Wrapf(err, "create request for %s", path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("x-access-token", c.token())
	}
	return req, nil
}

// do runs the request and decodes a 2xx body into out (when non-nil).
// Non-2xx statuses become AppErrors; transport failures become NETWORK_ERROR.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, auth bool) error {
	req, err := c.newRequest(ctx, method, path, body, auth)
	if err != nil {
		return apperrors.Internal("Failed to build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(path, 0)
		c.logger.Errorf("%s %s failed: %v", method, path, err)
		return apperrors.Network("Backend unreachable", errors.Wrapf(err, "%s %s", method, path))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Errorf("error closing response body for %s: %v", path, err)
		}
	}()
	c.observe(path, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Network("Failed to read backend response", errors.Wrapf(err, "read body of %s", path))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		message := eb.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		c.logger.Debugf("%s %s -> %d: %s", method, path, resp.StatusCode, message)

		if resp.StatusCode == http.StatusUnauthorized && auth && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		if resp.StatusCode == http.StatusForbidden && eb.Token != "" {
			return apperrors.VerificationRequired(eb.Email, eb.Token)
		}
		return apperrors.FromStatus(resp.StatusCode, message, errors.Errorf("%s %s returned %d", method, path, resp.StatusCode))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Network("Malformed backend response", errors.Wrapf(err, "decode body of %s", path))
	}
	return nil
}

func (c *Client) observe(path string, status int) {
	if c.observer == nil {
		return
	}
	// strip path parameters so ids do not explode label cardinality
	endpoint := path
	if parts := strings.Split(path, "/"); len(parts) > 2 {
		endpoint = strings.Join(parts[:2], "/")
	}
	c.observer.ObserveREST(endpoint, status)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
