// Package api is the single outbound path from the console to the SACCO
// REST API. It attaches the visitor's bearer token to every request and owns
// the reaction to expired sessions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxResponseBody = 8 << 20

// TokenSource is the part of the token store the client needs
type TokenSource interface {
	Token() (string, bool)
	Clear() error
}

// Clearer is transient storage wiped on session expiry
type Clearer interface {
	Clear() error
}

// Navigator moves the visitor's browser to another console route
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(target string)

// Navigate calls f(target)
func (f NavigatorFunc) Navigate(target string) { f(target) }

// Options configures a Client
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Transient  Clearer
	Guard      *RedirectGuard
	Navigator  Navigator
	Events     *Events
	VisitorID  string
	LoginPath  string
	Logger     *zap.Logger
}

// Client dispatches requests on behalf of one visitor
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	transient Clearer
	guard     *RedirectGuard
	nav       Navigator
	events    *Events
	visitorID string
	loginPath string
	log       *zap.Logger
	now       func() time.Time
}

// NewHTTPClient returns the shared transport with the client-wide timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewClient creates a client for one visitor
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		http:      opts.HTTPClient,
		tokens:    opts.Tokens,
		transient: opts.Transient,
		guard:     opts.Guard,
		nav:       opts.Navigator,
		events:    opts.Events,
		visitorID: opts.VisitorID,
		loginPath: opts.LoginPath,
		log:       opts.Logger,
		now:       time.Now,
	}
	if c.http == nil {
		c.http = NewHTTPClient(30 * time.Second)
	}
	if c.guard == nil {
		c.guard = NewRedirectGuard(5 * time.Second)
	}
	if c.loginPath == "" {
		c.loginPath = "/login"
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Guard returns the redirect guard shared with the session controller
func (c *Client) Guard() *RedirectGuard {
	return c.guard
}

type requestOptions struct {
	skipAuth        bool
	credentialCheck bool
	token           string
	query           url.Values
}

// RequestOption tunes a single request
type RequestOption func(*requestOptions)

// SkipAuth sends the request without a bearer token. 401 answers to such
// requests are not treated as session expiry.
func SkipAuth() RequestOption {
	return func(o *requestOptions) { o.skipAuth = true }
}

// CredentialCheck marks a request that verifies a password the user typed.
// The bearer token is still sent, but a 401 answer means the password was
// wrong, not that the session expired.
func CredentialCheck() RequestOption {
	return func(o *requestOptions) { o.credentialCheck = true }
}

// WithToken authenticates with token instead of the stored one
func WithToken(token string) RequestOption {
	return func(o *requestOptions) { o.token = token }
}

// WithQuery appends query parameters
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// Get issues a GET request
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST request
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT request
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH request
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE request
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do sends one request and decodes a JSON answer into out (when non-nil).
// Non-2xx answers come back as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !ro.skipAuth {
		token := ro.token
		if token == "" && c.tokens != nil {
			token, _ = c.tokens.Token()
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized && !ro.skipAuth && !ro.credentialCheck {
			c.handleUnauthorized(method, path)
		}
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// ExpireSession applies the expired-session reaction without a backend
// answer, for sessions known to be expired locally
func (c *Client) ExpireSession() {
	c.handleUnauthorized("", "local token expiry")
}

// handleUnauthorized reacts to a rejected session: storage is wiped, the
// expiry is broadcast and at most one login redirect per episode is issued.
func (c *Client) handleUnauthorized(method, path string) {
	if c.guard.LoggingOut() {
		c.log.Debug("401 during logout ignored", zap.String("visitor", c.visitorID), zap.String("path", path))
		return
	}

	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			c.log.Warn("clear token store failed", zap.String("visitor", c.visitorID), zap.Error(err))
		}
	}
	if c.transient != nil {
		if err := c.transient.Clear(); err != nil {
			c.log.Warn("clear transient store failed", zap.String("visitor", c.visitorID), zap.Error(err))
		}
	}
	if c.events != nil {
		c.events.Publish(Event{Type: EventTokenExpired, VisitorID: c.visitorID})
	}

	if !c.guard.TryRedirect() {
		return
	}
	c.log.Info("session expired, redirecting to login",
		zap.String("visitor", c.visitorID),
		zap.String("method", method),
		zap.String("path", path),
	)
	if c.nav != nil {
		c.nav.Navigate(c.loginPath + "?expired=" + strconv.FormatInt(c.now().UnixMilli(), 10))
	}
}
