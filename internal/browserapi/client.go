package browserapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/babelcloud/navwalk/internal/version"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// Client talks to the browser automation HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout; zero disables it
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := parseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API endpoint %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API endpoint %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StartBrowser handles POST /api/browser/start
func (c *Client) StartBrowser(ctx context.Context, params StartParams) (*Response, error) {
	return c.postJSON(ctx, PathStart, params)
}

// StopBrowser handles POST /api/browser/stop
func (c *Client) StopBrowser(ctx context.Context, params StopParams) (*Response, error) {
	return c.postJSON(ctx, PathStop, params)
}

// Navigate handles POST /api/page/navigate
func (c *Client) Navigate(ctx context.Context, params NavigateParams) (*Response, error) {
	return c.postJSON(ctx, PathNavigate, params)
}

// Title handles GET /api/page/title
func (c *Client) Title(ctx context.Context, sessionID string) (*Response, error) {
	return c.getWithSession(ctx, PathTitle, sessionID)
}

// URL handles GET /api/page/url
func (c *Client) URL(ctx context.Context, sessionID string) (*Response, error) {
	return c.getWithSession(ctx, PathURL, sessionID)
}

// HTML handles GET /api/page/html
func (c *Client) HTML(ctx context.Context, sessionID string) (*Response, error) {
	return c.getWithSession(ctx, PathHTML, sessionID)
}

// Screenshot handles POST /api/page/screenshot. The body of a successful
// response holds the raw image bytes.
func (c *Client) Screenshot(ctx context.Context, params ScreenshotParams) (*Response, error) {
	return c.postJSON(ctx, PathScreenshot, params)
}

// Execute handles POST /api/page/execute
func (c *Client) Execute(ctx context.Context, params ExecuteParams) (*Response, error) {
	return c.postJSON(ctx, PathExecute, params)
}

// RequestURL returns the full URL for path with an optional session query
func (c *Client) RequestURL(path, sessionID string) string {
	if sessionID == "" {
		return c.baseURL + path
	}
	q := url.Values{}
	q.Set("sessionId", sessionID)
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) getWithSession(ctx context.Context, path, sessionID string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(path, sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(ctx, req, path)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RequestURL(path, ""), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Request body: %s", string(payload))
	return c.do(ctx, req, path)
}

func (c *Client) do(ctx context.Context, req *http.Request, path string) (*Response, error) {
	req.Header.Set("User-Agent", version.UserAgent())
	c.logger.Debug("Request URL: %s %s", req.Method, req.URL.String())

	var connected atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, req, err, connected.Load())
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	c.logger.Debug("Response status code: %d", httpResp.StatusCode)
	if c.logger.IsDebugEnabled() && isTextual(httpResp.Header.Get("Content-Type")) {
		c.logger.Debug("Response content: %s", string(body))
	}

	resp := newResponse(httpResp.StatusCode, httpResp.Header.Get("Content-Type"), body)
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, newAPIError(req.Method, path, resp)
	}
	return resp, nil
}

// classify separates transport failures from cancellation and timeouts.
// Anything that fails before a connection exists, dial timeouts included,
// is a ConnectionError.
func (c *Client) classify(ctx context.Context, req *http.Request, err error, connected bool) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s aborted: %w", req.Method, req.URL.Path, ctxErr)
	}
	var opErr *net.OpError
	if !connected || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return &ConnectionError{
			Method: req.Method,
			URL:    req.URL.String(),
			Err:    unwrapURLError(err),
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s %s timed out: %w", req.Method, req.URL.Path, err)
	}
	return &ConnectionError{
		Method: req.Method,
		URL:    req.URL.String(),
		Err:    unwrapURLError(err),
	}
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

func isTextual(contentType string) bool {
	return contentType == "" ||
		strings.HasPrefix(contentType, "application/json") ||
		strings.HasPrefix(contentType, "text/")
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
