// Package api provides the HTTP client for the washbay backend.
//
// Every call is a single attempt bounded by an explicit deadline. Failures
// come back as *output.Error classified as timeout, network, HTTP status,
// authentication, or validation.
package api

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

	"github.com/google/uuid"

	"github.com/washbay/washbay-cli/internal/clock"
	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/version"
)

// DefaultTimeout bounds requests that do not set their own.
const DefaultTimeout = 15 * time.Second

// errDeadline is the cancellation cause installed when a request's deadline fires.
var errDeadline = errors.New("request deadline exceeded")

// TokenSource supplies the bearer token. ok=false means unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (token string, ok bool, err error)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// Timeout applies to the whole exchange including reading the body.
	// Zero uses the client default.
	Timeout time.Duration
}

// Response wraps a successful backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Envelope is nil when the server returned a bare payload.
	Envelope *Envelope
}

// Data returns the payload: the envelope's data field, or the whole body.
func (r *Response) Data() json.RawMessage {
	if r.Envelope != nil {
		return r.Envelope.Data
	}
	return r.Body
}

// UnmarshalData unmarshals the payload into v.
func (r *Response) UnmarshalData(v any) error {
	data := r.Data()
	if len(data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(data, v)
}

// Client is an HTTP client for the washbay backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	clock          clock.Clock
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithClock sets the clock that drives request deadlines.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDefaultTimeout sets the timeout for requests that leave it zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		clock:          clock.Real(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET for path.
func (c *Client) Get(ctx context.Context, path string, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Timeout: timeout})
}

// Post issues a POST of body to path.
func (c *Client) Post(ctx context.Context, path string, body any, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Timeout: timeout})
}

// Put issues a PUT of body to path.
func (c *Client) Put(ctx context.Context, path string, body any, timeout time.Duration) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Timeout: timeout})
}

// Do performs req exactly once. The returned error is always an *output.Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := c.clock.AfterFunc(timeout, func() { cancel(errDeadline) })
	defer timer.Stop()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	target := scrubURL(httpReq.URL.String())
	c.logger.Debug("http request",
		"method", httpReq.Method,
		"url", target,
		"request_id", httpReq.Header.Get("X-Request-ID"),
		"timeout", timeout)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, target, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, target, timeout, err)
	}

	c.logger.Debug("http response",
		"method", httpReq.Method,
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	return classify(resp, body)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, output.ErrUsage(fmt.Sprintf("failed to encode request body: %v", err))
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(req.Path, req.Query), bodyReader)
	if err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("invalid request: %v", err))
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", version.UserAgent())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, ok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, output.AsError(err)
		}
		if ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// transportError maps a failure with no usable response. A fired deadline
// wins over whatever error the transport reported for the abort.
func (c *Client) transportError(ctx context.Context, target string, timeout time.Duration, err error) *output.Error {
	if errors.Is(context.Cause(ctx), errDeadline) {
		c.logger.Debug("http timeout", "url", target, "timeout", timeout)
		return output.ErrTimeout(timeout)
	}
	c.logger.Debug("http transport error", "url", target, "error", err)
	return output.ErrNetwork(err)
}

// classify turns a complete response into a Response or an *output.Error.
func classify(resp *http.Response, body []byte) (*Response, error) {
	status := resp.StatusCode

	if len(bytes.TrimSpace(body)) == 0 {
		if status == http.StatusNoContent {
			return &Response{StatusCode: status, Header: resp.Header}, nil
		}
		if status >= 400 {
			return nil, statusError(status, nil)
		}
		return nil, output.ErrNetwork(fmt.Errorf("empty response body (HTTP %d)", status))
	}

	env, _, decodeErr := decodeEnvelope(body)

	if status >= 400 {
		if env == nil {
			env = looseEnvelope(body)
		}
		return nil, statusError(status, env)
	}
	if decodeErr != nil {
		return nil, output.ErrNetwork(fmt.Errorf("malformed response body (HTTP %d): %w", status, decodeErr))
	}
	if env.Failed() {
		return nil, statusError(status, env)
	}

	return &Response{
		StatusCode: status,
		Header:     resp.Header,
		Body:       body,
		Envelope:   env,
	}, nil
}

// looseEnvelope reads message fields from an error body that lacks the
// envelope keys. Unparseable bodies yield nil.
func looseEnvelope(body []byte) *Envelope {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return &env
}

// statusError builds the error for an HTTP failure or a success:false body.
func statusError(status int, env *Envelope) *output.Error {
	msg := env.ServerMessage()

	var fields map[string][]string
	if env != nil && len(env.Errors) > 0 {
		fields = env.Errors
	}

	switch {
	case status == http.StatusUnauthorized:
		if msg == "" {
			msg = "Authentication required"
		}
		return output.ErrAuth(msg)
	case fields != nil:
		return output.ErrValidation(status, msg, fields)
	case status == http.StatusForbidden:
		if msg == "" {
			msg = "Access denied"
		}
		return output.ErrForbidden(msg)
	case status == http.StatusNotFound:
		if msg == "" {
			msg = "Not found"
		}
		return output.ErrNotFound(status, msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return output.ErrValidation(status, msg, nil)
	}

	if msg == "" {
		msg = fmt.Sprintf("Request failed (HTTP %d)", status)
	}
	return output.ErrAPI(status, msg)
}
