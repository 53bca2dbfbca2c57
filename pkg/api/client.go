package api

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
	"golang.org/x/oauth2"

	"github.com/onetaskassistant/onetask/pkg/metrics"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxResponseBytes = 8 << 20
)

var ErrResponseTooLarge = errors.New("response body too large")

// Client issues CRUD requests against the productivity backend. All reads,
// updates and deletes are scoped by the current user id.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
	timeout    time.Duration
	maxBody    int64
	now        func() time.Time

	mu     sync.RWMutex
	tokens oauth2.TokenSource
	userID string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds each request. Zero disables the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// WithClock overrides the clock used for create defaults such as the current year.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host in %q", baseURL)
		}
		return nil, &Error{Kind: KindInvalidRequest, Op: "new client", Err: err}
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		timeout:    DefaultTimeout,
		maxBody:    DefaultMaxResponseBytes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxResponseBytes
	}
	c.logger = c.logger.Named("api")
	return c, nil
}

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
}

// SetTokenSource replaces the bearer token source; nil clears it.
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

func (c *Client) tokenSource() oauth2.TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// userQuery returns the user_id query every scoped request carries.
func (c *Client) userQuery() url.Values {
	return url.Values{"user_id": []string{c.UserID()}}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and returns the status and body. Transport failures
// come back as KindTransport; the status is not checked here.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &Error{Kind: KindInvalidRequest, Op: op, Err: err}
		}
		reader = bytes.NewReader(b)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return 0, nil, &Error{Kind: KindInvalidRequest, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if ts := c.tokenSource(); ts != nil {
		tok, err := ts.Token()
		if err != nil {
			c.logger.Warn("no bearer token, sending unauthenticated", zap.String("op", op), zap.Error(err))
		} else {
			tok.SetAuthHeader(req)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(op, 0, time.Since(start))
		c.logger.Debug("request failed", zap.String("op", op), zap.String("method", method), zap.Error(err))
		return 0, nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	elapsed := time.Since(start)
	metrics.RecordAPIRequest(op, resp.StatusCode, elapsed)
	c.logger.Debug("request",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", elapsed),
	)
	if err != nil {
		return resp.StatusCode, nil, &Error{Kind: KindTransport, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > c.maxBody {
		return resp.StatusCode, nil, &Error{Kind: KindDecodeFailure, Op: op, StatusCode: resp.StatusCode, Err: ErrResponseTooLarge}
	}
	return resp.StatusCode, data, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// doJSON sends a request and decodes a 2xx body into T.
func doJSON[T any](ctx context.Context, c *Client, op, method, path string, query url.Values, body any) (T, error) {
	var out T
	status, data, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return out, err
	}
	if !isSuccess(status) {
		return out, &Error{Kind: KindHTTPStatus, Op: op, StatusCode: status}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, &Error{Kind: KindNoResponseBody, Op: op, StatusCode: status}
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, &Error{Kind: KindDecodeFailure, Op: op, StatusCode: status, Err: err}
	}
	return out, nil
}

// doDelete treats 200 and 204 as success and anything else as failure.
func (c *Client) doDelete(ctx context.Context, op, path string) error {
	status, _, err := c.do(ctx, op, http.MethodDelete, path, c.userQuery(), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return &Error{Kind: KindHTTPStatus, Op: op, StatusCode: status}
	}
	return nil
}

// Health checks GET /health. A nil error means the backend is reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	status, _, err := c.do(ctx, "health", http.MethodGet, "health", nil, nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &Error{Kind: KindHTTPStatus, Op: "health", StatusCode: status}
	}
	return nil
}

// IsTransport reports whether err is a connectivity failure or timeout.
func IsTransport(err error) bool {
	return IsKind(err, KindTransport) || errors.Is(err, context.DeadlineExceeded)
}

func requireID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return &Error{Kind: KindInvalidRequest, Op: op, Err: errors.New("empty id")}
	}
	return nil
}

func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}
