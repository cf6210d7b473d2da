// Package graph reads SharePoint lists through Microsoft Graph.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/docfiler/docfiler/internal/metrics"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	pageSize        = 1000
	maxItems        = 10000
	defaultRetries  = 3
	defaultBase     = time.Second
	defaultMaxDelay = 30 * time.Second
	maxRetryAfter   = 60 * time.Second
	defaultTimeout  = 30 * time.Second
	errorBodyLimit  = 512
)

var errDecode = errors.New("graph: malformed response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("graph: HTTP %d %s: %s", e.Code, e.Status, e.Body)
	}
	return fmt.Sprintf("graph: HTTP %d %s", e.Code, e.Status)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusTooManyRequests,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client is a Graph list reader bound to one SharePoint site.
type Client struct {
	httpClient *http.Client
	baseURL    string
	host       string
	sitePath   string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	timeout    time.Duration
	newTimer   func() backoff.Timer

	siteMu sync.Mutex
	siteID string
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetry overrides the retry budget and backoff bounds.
func WithRetry(maxRetries int, base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// WithTimeout bounds every single HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSiteID skips site id discovery.
func WithSiteID(id string) Option {
	return func(c *Client) { c.siteID = id }
}

// New creates a client for the site at host and path. Requests are
// authorized with tokens; a nil source sends no Authorization header.
func New(host, sitePath string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		host:       host,
		sitePath:   sitePath,
		logger:     slog.Default(),
		maxRetries: defaultRetries,
		baseDelay:  defaultBase,
		maxDelay:   defaultMaxDelay,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if tokens != nil {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *c.httpClient
		wrapped.Transport = &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, tokens), Base: base}
		c.httpClient = &wrapped
	}
	return c
}

// SiteID resolves and memoizes the Graph id of the configured site.
func (c *Client) SiteID(ctx context.Context) (string, error) {
	c.siteMu.Lock()
	defer c.siteMu.Unlock()

	if c.siteID != "" {
		return c.siteID, nil
	}

	endpoint := fmt.Sprintf("%s/sites/%s:%s", c.baseURL, c.host, c.sitePath)
	var site struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, endpoint, &site); err != nil {
		return "", fmt.Errorf("failed to resolve site %s%s: %w", c.host, c.sitePath, err)
	}
	if site.ID == "" {
		return "", fmt.Errorf("failed to resolve site %s%s: empty id", c.host, c.sitePath)
	}
	c.siteID = site.ID
	return c.siteID, nil
}

type itemsPage struct {
	Value    []map[string]any `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

// FetchList returns every item of the list, following pagination up to
// 10 000 items. Any failing page fails the whole fetch.
func (c *Client) FetchList(ctx context.Context, listID string) (items []map[string]any, err error) {
	start := time.Now()
	defer func() { c.metrics.RemoteFetch(listID, time.Since(start), err) }()

	siteID, err := c.SiteID(ctx)
	if err != nil {
		return nil, err
	}

	next := fmt.Sprintf("%s/sites/%s/lists/%s/items?$expand=fields&$top=%d",
		c.baseURL, url.PathEscape(siteID), url.PathEscape(listID), pageSize)

	for next != "" && len(items) < maxItems {
		var page itemsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch list %s: %w", listID, err)
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	c.logger.Debug("graph list fetched", "list", listID, "items", len(items), "took", time.Since(start))
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	policy := c.retryPolicy()
	var lastErr error
	attempt := 0

	operation := func() error {
		retryAfter, err := c.do(ctx, endpoint, dst)
		policy.hint = retryAfter
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		attempt++
		c.metrics.RemoteRetry()
		c.logger.Warn("graph request failed, retrying",
			"url", endpoint, "attempt", attempt, "wait", wait, "error", err)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}
	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(policy, ctx), notify, timer)
	if err != nil && lastErr != nil && !errors.Is(err, lastErr) {
		return fmt.Errorf("%w (last error: %w)", err, lastErr)
	}
	return err
}

// do performs one request. It returns the server's Retry-After hint, if any.
func (c *Client) do(ctx context.Context, endpoint string, dst any) (time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return parseRetryAfter(resp.Header.Get("Retry-After")), &StatusError{
			Code:   resp.StatusCode,
			Status: http.StatusText(resp.StatusCode),
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return 0, fmt.Errorf("%w: %w", errDecode, err)
	}
	return 0, nil
}

// retryPolicy is the backoff for one request: exponential between the
// configured bounds, or the server's Retry-After hint capped at maxRetryAfter.
type retryPolicy struct {
	backoff.BackOff
	hint time.Duration
}

func (p *retryPolicy) NextBackOff() time.Duration {
	next := p.BackOff.NextBackOff()
	if next == backoff.Stop || p.hint <= 0 {
		return next
	}
	return min(p.hint, maxRetryAfter)
}

func (c *Client) retryPolicy() *retryPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseDelay
	exp.MaxInterval = c.maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retryPolicy{BackOff: backoff.WithMaxRetries(exp, uint64(max(c.maxRetries, 0)))}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// Everything else is a transport failure, including a per-request timeout.
	return !errors.Is(err, errDecode)
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
