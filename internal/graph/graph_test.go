package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGraph struct {
	t         *testing.T
	server    *httptest.Server
	siteCalls atomic.Int32
	pages     [][]map[string]any
	failures  []int
	retryHdr  string

	mu       sync.Mutex
	requests []*http.Request
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	f := &fakeGraph{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	var status int
	if len(f.failures) > 0 {
		status = f.failures[0]
		f.failures = f.failures[1:]
	}
	f.mu.Unlock()

	if status != 0 {
		if f.retryHdr != "" {
			w.Header().Set("Retry-After", f.retryHdr)
		}
		http.Error(w, "try later", status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/sites/contoso.sharepoint.com:/sites/Docs":
		f.siteCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "site-1"})
	case r.URL.Path == "/sites/site-1/lists/list-1/items":
		page := 0
		if p := r.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &page)
		}
		body := map[string]any{"value": f.pages[page]}
		if page+1 < len(f.pages) {
			body["@odata.nextLink"] = fmt.Sprintf("%s/sites/site-1/lists/list-1/items?page=%d", f.server.URL, page+1)
		}
		_ = json.NewEncoder(w).Encode(body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGraph) client(opts ...Option) (*Client, *[]time.Duration) {
	var waits []time.Duration
	base := []Option{WithBaseURL(f.server.URL), WithRetry(3, time.Second, 30*time.Second)}
	c := New("contoso.sharepoint.com", "/sites/Docs",
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), append(base, opts...)...)
	c.newTimer = func() backoff.Timer { return &recordingTimer{waits: &waits} }
	return c, &waits
}

// recordingTimer fires immediately and records every requested wait.
type recordingTimer struct {
	waits *[]time.Duration
	c     chan time.Time
}

func (r *recordingTimer) Start(d time.Duration) {
	*r.waits = append(*r.waits, d)
	r.c = make(chan time.Time, 1)
	r.c <- time.Now()
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time { return r.c }

func items(n int, prefix string) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": fmt.Sprintf("%s%d", prefix, i), "fields": map[string]any{"Title": prefix}}
	}
	return out
}

func TestFetchListFollowsPagination(t *testing.T) {
	f := newFakeGraph(t)
	f.pages = [][]map[string]any{items(2, "a"), items(3, "b")}
	c, _ := f.client()

	got, err := c.FetchList(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, "b2", got[4]["id"])

	first := f.requests[1]
	assert.Equal(t, "fields", first.URL.Query().Get("$expand"))
	assert.Equal(t, "1000", first.URL.Query().Get("$top"))
	assert.Equal(t, "Bearer tok", first.Header.Get("Authorization"))
	assert.NotEmpty(t, first.Header.Get("X-Request-ID"))
}

func TestSiteIDIsMemoized(t *testing.T) {
	f := newFakeGraph(t)
	f.pages = [][]map[string]any{items(1, "a")}
	c, _ := f.client()

	for range 3 {
		_, err := c.FetchList(context.Background(), "list-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.siteCalls.Load())
}

func TestRetryableStatusIsRetriedWithBackoff(t *testing.T) {
	f := newFakeGraph(t)
	f.pages = [][]map[string]any{items(1, "a")}
	f.failures = []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}
	c, waits := f.client()

	got, err := c.FetchList(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestRetryAfterIsHonouredAndCapped(t *testing.T) {
	f := newFakeGraph(t)
	f.pages = [][]map[string]any{items(1, "a")}
	f.failures = []int{http.StatusTooManyRequests}
	f.retryHdr = "120"
	c, waits := f.client()

	_, err := c.FetchList(context.Background(), "list-1")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{60 * time.Second}, *waits)
}

func TestNonRetryableStatusFailsImmediately(t *testing.T) {
	f := newFakeGraph(t)
	f.failures = []int{http.StatusForbidden}
	c, waits := f.client()

	_, err := c.FetchList(context.Background(), "list-1")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
	assert.Empty(t, *waits)
}

func TestRetriesAreBounded(t *testing.T) {
	f := newFakeGraph(t)
	f.failures = []int{503, 503, 503, 503, 503}
	c, waits := f.client(WithSiteID("site-1"))

	_, err := c.FetchList(context.Background(), "list-1")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 503, statusErr.Code)
	assert.Len(t, *waits, 3)
	assert.Len(t, f.requests, 4)
}

func TestBackoffIsCapped(t *testing.T) {
	c := New("h", "/p", nil, WithRetry(10, time.Second, 30*time.Second))
	policy := c.retryPolicy()

	var waits []time.Duration
	for range 7 {
		waits = append(waits, policy.NextBackOff())
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, waits)

	policy.hint = 5 * time.Second
	assert.Equal(t, 5*time.Second, policy.NextBackOff())
	policy.hint = 2 * time.Minute
	assert.Equal(t, maxRetryAfter, policy.NextBackOff())
}

func TestRetryBudgetStopsPolicy(t *testing.T) {
	c := New("h", "/p", nil, WithRetry(2, time.Millisecond, time.Millisecond))
	policy := c.retryPolicy()
	policy.hint = time.Second

	assert.Equal(t, time.Second, policy.NextBackOff())
	assert.Equal(t, time.Second, policy.NextBackOff())
	assert.Equal(t, backoff.Stop, policy.NextBackOff(), "the hint never extends the retry budget")
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	f := newFakeGraph(t)
	f.failures = []int{503, 503, 503, 503}
	c := New("contoso.sharepoint.com", "/sites/Docs", nil,
		WithBaseURL(f.server.URL), WithSiteID("site-1"), WithRetry(3, time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchList(ctx, "list-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "the last response is kept in the error")
	assert.Equal(t, 503, statusErr.Code)
	assert.Len(t, f.requests, 1)
}

func TestPerRequestTimeoutSurfacesAsError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	c := New("h", "/p", nil, WithBaseURL(server.URL), WithSiteID("s"), WithTimeout(20*time.Millisecond), WithRetry(1, time.Millisecond, time.Millisecond))

	_, err := c.FetchList(context.Background(), "list-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
