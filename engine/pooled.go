package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/use-agent/acquire/models"
)

// PooledEngine reuses connections through one bounded pool per origin.
// Functionally identical to HTTPEngine otherwise; the difference is purely
// connection reuse for callers that hit the same origins repeatedly.
type PooledEngine struct {
	mu    sync.Mutex
	pools map[string]*http.Client

	maxConnsPerHost int
	idleTimeout     time.Duration
	requestTimeout  time.Duration
}

// NewPooledEngine creates a PooledEngine. maxConnsPerHost bounds concurrent
// connections per origin; idleTimeout is the keep-alive window.
func NewPooledEngine(maxConnsPerHost int, idleTimeout, requestTimeout time.Duration) *PooledEngine {
	if maxConnsPerHost < 1 {
		maxConnsPerHost = 6
	}
	return &PooledEngine{
		pools:           make(map[string]*http.Client),
		maxConnsPerHost: maxConnsPerHost,
		idleTimeout:     idleTimeout,
		requestTimeout:  requestTimeout,
	}
}

func (e *PooledEngine) Name() string { return "pooled" }

func (e *PooledEngine) Available() bool { return true }

func (e *PooledEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	origin, err := originOf(req.URL)
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindNavigation, "invalid target URL", err)
	}
	return doRequest(ctx, e.clientFor(origin), e.Name(), req)
}

func (e *PooledEngine) FetchMany(ctx context.Context, targets []string, opts *BatchOptions) (*BatchResult, error) {
	return fetchMany(ctx, e, targets, opts)
}

// clientFor returns the origin's pooled client, creating it on first use.
// The mutex is the single-writer discipline guaranteeing one pool per
// origin.
func (e *PooledEngine) clientFor(origin string) *http.Client {
	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.pools[origin]; ok {
		return client
	}
	transport := &http.Transport{
		DialTLSContext:      dialTLSChrome,
		ForceAttemptHTTP2:   false,
		MaxConnsPerHost:     e.maxConnsPerHost,
		MaxIdleConnsPerHost: e.maxConnsPerHost,
		IdleConnTimeout:     e.idleTimeout,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   e.requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	e.pools[origin] = client
	return client
}

// PoolCount reports the number of live origin pools.
func (e *PooledEngine) PoolCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pools)
}

// Close shuts every origin pool's idle connections. Must be called on
// shutdown.
func (e *PooledEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for origin, client := range e.pools {
		if transport, ok := client.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
		delete(e.pools, origin)
	}
}

// originOf reduces a URL to its scheme://host origin.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("missing scheme or host in %q", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
