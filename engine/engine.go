package engine

import (
	"context"
	"time"

	"github.com/use-agent/acquire/models"
)

// Engine is the capability contract implemented by every fetch engine.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "pooled", "browser",
	// "attached").
	Name() string

	// Available probes whether the engine can run in the current
	// environment. Implementations may cache the answer for the process
	// lifetime.
	Available() bool

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *Request) (*Result, error)

	// FetchMany retrieves multiple targets under a concurrency window.
	FetchMany(ctx context.Context, targets []string, opts *BatchOptions) (*BatchResult, error)
}

// Request contains everything an engine needs to fetch a page.
type Request struct {
	URL          string
	Headers      map[string]string
	Cookies      []models.Cookie
	Timeout      time.Duration
	Stealth      bool
	Wait         string // models.WaitNone / WaitDOM / WaitNetwork
	WaitSelector string
	Script       string
	Profile      string
}

// Result is the output of a successful engine fetch.
type Result struct {
	HTML        string
	Title       string
	StatusCode  int
	ContentType string
	FinalURL    string
	Engine      string
	Elapsed     time.Duration

	// HTTP validator/freshness headers, when the transport exposes them.
	ETag         string
	LastModified string
	CacheControl string
}

// BatchOptions tune an engine-level batch fetch.
type BatchOptions struct {
	// Concurrency is the window size. Default: 3.
	Concurrency int

	// Request carries the shared per-target options.
	Request Request
}

// BatchResult is the settled outcome of an engine-level batch fetch. Every
// scheduled target lands in exactly one of Results or Failures.
type BatchResult struct {
	Results       map[string]*Result
	Failures      map[string]error
	TotalDuration time.Duration
}
