// Package orchestrator coordinates a single acquisition across the result
// cache, the engine preference chain, and the content-extraction
// collaborator. It owns engine selection and fallback; engines themselves
// stay ignorant of each other.
package orchestrator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/acquire/cache"
	"github.com/use-agent/acquire/config"
	"github.com/use-agent/acquire/engine"
	"github.com/use-agent/acquire/extract"
	"github.com/use-agent/acquire/models"
)

// Orchestrator routes acquisition requests through the cache and the engine
// chain. Safe for concurrent use.
type Orchestrator struct {
	engines   map[string]engine.Engine
	cache     *cache.Cache
	extractor extract.Extractor
	batchCfg  config.BatchConfig
}

// fallbackOrder is the full preference chain, most capable first. Fallback
// walks it left to right, skipping engines that cannot serve the request.
var fallbackOrder = []string{
	models.EngineAttached,
	models.EngineBrowser,
	models.EnginePooled,
	models.EngineHTTP,
}

// cheapFirst is the auto-mode chain for requests with no browser demands.
var cheapFirst = []string{models.EnginePooled, models.EngineHTTP}

// browserClass reports whether the named engine renders JavaScript.
func browserClass(name string) bool {
	return name == models.EngineBrowser || name == models.EngineAttached
}

// New creates an Orchestrator over the given engines. The cache and extractor
// may be nil; the corresponding features are then disabled.
func New(engines []engine.Engine, c *cache.Cache, ex extract.Extractor, batchCfg config.BatchConfig) *Orchestrator {
	m := make(map[string]engine.Engine, len(engines))
	for _, e := range engines {
		m[e.Name()] = e
	}
	return &Orchestrator{engines: m, cache: c, extractor: ex, batchCfg: batchCfg}
}

// EngineStatus reports one engine's availability.
type EngineStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// AvailableEngines lists every registered engine with its availability probe
// result, in fallback-chain order.
func (o *Orchestrator) AvailableEngines() []EngineStatus {
	statuses := make([]EngineStatus, 0, len(o.engines))
	for _, name := range fallbackOrder {
		e, ok := o.engines[name]
		if !ok {
			continue
		}
		statuses = append(statuses, EngineStatus{Name: name, Available: e.Available()})
	}
	return statuses
}

// Acquire fetches one page: cache first, then the engine chain, then
// extraction and cache write-back.
func (o *Orchestrator) Acquire(ctx context.Context, req *models.AcquireRequest) (*models.AcquireResult, error) {
	req.Defaults()
	start := time.Now()

	key := cache.Key(req.URL, req.Script, req.WaitSelector)
	useCache := o.cache != nil && req.CacheEnabled()

	// The stale snapshot is taken before the freshness check: an expired
	// entry is deleted by the fresh read, but its validator tokens are still
	// wanted for a conditional refetch.
	var stale *cache.Entry
	if useCache {
		if entry, ok := o.cache.GetStale(key); ok && (entry.ETag != "" || entry.LastModified != "") {
			stale = entry
		}
		if entry, ok := o.cache.Get(key); ok {
			result := entry.Result.Clone()
			result.CacheStatus = models.CacheHit
			result.ElapsedMs = time.Since(start).Milliseconds()
			return result, nil
		}
	}

	freq := o.engineRequest(req)
	if stale != nil {
		if stale.ETag != "" {
			freq.Headers["If-None-Match"] = stale.ETag
		}
		if stale.LastModified != "" {
			freq.Headers["If-Modified-Since"] = stale.LastModified
		}
	}

	res, err := o.fetchChain(ctx, req, freq)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusNotModified && stale != nil {
		// Origin revalidated the stale copy; re-stamp it and serve it.
		o.cache.Set(key, &cache.Entry{
			Result:       stale.Result,
			TTL:          cache.ParseMaxAge(res.CacheControl),
			ETag:         res.ETag,
			LastModified: res.LastModified,
		})
		result := stale.Result.Clone()
		result.CacheStatus = models.CacheHit
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result, nil
	}

	result := &models.AcquireResult{
		URL:         req.URL,
		FinalURL:    res.FinalURL,
		Title:       res.Title,
		HTML:        res.HTML,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Engine:      res.Engine,
	}

	if o.extractor != nil && (req.ExtractText || req.ExtractMarkdown) {
		if ex, exErr := o.extractor.Extract(res.HTML, result.FinalURL); exErr != nil {
			slog.Warn("content extraction failed", "url", req.URL, "error", exErr)
		} else {
			if req.ExtractText {
				result.Text = ex.Text
			}
			if req.ExtractMarkdown {
				result.Markdown = ex.Markdown
			}
			if result.Title == "" {
				result.Title = ex.Title
			}
		}
	}

	if useCache {
		o.cache.Set(key, &cache.Entry{
			Result:       result.Clone(),
			TTL:          cache.ParseMaxAge(res.CacheControl),
			ETag:         res.ETag,
			LastModified: res.LastModified,
		})
		result.CacheStatus = models.CacheMiss
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}

// fetchChain walks the engine chain for the request, falling through on
// failure when allowed. Auto mode additionally escalates HTTP-class results
// that look like unrendered JavaScript shells.
func (o *Orchestrator) fetchChain(ctx context.Context, req *models.AcquireRequest, freq *engine.Request) (*engine.Result, error) {
	chain := o.chainFor(req)
	if len(chain) == 0 {
		return nil, models.NewAcquireError(models.ErrKindConnection, "no engine available for request", nil)
	}

	var lastErr error
	for i, e := range chain {
		res, err := e.Fetch(ctx, freq)
		if err != nil {
			lastErr = err
			if !req.FallbackAllowed() {
				break
			}
			if i < len(chain)-1 {
				slog.Debug("engine failed, falling back",
					"engine", e.Name(), "next", chain[i+1].Name(), "url", req.URL, "error", err)
			}
			continue
		}

		if req.Engine == models.EngineAuto && req.FallbackAllowed() && !browserClass(e.Name()) &&
			engine.NeedsBrowser([]byte(res.HTML)) {
			if escalated := o.escalate(ctx, freq); escalated != nil {
				return escalated, nil
			}
		}
		return res, nil
	}
	if lastErr == nil {
		lastErr = models.NewAcquireError(models.ErrKindConnection, "no engine available for request", nil)
	}
	return nil, lastErr
}

// escalate retries the fetch on the first available browser-class engine.
// A nil return means escalation was impossible or failed; the caller keeps
// the HTTP-class result it already has.
func (o *Orchestrator) escalate(ctx context.Context, freq *engine.Request) *engine.Result {
	for _, name := range fallbackOrder {
		if !browserClass(name) {
			continue
		}
		e, ok := o.engines[name]
		if !ok || !e.Available() {
			continue
		}
		res, err := e.Fetch(ctx, freq)
		if err != nil {
			slog.Debug("browser escalation failed, keeping static result",
				"engine", name, "url", freq.URL, "error", err)
			return nil
		}
		return res
	}
	return nil
}

// chainFor builds the ordered engine candidates for the request, filtered to
// available engines that can actually serve it.
func (o *Orchestrator) chainFor(req *models.AcquireRequest) []engine.Engine {
	browserOnly := req.Wait == models.WaitNetwork || req.WaitSelector != "" || req.Script != ""

	var names []string
	switch {
	case req.Engine != "" && req.Engine != models.EngineAuto:
		names = append(names, req.Engine)
		if req.FallbackAllowed() {
			for _, n := range fallbackOrder {
				if n != req.Engine {
					names = append(names, n)
				}
			}
		}
	case req.NeedsBrowser():
		names = []string{models.EngineAttached, models.EngineBrowser}
		if !browserOnly && req.FallbackAllowed() {
			names = append(names, cheapFirst...)
		}
	default:
		names = cheapFirst
	}

	var chain []engine.Engine
	for _, name := range names {
		if browserOnly && !browserClass(name) {
			continue
		}
		e, ok := o.engines[name]
		if !ok || !e.Available() {
			continue
		}
		chain = append(chain, e)
	}
	return chain
}

// engineRequest converts the API request into the engine-level request.
// Headers are copied so validator injection never mutates caller state.
func (o *Orchestrator) engineRequest(req *models.AcquireRequest) *engine.Request {
	headers := make(map[string]string, len(req.Headers)+2)
	for k, v := range req.Headers {
		headers[k] = v
	}
	return &engine.Request{
		URL:          req.URL,
		Headers:      headers,
		Cookies:      req.Cookies,
		Timeout:      time.Duration(req.Timeout) * time.Second,
		Stealth:      req.Stealth,
		Wait:         req.Wait,
		WaitSelector: req.WaitSelector,
		Script:       req.Script,
		Profile:      req.Profile,
	}
}
