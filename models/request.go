package models

// Wait policies controlling when a page counts as loaded.
const (
	// WaitNone returns as soon as navigation commits.
	WaitNone = "none"
	// WaitDOM waits for the DOM to stop mutating.
	WaitDOM = "dom"
	// WaitNetwork waits for the network to settle. Requires a browser-class
	// engine since plain HTTP has no concept of post-load requests.
	WaitNetwork = "network"
)

// Engine preferences accepted in AcquireRequest.Engine.
const (
	EngineAuto     = "auto"
	EngineHTTP     = "http"
	EnginePooled   = "pooled"
	EngineBrowser  = "browser"
	EngineAttached = "attached"
)

// Cookie is a cookie applied to the request before navigation.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value" binding:"required"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// AcquireRequest is the payload for POST /api/v1/acquire. It is immutable
// once submitted; Defaults must be applied before first use.
type AcquireRequest struct {
	// URL is the target page. Required.
	URL string `json:"url" binding:"required,url"`

	// Engine selects the fetch engine: "auto" (default), "http", "pooled",
	// "browser", or "attached".
	Engine string `json:"engine,omitempty" binding:"omitempty,oneof=auto http pooled browser attached"`

	// Fallback controls whether a failed engine falls through to the next
	// one in the preference chain. Default: true.
	Fallback *bool `json:"fallback,omitempty"`

	// Wait is the load-completion policy: "none", "dom" (default), "network".
	Wait string `json:"wait,omitempty" binding:"omitempty,oneof=none dom network"`

	// WaitSelector, when set, delays completion until an element matching
	// the CSS selector appears. Browser-class engines only.
	WaitSelector string `json:"wait_selector,omitempty"`

	// Script is an optional JavaScript expression evaluated after load.
	// Browser-class engines only.
	Script string `json:"script,omitempty"`

	// Timeout is the maximum duration in seconds for the whole acquisition.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Cache controls result caching. Default: true.
	Cache *bool `json:"cache,omitempty"`

	// Stealth enables anti-bot-detection evasions on browser engines.
	Stealth bool `json:"stealth,omitempty"`

	// Profile is the session identity used by the attached engine.
	// Empty means the default profile.
	Profile string `json:"profile,omitempty"`

	// Headers are extra request headers (HTTP-class engines).
	Headers map[string]string `json:"headers,omitempty"`

	// Cookies are applied before navigation.
	Cookies []Cookie `json:"cookies,omitempty"`

	// ExtractText requests plain-text extraction from the raw HTML.
	ExtractText bool `json:"extract_text,omitempty"`

	// ExtractMarkdown requests markdown conversion of the raw HTML.
	ExtractMarkdown bool `json:"extract_markdown,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *AcquireRequest) Defaults() {
	if r.Engine == "" {
		r.Engine = EngineAuto
	}
	if r.Fallback == nil {
		t := true
		r.Fallback = &t
	}
	if r.Wait == "" {
		r.Wait = WaitDOM
	}
	if r.Timeout == 0 {
		r.Timeout = 30
	}
	if r.Cache == nil {
		t := true
		r.Cache = &t
	}
}

// CacheEnabled reports whether this request may read from or write to the
// result cache.
func (r *AcquireRequest) CacheEnabled() bool {
	return r.Cache == nil || *r.Cache
}

// FallbackAllowed reports whether a failed engine may fall through to the
// next engine in the chain.
func (r *AcquireRequest) FallbackAllowed() bool {
	return r.Fallback == nil || *r.Fallback
}

// NeedsBrowser reports whether the request demands a browser-class engine
// regardless of engine preference.
func (r *AcquireRequest) NeedsBrowser() bool {
	if r.Engine == EngineBrowser || r.Engine == EngineAttached {
		return true
	}
	return r.Wait == WaitNetwork || r.WaitSelector != "" || r.Script != ""
}
