package models

// Cache status values reported in AcquireResult.CacheStatus.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// AcquireResult is the outcome of a successful acquisition. The caller owns
// the returned value exclusively; the cache keeps its own copy.
type AcquireResult struct {
	// URL is the requested target.
	URL string `json:"url"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`

	// Title is the page title.
	Title string `json:"title"`

	// HTML is the raw page content.
	HTML string `json:"html"`

	// Text is the derived plain text (filled by the extraction collaborator
	// when requested).
	Text string `json:"text,omitempty"`

	// Markdown is the derived markup (filled by the extraction collaborator
	// when requested).
	Markdown string `json:"markdown,omitempty"`

	// StatusCode is the HTTP status of the fetched page, 0 when unknown.
	StatusCode int `json:"status_code"`

	// ContentType is the response content type, when known.
	ContentType string `json:"content_type,omitempty"`

	// Engine names the fetch engine that produced the result.
	Engine string `json:"engine"`

	// ElapsedMs is the end-to-end duration in milliseconds.
	ElapsedMs int64 `json:"elapsed_ms"`

	// CacheStatus is "hit", "miss", or empty when caching was disabled.
	CacheStatus string `json:"cache_status,omitempty"`
}

// Clone returns an independent copy of the result so the cache and the
// caller never share mutable state.
func (r *AcquireResult) Clone() *AcquireResult {
	c := *r
	return &c
}
