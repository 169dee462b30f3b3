package models

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	// Query is the search phrase. Required.
	Query string `json:"query" binding:"required"`

	// Engine selects the search engine: "google" (default), "bing",
	// "duckduckgo".
	Engine string `json:"engine,omitempty" binding:"omitempty,oneof=google bing duckduckgo"`

	// Page is the zero-based result page. Default: 0.
	Page int `json:"page,omitempty" binding:"omitempty,min=0,max=20"`

	// Limit caps the number of returned results. Zero means engine default.
	Limit int `json:"limit,omitempty" binding:"omitempty,min=1,max=50"`

	// Cache controls SERP result caching. Default: true.
	Cache *bool `json:"cache,omitempty"`
}

// SearchResult is a single search-engine result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	Query       string         `json:"query"`
	Engine      string         `json:"engine"`
	Results     []SearchResult `json:"results"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	CacheStatus string         `json:"cache_status,omitempty"`
	Error       *ErrorDetail   `json:"error,omitempty"`
}
