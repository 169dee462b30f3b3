package search

import (
	"fmt"
	"net/url"

	"github.com/use-agent/acquire/models"
)

// Search engine names accepted in SearchRequest.Engine.
const (
	EngineGoogle     = "google"
	EngineBing       = "bing"
	EngineDuckDuckGo = "duckduckgo"
)

// defaultLimit is the per-page result count requested from the engine when
// the caller does not cap results.
const defaultLimit = 10

// BuildQueryURL constructs the SERP URL for the engine, query, and zero-based
// page. Each engine has its own pagination convention: Google offsets by
// result index, Bing by one-based index, DuckDuckGo's HTML endpoint has no
// pagination at all.
func BuildQueryURL(engine, query string, page, limit int) (string, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	q := url.QueryEscape(query)

	switch engine {
	case EngineGoogle, "":
		u := fmt.Sprintf("https://www.google.com/search?q=%s&num=%d&hl=en&safe=off&pws=0", q, limit)
		if page > 0 {
			u += fmt.Sprintf("&start=%d", page*10)
		}
		return u, nil
	case EngineBing:
		u := fmt.Sprintf("https://www.bing.com/search?q=%s&count=%d&setlang=en", q, limit)
		if page > 0 {
			u += fmt.Sprintf("&first=%d", page*10+1)
		}
		return u, nil
	case EngineDuckDuckGo:
		return fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", q), nil
	default:
		return "", models.NewAcquireError(models.ErrKindInvalidInput, "unknown search engine "+engine, nil)
	}
}
