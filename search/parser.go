package search

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/acquire/models"
)

// serpSelectors maps an engine to the CSS selectors for its result blocks.
// These track the engines' current DOM and will drift over time.
type serpSelectors struct {
	container string
	title     string
	link      string
	snippet   string
}

var selectorsByEngine = map[string]serpSelectors{
	EngineGoogle: {
		container: "#search .g, #rso .g, #search .MjjYud, #rso .MjjYud",
		title:     "h3",
		link:      "a[href]",
		snippet:   ".VwiC3b, .IsZvec",
	},
	EngineBing: {
		container: "li.b_algo",
		title:     "h2",
		link:      "h2 a[href]",
		snippet:   "div.b_caption p",
	},
	EngineDuckDuckGo: {
		container: ".result, article.result, .web-result",
		title:     "h2, .result__title",
		link:      "a.result__a, a.result__url",
		snippet:   ".result__snippet",
	},
}

// SERPParser is the default ResultParser, built on goquery.
type SERPParser struct{}

// NewSERPParser creates the default parser.
func NewSERPParser() *SERPParser {
	return &SERPParser{}
}

// Parse extracts organic results from raw SERP HTML. Blocks missing a title
// or a usable link are skipped; engine-internal links are filtered out.
func (p *SERPParser) Parse(engine, rawHTML string) ([]models.SearchResult, error) {
	sel, ok := selectorsByEngine[engine]
	if !ok {
		return nil, models.NewAcquireError(models.ErrKindInvalidInput, "unknown search engine "+engine, nil)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	seen := make(map[string]struct{})
	doc.Find(sel.container).Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(sel.title).First().Text())
		if title == "" {
			return
		}
		href, ok := s.Find(sel.link).First().Attr("href")
		if !ok {
			return
		}
		target := normalizeResultURL(href)
		if target == "" {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		results = append(results, models.SearchResult{
			Title:   title,
			URL:     target,
			Snippet: strings.TrimSpace(s.Find(sel.snippet).First().Text()),
		})
	})
	return results, nil
}

// normalizeResultURL unwraps engine redirect URLs and drops links that stay
// inside the engine itself. DuckDuckGo wraps targets in /l/?uddg=..., Google
// in /url?q=....
func normalizeResultURL(href string) string {
	if strings.HasPrefix(href, "/url?") || strings.HasPrefix(href, "/search?") {
		if parsed, err := url.Parse(href); err == nil {
			if target := parsed.Query().Get("q"); strings.HasPrefix(target, "http") {
				return target
			}
		}
		return ""
	}
	if strings.Contains(href, "duckduckgo.com/l/?") {
		if parsed, err := url.Parse(href); err == nil {
			if target := parsed.Query().Get("uddg"); target != "" {
				if decoded, err := url.QueryUnescape(target); err == nil {
					return decoded
				}
				return target
			}
		}
		return ""
	}
	if !strings.HasPrefix(href, "http") {
		return ""
	}
	return href
}
