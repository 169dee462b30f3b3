// Package extract defines the narrow contract through which the acquisition
// core hands raw HTML to content-transformation collaborators, plus a
// default implementation. The orchestrator depends only on the Extractor
// interface.
package extract

// Extraction is the structured output of a content transform.
type Extraction struct {
	Title      string `json:"title"`
	Byline     string `json:"byline,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
	Text       string `json:"text,omitempty"`
	Markdown   string `json:"markdown,omitempty"`
	Links      []Link `json:"links,omitempty"`
	ImageCount int    `json:"image_count,omitempty"`
	WordCount  int    `json:"word_count,omitempty"`
}

// Link is a hyperlink found in the page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Extractor turns raw HTML into structured content. Implementations must be
// pure transforms: no I/O, safe for concurrent use.
type Extractor interface {
	Extract(rawHTML, pageURL string) (*Extraction, error)
}
