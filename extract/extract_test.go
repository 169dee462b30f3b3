package extract

import (
	"strings"
	"testing"
)

const pageHTML = `<html><body>
<nav><a href="/about">About</a></nav>
<article id="main">
  <h1>Heading</h1>
  <p>Body text with a <a href="https://other.example/path">remote link</a>
  and a <a href="/local">local link</a> and a <a href="/local">duplicate</a>
  and a <a href="mailto:x@example.com">mail link</a>.</p>
  <img src="/a.png"><img src="/b.png">
</article>
<script>ignored()</script>
</body></html>`

func TestHarvestResolvesAndDedupesLinks(t *testing.T) {
	links, images := harvest(pageHTML, "https://example.com/article")

	hrefs := make(map[string]bool, len(links))
	for _, l := range links {
		hrefs[l.Href] = true
	}
	for _, want := range []string{
		"https://example.com/about",
		"https://other.example/path",
		"https://example.com/local",
	} {
		if !hrefs[want] {
			t.Errorf("missing link %s in %v", want, hrefs)
		}
	}
	if hrefs["mailto:x@example.com"] {
		t.Error("non-http link harvested")
	}
	if len(links) != 3 {
		t.Errorf("links = %d, want 3 (duplicate dropped)", len(links))
	}
	if images != 2 {
		t.Errorf("images = %d, want 2", images)
	}
}

func TestVisibleTextStripsScripts(t *testing.T) {
	text := visibleText(pageHTML)
	if strings.Contains(text, "ignored()") {
		t.Error("script content leaked into visible text")
	}
	if !strings.Contains(text, "Body text") {
		t.Errorf("visible text lost body content: %q", text)
	}
}

func TestFilterHTMLSelectsMatchingElements(t *testing.T) {
	out, err := FilterHTML(pageHTML, "#main h1")
	if err != nil {
		t.Fatalf("FilterHTML: %v", err)
	}
	if !strings.Contains(out, "<h1>Heading</h1>") {
		t.Errorf("filtered output = %q", out)
	}
	if strings.Contains(out, "<nav>") {
		t.Error("filtered output kept unmatched elements")
	}
}

func TestFilterHTMLNoMatchFallsBackToOriginal(t *testing.T) {
	out, err := FilterHTML(pageHTML, ".does-not-exist")
	if err != nil {
		t.Fatalf("FilterHTML: %v", err)
	}
	if out != pageHTML {
		t.Error("no-match filter should return the original document")
	}
}

func TestFilterHTMLRejectsBadSelector(t *testing.T) {
	if _, err := FilterHTML(pageHTML, "[["); err == nil {
		t.Fatal("malformed selector accepted")
	}
}

func TestExtractProducesMarkdownAndCounts(t *testing.T) {
	ex, err := NewDefault().Extract(pageHTML, "https://example.com/article")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ex.Markdown == "" {
		t.Error("no markdown produced")
	}
	if ex.Text == "" || ex.WordCount == 0 {
		t.Errorf("text/word count empty: %q / %d", ex.Text, ex.WordCount)
	}
	if ex.ImageCount != 2 {
		t.Errorf("ImageCount = %d, want 2", ex.ImageCount)
	}
	if len(ex.Links) == 0 {
		t.Error("no links harvested")
	}
}
