package extract

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// minContentLength is the minimum readability text length considered a
// successful extraction; below it the raw HTML is used instead.
const minContentLength = 50

// Default is the shipped Extractor: Mozilla readability for the main body,
// html-to-markdown for markup conversion, goquery for link harvesting.
// Goroutine-safe; the converter is reusable.
type Default struct {
	conv *converter.Converter
}

// NewDefault creates the default extractor.
func NewDefault() *Default {
	return &Default{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Extract runs readability over the raw HTML and converts the main content
// to markdown. It never fails outright on extraction problems: readability
// misses fall back to converting the full document.
func (d *Default) Extract(rawHTML, pageURL string) (*Extraction, error) {
	content := rawHTML
	ex := &Extraction{}

	if parsed, err := url.Parse(pageURL); err == nil {
		article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
		if err == nil && len(strings.TrimSpace(article.TextContent)) >= minContentLength {
			content = article.Content
			ex.Title = article.Title
			ex.Byline = article.Byline
			ex.Excerpt = article.Excerpt
			ex.Text = strings.TrimSpace(article.TextContent)
		} else if err != nil {
			slog.Debug("extract: readability failed, converting full document", "url", pageURL, "error", err)
		}
	}

	domain := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		domain = parsed.Scheme + "://" + parsed.Host
	}
	markdown, err := d.conv.ConvertString(content, converter.WithDomain(domain))
	if err != nil {
		return nil, err
	}
	ex.Markdown = markdown

	if ex.Text == "" {
		ex.Text = visibleText(rawHTML)
	}
	ex.WordCount = len(strings.Fields(ex.Text))
	ex.Links, ex.ImageCount = harvest(rawHTML, pageURL)
	return ex, nil
}

// harvest collects absolute http(s) links and counts images.
func harvest(rawHTML, pageURL string) ([]Link, int) {
	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, 0
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, 0
	}

	var links []Link
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved, err := baseURL.Parse(href)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, Link{Href: abs, Text: strings.TrimSpace(s.Text())})
	})

	return links, doc.Find("img[src]").Length()
}

// visibleText strips tags from the document body.
func visibleText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// FilterHTML returns the concatenated outer HTML of the elements matching
// the CSS selector. No matches fall back to the original document so
// downstream transforms still have input.
func FilterHTML(rawHTML, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}
	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return rawHTML, nil
	}
	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
