// Package parse extracts structured data from fetched HTML.
package parse

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
)

// HTMLParser turns fetched pages into ParseResults: title, outbound links
// resolved against the page URL, visible text, and meta tags.
type HTMLParser struct {
	logger *zap.Logger
}

// New builds an HTMLParser.
func New(logger *zap.Logger) *HTMLParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLParser{logger: logger}
}

// Parse implements crawl.Parser. Non-HTML and empty bodies are rejected with
// a ValidationError so the scheduler counts them against the task.
func (p *HTMLParser) Parse(ctx context.Context, res crawl.FetchResult) (crawl.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return crawl.ParseResult{}, err
	}
	if len(res.Body) == 0 {
		return crawl.ParseResult{}, &crawl.ValidationError{URL: res.URL, Reason: "empty body"}
	}
	if ct := res.ContentType; ct != "" && !strings.Contains(ct, "html") {
		return crawl.ParseResult{}, &crawl.ValidationError{
			URL:    res.URL,
			Reason: fmt.Sprintf("unsupported content type %q", ct),
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return crawl.ParseResult{}, &crawl.ValidationError{URL: res.URL, Reason: err.Error()}
	}

	out := crawl.ParseResult{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: p.extractLinks(doc, res.URL),
		Text:  collapseWhitespace(doc.Find("body").Text()),
		Meta:  extractMeta(doc),
	}

	p.logger.Debug("parsed page",
		zap.String("url", res.URL), zap.String("title", out.Title),
		zap.Int("links", len(out.Links)))
	return out, nil
}

func (p *HTMLParser) extractLinks(doc *goquery.Document, sourceURL string) []string {
	base, err := url.Parse(sourceURL)
	if err != nil {
		p.logger.Warn("unparseable source url; keeping absolute links only",
			zap.String("url", sourceURL))
		base = nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || skipLink(href) {
			return
		}
		resolved := resolveURL(href, base)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

func skipLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	switch {
	case href == "", strings.HasPrefix(href, "#"):
		return true
	case strings.HasPrefix(href, "javascript:"),
		strings.HasPrefix(href, "mailto:"),
		strings.HasPrefix(href, "tel:"),
		strings.HasPrefix(href, "data:"):
		return true
	}
	return false
}

func resolveURL(href string, base *url.URL) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		return ref.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func extractMeta(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok {
			key, ok = s.Attr("property")
		}
		if !ok || key == "" {
			return
		}
		if content, ok := s.Attr("content"); ok {
			meta[key] = content
		}
	})
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
