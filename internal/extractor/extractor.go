package extractor

import (
	"bytes"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/webcrawl/internal/model"
)

// Extract parses fetched HTML into a PageRecord. Extraction is
// best-effort: malformed markup never fails the operation, missing
// elements yield empty fields. The returned record always carries the
// URL, domain, status code, timestamp, and content hash.
func Extract(rawURL, domain string, body []byte, statusCode int, timestamp time.Time) *model.PageRecord {
	rec := &model.PageRecord{
		URL:        rawURL,
		Domain:     domain,
		StatusCode: statusCode,
		Timestamp:  timestamp,
		Headings: model.Headings{
			H1: []string{},
			H2: []string{},
			H3: []string{},
		},
		Links:  []string{},
		Images: []model.Image{},
	}
	rec.ComputeHash(body)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return rec
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		base = nil
	}

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	extractMetaTags(doc, rec)
	rec.Headings.H1 = extractHeadings(doc, "h1")
	rec.Headings.H2 = extractHeadings(doc, "h2")
	rec.Headings.H3 = extractHeadings(doc, "h3")
	rec.Links = extractLinks(doc, base)
	rec.Images = extractImages(doc, base)

	// Strip non-visible content before measuring text. Done last because
	// Remove mutates the document.
	doc.Find("script, style, noscript").Remove()
	text := strings.TrimSpace(doc.Text())
	rec.TextLength = utf8.RuneCountInString(norm.NFC.String(text))

	return rec
}

// extractMetaTags fills description and keywords from name-matched meta
// elements. Name matching is case-insensitive, as browsers treat it.
func extractMetaTags(doc *goquery.Document, rec *model.PageRecord) {
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		switch strings.ToLower(name) {
		case "description":
			if rec.MetaDescription == "" {
				rec.MetaDescription = strings.TrimSpace(content)
			}
		case "keywords":
			if rec.MetaKeywords == "" {
				rec.MetaKeywords = strings.TrimSpace(content)
			}
		}
	})
}

// extractHeadings collects non-empty heading texts of one level in
// document order, up to the per-level cap.
func extractHeadings(doc *goquery.Document, level string) []string {
	headings := []string{}
	doc.Find(level).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			headings = append(headings, text)
		}
		return len(headings) < model.MaxHeadingsPerLevel
	})
	return headings
}

// extractLinks collects hyperlink targets resolved to absolute URLs,
// fragment-stripped and deduplicated in document order.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	links := []string{}
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		resolved := resolveURL(base, href)
		if resolved != "" && !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
		return len(links) < model.MaxLinksPerPage
	})
	return links
}

// extractImages collects image references with resolved src and alt text.
func extractImages(doc *goquery.Document, base *url.URL) []model.Image {
	images := []model.Image{}

	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		resolved := resolveURL(base, src)
		if resolved != "" {
			alt, _ := s.Attr("alt")
			images = append(images, model.Image{
				Src: resolved,
				Alt: strings.TrimSpace(alt),
			})
		}
		return len(images) < model.MaxImagesPerPage
	})
	return images
}

// resolveURL resolves a reference against the base URL and strips the
// fragment. Non-navigational schemes and empty references yield "".
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "#" ||
		strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "tel:") ||
		strings.HasPrefix(ref, "data:") {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	// Fragments address positions within a page, not pages
	u.Fragment = ""
	return u.String()
}
