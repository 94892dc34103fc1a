package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Extraction caps keep records bounded on pathological pages.
// A page with hundreds of anchors or images does not make its structured
// summary more useful, it just inflates memory and report size.
const (
	// MaxHeadingsPerLevel is the maximum number of headings recorded per level.
	MaxHeadingsPerLevel = 5

	// MaxLinksPerPage is the maximum number of distinct links recorded per page.
	MaxLinksPerPage = 50

	// MaxImagesPerPage is the maximum number of images recorded per page.
	MaxImagesPerPage = 20
)

// PageRecord is the structured result of fetching and extracting one page.
// It is created once per successfully fetched page and never mutated after
// creation; the engine hands it to the output collaborator and forgets it.
type PageRecord struct {
	// URL is the normalized absolute URL of the page.
	URL string `json:"url"`

	// Domain is the host component of URL, including any non-standard port.
	Domain string `json:"domain"`

	// Title is the text of the first <title> element. Empty if absent.
	Title string `json:"title"`

	// MetaDescription is the content of <meta name="description">.
	MetaDescription string `json:"meta_description"`

	// MetaKeywords is the content of <meta name="keywords">.
	MetaKeywords string `json:"meta_keywords"`

	// Headings holds h1/h2/h3 texts in document order.
	Headings Headings `json:"headings"`

	// Links contains absolute URLs of hyperlinks found on the page,
	// fragment-stripped and deduplicated in document order.
	Links []string `json:"links"`

	// Images contains image references with resolved src and alt text.
	Images []Image `json:"images"`

	// TextLength is the rune count of the page's visible text content.
	TextLength int `json:"text_length"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response, without parameters.
	ContentType string `json:"content_type,omitempty"`

	// Hash is the BLAKE2b-256 hash of the raw response body.
	// Used by the compare command for change detection between sessions.
	Hash string `json:"hash,omitempty"`

	// Timestamp records when the page was fetched.
	Timestamp time.Time `json:"timestamp"`
}

// Headings groups heading texts by level, each in document order.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

// Image is a single image reference found on a page.
type Image struct {
	// Src is the image source URL resolved to absolute form.
	Src string `json:"src"`

	// Alt is the image's alt text. Empty string if the attribute is absent.
	Alt string `json:"alt"`
}

// ComputeHash calculates and sets the BLAKE2b-256 hash of the raw body.
// An empty body yields an empty hash.
func (p *PageRecord) ComputeHash(raw []byte) {
	if len(raw) == 0 {
		p.Hash = ""
		return
	}
	sum := blake2b.Sum256(raw)
	p.Hash = hex.EncodeToString(sum[:])
}
