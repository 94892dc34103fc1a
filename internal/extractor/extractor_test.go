package extractor

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

const testURL = "https://a.test/dir/page.html"

func extract(t *testing.T, html string) (rec struct {
	Title, Desc, Keywords string
	H1, H2, H3, Links     []string
	TextLength            int
}) {
	t.Helper()
	r := Extract(testURL, "a.test", []byte(html), 200, time.Now())
	rec.Title = r.Title
	rec.Desc = r.MetaDescription
	rec.Keywords = r.MetaKeywords
	rec.H1, rec.H2, rec.H3 = r.Headings.H1, r.Headings.H2, r.Headings.H3
	rec.Links = r.Links
	rec.TextLength = r.TextLength
	return rec
}

// TestExtract tests structured extraction from HTML.
func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("extracts title and meta tags", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<title> Test Page </title>
			<meta name="description" content="A test page.">
			<meta name="KEYWORDS" content="go,crawler">
		</head><body></body></html>`

		rec := extract(t, html)
		if rec.Title != "Test Page" {
			t.Errorf("expected trimmed title, got %q", rec.Title)
		}
		if rec.Desc != "A test page." {
			t.Errorf("expected description, got %q", rec.Desc)
		}
		if rec.Keywords != "go,crawler" {
			t.Errorf("expected keywords despite attribute case, got %q", rec.Keywords)
		}
	})

	t.Run("extracts headings in document order", func(t *testing.T) {
		t.Parallel()

		rec := extract(t, `<html><body><h1>A</h1><h2>B</h2></body></html>`)
		if len(rec.H1) != 1 || rec.H1[0] != "A" {
			t.Errorf("expected h1=[A], got %v", rec.H1)
		}
		if len(rec.H2) != 1 || rec.H2[0] != "B" {
			t.Errorf("expected h2=[B], got %v", rec.H2)
		}
		if len(rec.H3) != 0 {
			t.Errorf("expected empty h3, got %v", rec.H3)
		}
	})

	t.Run("caps headings per level", func(t *testing.T) {
		t.Parallel()

		var sb strings.Builder
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&sb, "<h2>Heading %d</h2>", i)
		}
		rec := extract(t, "<html><body>"+sb.String()+"</body></html>")
		if len(rec.H2) != 5 {
			t.Errorf("expected 5 h2 headings, got %d", len(rec.H2))
		}
		if rec.H2[0] != "Heading 0" {
			t.Errorf("expected document order preserved, got %v", rec.H2)
		}
	})

	t.Run("resolves links and strips fragments", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/abs">abs</a>
			<a href="relative">rel</a>
			<a href="https://b.test/x#section">external</a>
			<a href="mailto:a@b.c">mail</a>
			<a href="javascript:void(0)">js</a>
			<a href="/abs">duplicate</a>
		</body></html>`

		rec := extract(t, html)
		want := []string{
			"https://a.test/abs",
			"https://a.test/dir/relative",
			"https://b.test/x",
		}
		if len(rec.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(rec.Links), rec.Links)
		}
		for i := range want {
			if rec.Links[i] != want[i] {
				t.Errorf("link %d: expected %q, got %q", i, want[i], rec.Links[i])
			}
		}
	})

	t.Run("extracts images with alt text", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<img src="/logo.png" alt="Logo">
			<img src="pic.jpg">
		</body></html>`

		r := Extract(testURL, "a.test", []byte(html), 200, time.Now())
		if len(r.Images) != 2 {
			t.Fatalf("expected 2 images, got %d", len(r.Images))
		}
		if r.Images[0].Src != "https://a.test/logo.png" || r.Images[0].Alt != "Logo" {
			t.Errorf("unexpected first image: %+v", r.Images[0])
		}
		if r.Images[1].Src != "https://a.test/dir/pic.jpg" || r.Images[1].Alt != "" {
			t.Errorf("expected empty alt for second image, got %+v", r.Images[1])
		}
	})

	t.Run("counts visible text only", func(t *testing.T) {
		t.Parallel()

		withScript := extract(t, `<html><body><p>hello</p><script>var x = "lots of invisible code";</script></body></html>`)
		plain := extract(t, `<html><body><p>hello</p></body></html>`)
		if withScript.TextLength != plain.TextLength {
			t.Errorf("script content should not count: %d vs %d", withScript.TextLength, plain.TextLength)
		}
		if plain.TextLength != len("hello") {
			t.Errorf("expected text length %d, got %d", len("hello"), plain.TextLength)
		}
	})

	t.Run("never fails on malformed markup", func(t *testing.T) {
		t.Parallel()

		r := Extract(testURL, "a.test", []byte("<html><h1>broken<"), 200, time.Now())
		if r == nil {
			t.Fatal("expected a record for malformed markup")
		}
		if r.URL != testURL || r.StatusCode != 200 {
			t.Error("record should carry URL and status even for broken pages")
		}
	})

	t.Run("empty body yields empty record", func(t *testing.T) {
		t.Parallel()

		r := Extract(testURL, "a.test", nil, 200, time.Now())
		if r.Title != "" || len(r.Links) != 0 || r.TextLength != 0 {
			t.Errorf("expected empty record, got %+v", r)
		}
		if r.Hash != "" {
			t.Errorf("expected empty hash for empty body, got %q", r.Hash)
		}
	})

	t.Run("sets content hash", func(t *testing.T) {
		t.Parallel()

		r := Extract(testURL, "a.test", []byte("<html></html>"), 200, time.Now())
		if r.Hash == "" {
			t.Error("expected content hash to be set")
		}
	})
}
