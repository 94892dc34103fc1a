package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/throttle"
)

// denyAll is a robots policy that disallows everything.
type denyAll struct{}

func (denyAll) Allowed(*url.URL) bool { return false }

func newTestFetcher(srv *httptest.Server, opts ...Option) *Fetcher {
	base := []Option{WithTimeout(2 * time.Second)}
	return New(srv.Client(), nil, throttle.New(0, nil), append(base, opts...)...)
}

// TestFetch tests the fetch pipeline.
func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns HTML body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><title>ok</title></html>"))
		}))
		defer srv.Close()

		res, err := newTestFetcher(srv).Fetch(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.IsHTML() {
			t.Fatal("expected HTML result")
		}
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
		if !strings.Contains(string(res.Body), "<title>ok</title>") {
			t.Errorf("unexpected body: %q", res.Body)
		}
	})

	t.Run("sends configured user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		f := newTestFetcher(srv, WithUserAgent("custombot/2.0"))
		if _, err := f.Fetch(context.Background(), srv.URL+"/"); err != nil {
			t.Fatal(err)
		}
		if gotUA != "custombot/2.0" {
			t.Errorf("expected custom user agent, got %q", gotUA)
		}
	})

	t.Run("applies site headers and cookie", func(t *testing.T) {
		t.Parallel()

		var gotCookie, gotHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotHeader = r.Header.Get("X-Custom")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		u, _ := url.Parse(srv.URL)
		sites := &config.File{
			Sites: map[string]config.SiteConfig{
				u.Host: {
					Cookie:  "session=abc",
					Headers: map[string]string{"X-Custom": "yes"},
				},
			},
		}

		f := newTestFetcher(srv, WithSiteConfigs(sites))
		if _, err := f.Fetch(context.Background(), srv.URL+"/"); err != nil {
			t.Fatal(err)
		}
		if gotCookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", gotCookie)
		}
		if gotHeader != "yes" {
			t.Errorf("expected site header, got %q", gotHeader)
		}
	})

	t.Run("robots disallow makes no request", func(t *testing.T) {
		t.Parallel()

		var requests int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer srv.Close()

		f := New(srv.Client(), denyAll{}, throttle.New(0, nil), WithTimeout(time.Second))
		_, err := f.Fetch(context.Background(), srv.URL+"/private")

		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != KindRobotsDisallowed {
			t.Fatalf("expected RobotsDisallowed error, got %v", err)
		}
		if requests != 0 {
			t.Errorf("expected no HTTP requests, got %d", requests)
		}
	})

	t.Run("non-HTML content yields bodyless result", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		}))
		defer srv.Close()

		res, err := newTestFetcher(srv).Fetch(context.Background(), srv.URL+"/doc.pdf")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.IsHTML() {
			t.Error("expected bodyless result for non-HTML content")
		}
		if res.ContentType != "application/pdf" {
			t.Errorf("expected content type preserved, got %q", res.ContentType)
		}
	})

	t.Run("429 returns RateLimited and engages backoff", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		th := throttle.New(10*time.Millisecond, nil)
		f := New(srv.Client(), nil, th, WithTimeout(time.Second))
		_, err := f.Fetch(context.Background(), srv.URL+"/")

		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != KindRateLimited {
			t.Fatalf("expected RateLimited error, got %v", err)
		}
		u, _ := url.Parse(srv.URL)
		if th.RateLimitHits(u.Host) != 1 {
			t.Error("expected throttle to record the 429")
		}
	})

	t.Run("http error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestFetcher(srv).Fetch(context.Background(), srv.URL+"/")

		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != KindHTTPError {
			t.Fatalf("expected HTTPError, got %v", err)
		}
		if fe.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", fe.StatusCode)
		}
	})

	t.Run("timeout is classified", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer srv.Close()

		f := New(srv.Client(), nil, throttle.New(0, nil), WithTimeout(50*time.Millisecond))
		_, err := f.Fetch(context.Background(), srv.URL+"/slow")

		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != KindTimeout {
			t.Fatalf("expected Timeout error, got %v", err)
		}
	})

	t.Run("connection error is classified", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		addr := srv.URL
		srv.Close()

		f := New(&http.Client{}, nil, throttle.New(0, nil), WithTimeout(time.Second))
		_, err := f.Fetch(context.Background(), addr+"/")

		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != KindConnection {
			t.Fatalf("expected ConnectionError, got %v", err)
		}
	})

	t.Run("cancellation propagates as context error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		f := newTestFetcher(srv)
		_, err := f.Fetch(ctx, srv.URL+"/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("body is limited to max size", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
		}))
		defer srv.Close()

		f := newTestFetcher(srv, WithMaxBodySize(1024))
		res, err := f.Fetch(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Body) > 1024 {
			t.Errorf("expected body capped at 1024 bytes, got %d", len(res.Body))
		}
	})
}

// TestKindString tests the skip-reason names.
func TestKindString(t *testing.T) {
	t.Parallel()

	cases := map[Kind]string{
		KindTimeout:          "timeout",
		KindConnection:       "connection_error",
		KindRobotsDisallowed: "robots_disallowed",
		KindRateLimited:      "rate_limited",
		KindHTTPError:        "http_error",
		Kind(99):             "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
