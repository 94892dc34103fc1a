package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/throttle"
)

// Kind classifies a fetch failure. The engine maps kinds to skip reasons;
// no kind is fatal to the crawl.
type Kind int

// Fetch failure kinds.
const (
	// KindTimeout means the request exceeded the configured timeout.
	KindTimeout Kind = iota + 1

	// KindConnection means the request failed at the network level
	// before or while receiving a response.
	KindConnection

	// KindRobotsDisallowed means robots.txt forbids the URL for the
	// configured agent. No HTTP request was made.
	KindRobotsDisallowed

	// KindRateLimited means the server answered 429. Backoff has been
	// engaged for the domain.
	KindRateLimited

	// KindHTTPError means a 4xx/5xx response other than 429.
	KindHTTPError
)

// String returns the skip-reason name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection_error"
	case KindRobotsDisallowed:
		return "robots_disallowed"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTPError:
		return "http_error"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure for a single URL.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// URL is the URL whose fetch failed.
	URL string

	// StatusCode is the HTTP status, when a response was received.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Result is a completed fetch. Body is nil when the response was not
// HTML; such pages still count as visited but are not extracted.
type Result struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// ContentType is the response media type without parameters.
	ContentType string

	// Body is the decoded response body, nil for non-HTML content.
	Body []byte
}

// IsHTML reports whether the result carries an HTML body.
func (r *Result) IsHTML() bool {
	return r.Body != nil
}

// RobotsPolicy is the part of the robots package the fetcher needs.
// A nil policy means compliance is disabled: everything is allowed.
type RobotsPolicy interface {
	Allowed(u *url.URL) bool
}

// Fetcher performs politeness-gated HTTP GETs.
// Every fetch consults the robots policy first (no request is made for a
// disallowed URL), then waits on the domain throttle, and reports the
// outcome back to the throttle whatever happens.
type Fetcher struct {
	client      *http.Client
	robots      RobotsPolicy
	throttle    *throttle.Throttle
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
	sites       *config.File
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header for page requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithSiteConfigs provides per-domain headers and cookies from the
// configuration file.
func WithSiteConfigs(sites *config.File) Option {
	return func(f *Fetcher) {
		f.sites = sites
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. robotsPolicy may be nil when robots compliance
// is disabled; th is required.
func New(client *http.Client, robotsPolicy RobotsPolicy, th *throttle.Throttle, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}

	f := &Fetcher{
		client:      client,
		robots:      robotsPolicy,
		throttle:    th,
		userAgent:   config.DefaultUserAgent,
		timeout:     config.DefaultTimeout,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs one politeness-gated GET. It returns a Result for any
// 2xx/3xx response (bodyless when not HTML) and a classified *Error
// otherwise. A context error from cancellation is returned as-is so the
// engine can distinguish shutdown from a per-page failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindConnection, URL: rawURL, Err: err}
	}

	if f.robots != nil && !f.robots.Allowed(u) {
		f.logger.Debug("robots.txt disallows", "url", rawURL)
		return nil, &Error{Kind: KindRobotsDisallowed, URL: rawURL}
	}

	if err := f.throttle.Wait(ctx, u.Host); err != nil {
		// The throttle only fails when the context does
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.throttle.Record(u.Host, throttle.StatusNetworkFailure)
		return nil, &Error{Kind: KindConnection, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	f.applySiteConfig(req, u.Host)

	resp, err := f.client.Do(req)
	if err != nil {
		f.throttle.Record(u.Host, throttle.StatusNetworkFailure)
		return nil, f.classifyTransportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	f.throttle.Record(u.Host, resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		f.logger.Warn("rate limited, backing off", "url", rawURL, "domain", u.Host)
		return nil, &Error{Kind: KindRateLimited, URL: rawURL, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: KindHTTPError, URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !isHTMLMediaType(mediaType) {
		f.logger.Debug("skipping non-HTML content", "url", rawURL, "content_type", mediaType)
		return &Result{StatusCode: resp.StatusCode, ContentType: mediaType}, nil
	}

	body, err := f.readBody(resp.Body, contentType)
	if err != nil {
		return nil, f.classifyTransportError(ctx, rawURL, err)
	}

	return &Result{StatusCode: resp.StatusCode, ContentType: mediaType, Body: body}, nil
}

// applySiteConfig adds per-domain headers and cookie from the config file.
func (f *Fetcher) applySiteConfig(req *http.Request, domain string) {
	if f.sites == nil {
		return
	}

	site := f.sites.GetSiteConfig(domain)
	for k, v := range site.Headers {
		req.Header.Set(k, v)
	}
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}
}

// readBody reads at most maxBodySize bytes, transcoding to UTF-8 based on
// the declared charset and content sniffing. A transcoding setup failure
// falls back to the raw bytes rather than failing the page.
func (f *Fetcher) readBody(body io.Reader, contentType string) ([]byte, error) {
	limited := io.LimitReader(body, f.maxBodySize)

	decoded, err := charset.NewReader(limited, contentType)
	if err != nil {
		decoded = limited
	}
	return io.ReadAll(decoded)
}

// classifyTransportError turns a transport-level error into a Timeout or
// ConnectionError, or propagates cancellation untouched.
func (f *Fetcher) classifyTransportError(ctx context.Context, rawURL string, err error) error {
	// Cancellation of the whole crawl is not a page failure
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindConnection, URL: rawURL, Err: err}
}

// isHTMLMediaType reports whether a media type should be extracted.
func isHTMLMediaType(mediaType string) bool {
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
