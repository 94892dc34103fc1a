package robots

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// defaultMaxBodySize limits the size of robots.txt responses we will read.
// Real-world robots.txt files are tiny; anything beyond this is garbage.
const defaultMaxBodySize = 512 * 1024 // 512 KB

// Policy fetches, parses, and caches robots.txt rules per domain.
// It answers whether a URL may be fetched for the configured agent and
// what Crawl-delay the domain declares.
//
// The cache holds one parsed ruleset per domain for the lifetime of the
// run; robots.txt is never re-fetched. Any fetch or parse failure is
// recorded and the domain falls open: everything allowed, no declared
// delay.
type Policy struct {
	// client performs the robots.txt GET requests.
	client *http.Client

	// botName is the agent token matched against user-agent groups.
	// Group matching falls back to the wildcard group when no group
	// names this agent.
	botName string

	// requestUserAgent is the User-Agent header sent when fetching
	// robots.txt itself.
	requestUserAgent string

	// maxBodySize limits how much of a robots.txt response is read.
	maxBodySize int64

	// logger records fetch failures for diagnostics.
	logger *slog.Logger

	// mu protects cache and fetchFailures.
	mu sync.Mutex

	// cache maps domain (host, including port) to its ruleset entry.
	cache map[string]*entry

	// fetchFailures counts domains whose robots.txt could not be
	// fetched or parsed.
	fetchFailures int
}

// entry is the cached robots state for one domain.
// The once gate guarantees a single robots.txt fetch per domain even when
// several workers hit the domain concurrently.
type entry struct {
	once sync.Once

	// group is the matched rule group for the configured agent.
	// nil means allow all with no declared delay (fail-open).
	group *robotstxt.Group
}

// Option configures a Policy.
type Option func(*Policy)

// WithRequestUserAgent sets the User-Agent header used for the
// robots.txt request itself.
func WithRequestUserAgent(ua string) Option {
	return func(p *Policy) {
		p.requestUserAgent = ua
	}
}

// WithMaxBodySize sets the maximum robots.txt response size to read.
func WithMaxBodySize(size int64) Option {
	return func(p *Policy) {
		p.maxBodySize = size
	}
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// NewPolicy creates a robots policy for the given agent token.
// The client should carry the same timeout used for page fetches.
func NewPolicy(client *http.Client, botName string, opts ...Option) *Policy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if botName == "" {
		botName = "*"
	}

	p := &Policy{
		client:      client,
		botName:     botName,
		maxBodySize: defaultMaxBodySize,
		logger:      slog.Default(),
		cache:       make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Allowed reports whether the given URL may be fetched for the configured
// agent. The first call for a domain fetches and caches its robots.txt;
// subsequent calls answer from the cache.
func (p *Policy) Allowed(u *url.URL) bool {
	e := p.entryFor(u.Host)
	e.once.Do(func() {
		e.group = p.fetchGroup(u.Scheme, u.Host)
	})

	if e.group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return e.group.Test(path)
}

// CrawlDelay returns the Crawl-delay declared for the configured agent on
// the given domain, if the domain's robots.txt has been fetched and
// declares one.
func (p *Policy) CrawlDelay(domain string) (time.Duration, bool) {
	p.mu.Lock()
	e, ok := p.cache[domain]
	p.mu.Unlock()
	if !ok || e.group == nil || e.group.CrawlDelay <= 0 {
		return 0, false
	}
	return e.group.CrawlDelay, true
}

// FetchFailures returns the number of domains whose robots.txt could not
// be fetched or parsed. Those domains are treated as unrestricted.
func (p *Policy) FetchFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchFailures
}

// entryFor returns the cache entry for a domain, creating it if needed.
func (p *Policy) entryFor(domain string) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cache[domain]
	if !ok {
		e = &entry{}
		p.cache[domain] = e
	}
	return e
}

// fetchGroup fetches and parses robots.txt for a domain and returns the
// rule group matching the configured agent. Returns nil (allow all) on
// any failure or non-200 response.
func (p *Policy) fetchGroup(scheme, domain string) *robotstxt.Group {
	robotsURL := (&url.URL{Scheme: scheme, Host: domain, Path: robotsTxtPath}).String()

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		p.recordFailure(domain, err)
		return nil
	}
	if p.requestUserAgent != "" {
		req.Header.Set("User-Agent", p.requestUserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.recordFailure(domain, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// A missing robots.txt is the common case, not a failure
		p.logger.Debug("no robots.txt", "domain", domain, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		p.recordFailure(domain, err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		p.recordFailure(domain, err)
		return nil
	}

	group := data.FindGroup(p.botName)
	if group != nil && group.CrawlDelay > 0 {
		p.logger.Info("robots.txt declares crawl-delay", "domain", domain, "delay", group.CrawlDelay)
	}
	return group
}

// recordFailure logs and counts a robots.txt fetch or parse failure.
func (p *Policy) recordFailure(domain string, err error) {
	p.logger.Debug("robots.txt unavailable, failing open", "domain", domain, "error", err)
	p.mu.Lock()
	p.fetchFailures++
	p.mu.Unlock()
}
