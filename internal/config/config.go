package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These mirror typical polite-crawler
// settings: conservative delays, a bounded depth, and a page cap that
// prevents runaway crawling on large or infinitely-generating sites.
const (
	// DefaultTimeout is the per-request timeout. 15 seconds is generous
	// for HTML pages while still failing fast on unresponsive hosts.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxDepth limits how many link hops from the start URL are
	// followed. Depth 0 means only the starting page.
	DefaultMaxDepth = 3

	// DefaultDelay is the minimum delay between requests to the same
	// domain. A robots.txt Crawl-delay takes precedence when larger.
	DefaultDelay = 1 * time.Second

	// DefaultMaxPages caps the total number of pages fetched per run.
	DefaultMaxPages = 100

	// DefaultConcurrency is the number of in-flight fetches. Requests to
	// distinct domains run in parallel; the throttle serializes requests
	// to the same domain regardless of this value.
	DefaultConcurrency = 4

	// DefaultBotName is the agent token matched against robots.txt
	// user-agent groups. "*" matches the wildcard group.
	DefaultBotName = "*"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	// A descriptive User-Agent lets site operators identify crawler
	// traffic in their logs and contact the operator if needed.
	DefaultUserAgent = "Mozilla/5.0 (compatible; webcrawl/1.0; +https://github.com/nao1215/webcrawl)"

	// DefaultMaxBodySize limits the response body size read per page.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawl"
)

// Output format selectors accepted by the CLI and validated here.
const (
	// FormatJSON writes the full result as a JSON document.
	FormatJSON = "json"

	// FormatCSV writes one flattened row per page.
	FormatCSV = "csv"

	// FormatMarkdown writes a GitHub Flavored Markdown report.
	FormatMarkdown = "markdown"

	// FormatPrint writes a human-readable text listing.
	FormatPrint = "print"
)

// Config holds all configuration options for a crawl run.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, OutputConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// StartURL is the absolute HTTP/HTTPS URL the crawl begins from.
	StartURL string

	// MaxDepth is the maximum link distance from the start URL.
	// Depth 0 fetches only the starting page.
	MaxDepth int

	// Delay is the user-configured minimum delay between requests to the
	// same domain. The effective delay per domain is the greater of this
	// and the domain's robots.txt Crawl-delay.
	Delay time.Duration

	// AllowExternal permits following links to domains other than the
	// current page's domain.
	AllowExternal bool

	// MaxExternalDomains bounds how many external-domain hops a single
	// crawl path may take. Zero permits no external hops, so enabling
	// AllowExternal requires a positive budget here.
	MaxExternalDomains int

	// RespectRobots enables robots.txt compliance. When false the robots
	// policy is bypassed entirely: every URL is allowed and no declared
	// crawl delay applies.
	RespectRobots bool

	// BotName is the agent token used for robots.txt group matching.
	BotName string

	// UserAgent is the User-Agent header sent with HTTP requests.
	// Empty means DefaultUserAgent.
	UserAgent string

	// IncludePatterns restricts crawling to URLs matching at least one
	// pattern. Wildcard syntax: '*' matches any substring, '?' any rune.
	IncludePatterns []string

	// ExcludePatterns rejects URLs matching any pattern. Exclude takes
	// precedence over include when both would match.
	ExcludePatterns []string

	// MaxPages caps the number of pages fetched per run. 0 means no cap.
	MaxPages int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Concurrency is the number of concurrent fetch workers.
	Concurrency int

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// Format selects the output format (json, csv, markdown, print).
	Format string

	// OutputFile is the report destination path. Empty means stdout.
	OutputFile string

	// DBDir is the directory for the SQLite database. When SaveToDB is
	// set and DBDir is empty, the XDG data directory is used.
	DBDir string

	// SaveToDB indicates whether to persist the crawl session to the
	// database for later comparison.
	SaveToDB bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// the tool searches for .webcrawl in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
// Users override specific values after creation (typically from flags).
func NewConfig() *Config {
	return &Config{
		MaxDepth:      DefaultMaxDepth,
		Delay:         DefaultDelay,
		RespectRobots: true,
		BotName:       DefaultBotName,
		UserAgent:     DefaultUserAgent,
		MaxPages:      DefaultMaxPages,
		Timeout:       DefaultTimeout,
		Concurrency:   DefaultConcurrency,
		MaxBodySize:   DefaultMaxBodySize,
		Format:        FormatPrint,
	}
}

// Validate checks the configuration for errors.
// A malformed start URL is the one fatal condition that aborts a run
// before the crawl loop starts; everything else during the crawl is
// handled per-page.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}

	u, err := url.Parse(c.StartURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrMalformedStartURL
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxExternalDomains < 0 {
		return ErrInvalidMaxExternalDomains
	}

	// The external-domain budget is meaningless without permission to
	// leave the start domain
	if c.MaxExternalDomains > 0 && !c.AllowExternal {
		return ErrExternalDomainsWithoutAllow
	}

	// A zero budget permits no external hops, so allowing external links
	// without a budget would silently crawl nothing external
	if c.AllowExternal && c.MaxExternalDomains == 0 {
		return ErrAllowExternalWithoutBudget
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.Format {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatPrint:
	default:
		return ErrInvalidFormat
	}

	return nil
}

// XDGDataDir returns the XDG data directory for webcrawl.
// On Linux: ~/.local/share/webcrawl
// On macOS: ~/Library/Application Support/webcrawl
// On Windows: %LOCALAPPDATA%\webcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}
