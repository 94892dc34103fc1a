package config

import "errors"

// Configuration validation errors returned by Config.Validate().
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoStartURL is returned when no start URL is specified.
	ErrNoStartURL = errors.New("no start URL specified")

	// ErrMalformedStartURL is returned when the start URL is not a valid
	// absolute HTTP or HTTPS URL. This is fatal: the crawl never starts.
	ErrMalformedStartURL = errors.New("malformed start URL: must be an absolute http or https URL")

	// ErrInvalidMaxDepth is returned when the maximum depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidDelay is returned when the request delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A zero or negative timeout would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the worker count is not
	// positive. Zero workers would mean no crawling at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Use 0 for no cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxExternalDomains is returned when the external-domain
	// budget is negative.
	ErrInvalidMaxExternalDomains = errors.New("invalid max external domains: must be non-negative")

	// ErrExternalDomainsWithoutAllow is returned when an external-domain
	// budget is set but following external links is not enabled.
	ErrExternalDomainsWithoutAllow = errors.New("max external domains requires allow-external")

	// ErrAllowExternalWithoutBudget is returned when external links are
	// enabled without a positive external-domain budget. A budget of zero
	// permits no external hops.
	ErrAllowExternalWithoutBudget = errors.New("allow-external requires a positive max external domains")

	// ErrInvalidMaxBodySize is returned when the max body size is
	// negative. Use 0 to apply the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidFormat is returned when the output format selector is not
	// one of json, csv, markdown, or print.
	ErrInvalidFormat = errors.New("invalid output format: must be json, csv, markdown, or print")
)
