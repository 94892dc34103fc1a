// Package fetcher performs single-page HTTP GETs with politeness built
// in: robots.txt consultation before any request, per-domain throttling,
// per-request timeouts, an HTML-only content gate, and charset-aware body
// decoding. Failures come back as classified errors that the engine turns
// into skip counts; nothing here aborts a crawl.
package fetcher
