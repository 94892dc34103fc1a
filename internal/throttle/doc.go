// Package throttle enforces per-domain request pacing.
//
// Each domain gets an independent burst-1 rate limiter whose interval is
// the effective delay for that domain (the configured minimum, a site
// config override, or the robots.txt Crawl-delay, whichever is largest).
// HTTP 429 responses engage capped exponential backoff that resets on the
// next successful response. A zero configured delay still paces the gate
// minimally so same-domain requests pass it one at a time.
package throttle
