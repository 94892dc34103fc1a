package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backoff constants applied after HTTP 429 responses. The extra wait is
// effectiveDelay * 2^consecutiveHits, capped at backoffCap. When the
// effective delay is zero the doubling starts from backoffFloor instead.
const (
	backoffCap   = 2 * time.Minute
	backoffFloor = time.Second
)

// StatusNetworkFailure is the sentinel status code recorded when a
// request failed before any HTTP response was received.
const StatusNetworkFailure = 0

// gateInterval is the minimum slot spacing of the per-domain gate. A
// zero configured delay must not collapse the gate into a no-op:
// concurrent waiters still pass one at a time, gateInterval apart.
const gateInterval = time.Millisecond

// DelaySource supplies a per-domain crawl delay, typically the robots.txt
// policy. A nil DelaySource means no externally declared delays.
type DelaySource interface {
	// CrawlDelay returns the declared delay for a domain, if any.
	CrawlDelay(domain string) (time.Duration, bool)
}

// Throttle enforces per-domain politeness. Each domain gets a burst-1
// token bucket whose refill interval is the effective delay: the greater
// of the configured minimum delay and the domain's declared Crawl-delay.
//
// The limiter doubles as the mutual-exclusion gate the engine relies on:
// concurrent Wait calls for the same domain are granted sequential slots,
// so two fetches to one domain can never race past it together. This
// holds even at a zero configured delay, where slots are spaced
// gateInterval apart. Waiting on one domain never blocks requests to
// another.
type Throttle struct {
	// minDelay is the user-configured minimum inter-request delay.
	minDelay time.Duration

	// source provides robots-declared delays. May be nil.
	source DelaySource

	// mu protects domains and overrides.
	mu sync.Mutex

	// domains holds lazily created per-domain state.
	domains map[string]*domainState

	// overrides holds per-domain minimum delays from site configs.
	overrides map[string]time.Duration
}

// domainState is the throttle state for one domain.
// Created on first request to the domain; lives for the process lifetime.
type domainState struct {
	mu sync.Mutex

	// limiter paces requests. Burst 1, refill interval = effective delay.
	limiter *rate.Limiter

	// base is the effective delay the limiter returns to after backoff.
	base time.Duration

	// rateLimitHits counts consecutive 429 responses.
	rateLimitHits int

	// lastRequest is when the most recent wait completed, i.e. the
	// moment immediately before the request was issued.
	lastRequest time.Time
}

// New creates a Throttle with the given minimum delay.
// source may be nil when robots compliance is disabled.
func New(minDelay time.Duration, source DelaySource) *Throttle {
	return &Throttle{
		minDelay:  minDelay,
		source:    source,
		domains:   make(map[string]*domainState),
		overrides: make(map[string]time.Duration),
	}
}

// OverrideDelay sets a per-domain minimum delay, typically from a site
// config. It applies to domains whose state has not been created yet, so
// it should be called before the crawl starts.
func (t *Throttle) OverrideDelay(domain string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[domain] = d
}

// Wait blocks until a request to the domain may be issued, then stamps
// the domain's last-request time. The first request to a domain proceeds
// immediately.
func (t *Throttle) Wait(ctx context.Context, domain string) error {
	st := t.state(domain)
	if err := st.limiter.Wait(ctx); err != nil {
		return err
	}

	st.mu.Lock()
	st.lastRequest = time.Now()
	st.mu.Unlock()
	return nil
}

// Record reports the outcome of a request to the domain. A 429 engages
// exponential backoff for subsequent requests; any other status (including
// StatusNetworkFailure) resets the backoff to the effective delay.
func (t *Throttle) Record(domain string, statusCode int) {
	st := t.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()

	if statusCode == 429 {
		st.rateLimitHits++
		st.limiter.SetLimit(limitFor(st.backoffDelay()))
		return
	}

	if st.rateLimitHits > 0 {
		st.rateLimitHits = 0
		st.limiter.SetLimit(limitFor(st.base))
	}
}

// EffectiveDelay returns the base delay currently enforced for a domain.
func (t *Throttle) EffectiveDelay(domain string) time.Duration {
	st := t.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.base
}

// RateLimitHits returns the consecutive 429 count for a domain.
func (t *Throttle) RateLimitHits(domain string) int {
	st := t.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rateLimitHits
}

// LastRequest returns when the domain's most recent wait completed.
func (t *Throttle) LastRequest(domain string) (time.Time, bool) {
	st := t.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastRequest, !st.lastRequest.IsZero()
}

// state returns the domain's throttle state, creating it on first use.
// The effective delay is fixed at creation time; by then the robots
// rules for the domain have already been fetched by the caller.
func (t *Throttle) state(domain string) *domainState {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.domains[domain]
	if ok {
		return st
	}

	base := t.minDelay
	if override, ok := t.overrides[domain]; ok && override > base {
		base = override
	}
	if t.source != nil {
		if declared, ok := t.source.CrawlDelay(domain); ok && declared > base {
			base = declared
		}
	}

	st = &domainState{
		limiter: rate.NewLimiter(limitFor(base), 1),
		base:    base,
	}
	t.domains[domain] = st
	return st
}

// backoffDelay computes base * 2^hits with overflow-safe capping.
// Caller holds st.mu.
func (st *domainState) backoffDelay() time.Duration {
	b := st.base
	if b <= 0 {
		b = backoffFloor
	}
	for i := 0; i < st.rateLimitHits; i++ {
		b *= 2
		if b >= backoffCap {
			return backoffCap
		}
	}
	return b
}

// limitFor converts a delay into a limiter rate. A zero delay still
// paces the gate at gateInterval so concurrent waiters are granted
// sequential slots instead of all passing together.
func limitFor(d time.Duration) rate.Limit {
	if d < gateInterval {
		d = gateInterval
	}
	return rate.Every(d)
}
