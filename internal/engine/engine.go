package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/extractor"
	"github.com/nao1215/webcrawl/internal/fetcher"
	"github.com/nao1215/webcrawl/internal/filter"
	"github.com/nao1215/webcrawl/internal/model"
)

// Skip reasons recorded in the crawl summary for pages that were
// visited but produced no record.
const (
	skipNonHTML    = "non_html"
	skipFetchError = "fetch_error"
)

// PageFetcher fetches a single URL. Satisfied by fetcher.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// RecordSink receives page records as they are produced, in completion
// order. Implementations must tolerate being called from the engine's
// emit path; calls are serialized.
type RecordSink interface {
	Write(rec *model.PageRecord) error
}

// frontierEntry is one unit of pending work: a URL together with its
// distance from the start URL and the number of domain transitions on
// the path that discovered it.
type frontierEntry struct {
	url             *url.URL
	depth           int
	externalDomains int
}

// Engine drives a breadth-ordered crawl: a FIFO frontier of pending
// URLs consumed by a bounded pool of workers. Workers run in parallel
// across domains; requests to a single domain are serialized by the
// fetcher's throttle. Per-page failures are recorded in the summary and
// never abort the crawl.
type Engine struct {
	fetcher PageFetcher
	filter  *filter.Filter
	logger  *slog.Logger
	sink    RecordSink

	maxDepth           int
	maxPages           int
	maxExternalDomains int
	concurrency        int
	respectRobots      bool
	depthOverrides     map[string]int

	mu       sync.Mutex
	cond     *sync.Cond
	frontier []frontierEntry
	busy     int
	stopped  bool
	visited  map[string]bool

	records  []*model.PageRecord
	domains  map[string]bool
	skipped  map[string]int
	fetched  int
	links    int
	images   int
	sinkErr  error
	started  time.Time
	startURL string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSink streams each page record to sink as it is produced, in
// addition to collecting it in the crawl result.
func WithSink(sink RecordSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithDepthOverrides sets per-domain depth limits from site configs.
// Links discovered on an overridden domain use its limit instead of the
// global maximum.
func WithDepthOverrides(overrides map[string]int) Option {
	return func(e *Engine) {
		e.depthOverrides = overrides
	}
}

// New creates an Engine from the crawl configuration and its
// collaborators. The config is expected to have passed Validate.
func New(cfg *config.Config, pages PageFetcher, links *filter.Filter, opts ...Option) *Engine {
	e := &Engine{
		fetcher:            pages,
		filter:             links,
		logger:             slog.Default(),
		maxDepth:           cfg.MaxDepth,
		maxPages:           cfg.MaxPages,
		maxExternalDomains: cfg.MaxExternalDomains,
		concurrency:        cfg.Concurrency,
		respectRobots:      cfg.RespectRobots,
		visited:            make(map[string]bool),
		domains:            make(map[string]bool),
		skipped:            make(map[string]int),
	}
	e.cond = sync.NewCond(&e.mu)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run crawls from startURL until the frontier drains, a budget is
// exhausted, or ctx is cancelled. The only fatal pre-crawl error is a
// malformed start URL; once the crawl is underway, per-page failures
// are counted in the summary and Run keeps going. When ctx is
// cancelled, Run returns the context error together with a result
// holding the pages fetched so far.
func (e *Engine) Run(ctx context.Context, startURL string) (*model.CrawlResult, error) {
	start, err := url.Parse(startURL)
	if err != nil || !start.IsAbs() || start.Host == "" ||
		(start.Scheme != "http" && start.Scheme != "https") {
		return nil, fmt.Errorf("%w: %s", config.ErrMalformedStartURL, startURL)
	}
	normalize(start)

	e.started = time.Now()
	e.startURL = start.String()
	e.visited[start.String()] = true
	e.frontier = append(e.frontier, frontierEntry{url: start})

	// Wake blocked workers when the caller cancels.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.stopped = true
			e.cond.Broadcast()
			e.mu.Unlock()
		case <-watcherDone:
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.concurrency; i++ {
		g.Go(func() error {
			return e.worker(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		// Cancellation still yields the pages fetched so far.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return e.result(), err
		}
		return nil, err
	}
	if e.sinkErr != nil {
		return nil, e.sinkErr
	}

	return e.result(), nil
}

// worker consumes frontier entries until the crawl is complete or
// cancelled.
func (e *Engine) worker(ctx context.Context) error {
	for {
		entry, ok := e.next()
		if !ok {
			return ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			e.finish()
			return err
		}
		if err := e.process(ctx, entry); err != nil {
			e.finish()
			return err
		}
		e.finish()
	}
}

// next pops the oldest frontier entry, blocking while other workers may
// still discover new links. Returns false when the crawl is done.
func (e *Engine) next() (frontierEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.stopped {
			return frontierEntry{}, false
		}
		if len(e.frontier) > 0 {
			break
		}
		if e.busy == 0 {
			// Frontier drained and nobody is working: crawl complete.
			e.cond.Broadcast()
			return frontierEntry{}, false
		}
		e.cond.Wait()
	}

	entry := e.frontier[0]
	e.frontier = e.frontier[1:]
	e.busy++
	return entry, true
}

// finish marks one unit of work complete and wakes waiting workers so
// they can re-check the termination condition.
func (e *Engine) finish() {
	e.mu.Lock()
	e.busy--
	e.cond.Broadcast()
	e.mu.Unlock()
}

// process fetches one URL, emits its record, and enqueues the links it
// discovers. Fetch failures are recorded as skips; only context
// cancellation propagates as an error.
func (e *Engine) process(ctx context.Context, entry frontierEntry) error {
	pageURL := entry.url.String()
	e.logger.Debug("fetching page", "url", pageURL, "depth", entry.depth)

	res, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.recordSkip(pageURL, err)
		return nil
	}

	if !res.IsHTML() {
		e.logger.Debug("skipping non-HTML page", "url", pageURL, "content_type", res.ContentType)
		e.addSkip(skipNonHTML)
		return nil
	}

	rec := extractor.Extract(pageURL, entry.url.Host, res.Body, res.StatusCode, time.Now())
	rec.ContentType = res.ContentType
	e.emit(rec)
	e.enqueueLinks(entry, rec.Links)
	return nil
}

// recordSkip maps a fetch error to its summary skip reason.
func (e *Engine) recordSkip(pageURL string, err error) {
	reason := skipFetchError
	var fe *fetcher.Error
	if errors.As(err, &fe) {
		reason = fe.Kind.String()
	}
	e.logger.Debug("page skipped", "url", pageURL, "reason", reason, "error", err)
	e.addSkip(reason)
}

func (e *Engine) addSkip(reason string) {
	e.mu.Lock()
	e.skipped[reason]++
	e.mu.Unlock()
}

// emit records a successfully fetched page and forwards it to the sink.
// Records are appended in fetch-completion order.
func (e *Engine) emit(rec *model.PageRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.records = append(e.records, rec)
	e.fetched++
	e.domains[rec.Domain] = true
	e.links += len(rec.Links)
	e.images += len(rec.Images)

	if e.sink != nil && e.sinkErr == nil {
		if err := e.sink.Write(rec); err != nil {
			e.sinkErr = fmt.Errorf("record sink: %w", err)
			e.stopped = true
			e.cond.Broadcast()
		}
	}
}

// enqueueLinks pushes accepted, unvisited links onto the frontier.
// Depth, pattern rules, the external-domain budget, and the page budget
// all apply here, before a URL is ever queued.
func (e *Engine) enqueueLinks(entry frontierEntry, links []string) {
	limit := e.maxDepth
	if d, ok := e.depthOverrides[entry.url.Host]; ok && d > 0 {
		limit = d
	}
	if entry.depth+1 > limit {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, link := range links {
		if e.stopped {
			return
		}
		if e.maxPages > 0 && len(e.visited) >= e.maxPages {
			return
		}

		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		normalize(u)

		if !e.filter.Accept(u, entry.url.Host) {
			continue
		}

		// A budget of zero permits no external hops at all.
		external := entry.externalDomains
		if u.Host != entry.url.Host {
			external++
			if external > e.maxExternalDomains {
				continue
			}
		}

		key := u.String()
		if e.visited[key] {
			continue
		}
		e.visited[key] = true

		e.frontier = append(e.frontier, frontierEntry{
			url:             u,
			depth:           entry.depth + 1,
			externalDomains: external,
		})
		e.cond.Signal()
	}
}

// normalize canonicalizes a URL in place for the visited set: scheme
// and host are lowercased, the fragment is dropped, and an empty path
// becomes "/" so "https://a.test" and "https://a.test/" count once.
func normalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
}

// result assembles the final crawl result and summary.
func (e *Engine) result() *model.CrawlResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	domains := make([]string, 0, len(e.domains))
	for d := range e.domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	return &model.CrawlResult{
		Records: e.records,
		Summary: &model.Summary{
			StartURL:         e.startURL,
			PagesFetched:     e.fetched,
			URLsVisited:      len(e.visited),
			Domains:          domains,
			TotalLinks:       e.links,
			TotalImages:      e.images,
			Skipped:          e.skipped,
			RobotsCompliance: e.respectRobots,
			StartedAt:        e.started,
			Elapsed:          time.Since(e.started),
		},
	}
}
