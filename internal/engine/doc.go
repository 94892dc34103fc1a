// Package engine coordinates the crawl: a FIFO frontier, a visited set,
// depth/page/external-domain budgets, and a bounded worker pool that
// fetches pages in parallel across domains.
//
// Design decision: URLs are marked visited when they enter the frontier,
// not when they are fetched. Two pages discovering the same link
// concurrently therefore enqueue it exactly once, at the cost of never
// retrying a URL whose fetch fails.
package engine
