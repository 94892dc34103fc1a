package model

import (
	"sort"
	"time"
)

// Summary reports what a crawl run did: how many pages were fetched, how
// many URLs were skipped and why, and how long the whole run took.
type Summary struct {
	// StartURL is the URL the crawl started from.
	StartURL string `json:"start_url"`

	// PagesFetched is the number of pages successfully fetched and extracted.
	PagesFetched int `json:"pages_fetched"`

	// URLsVisited is the number of unique URLs dequeued or enqueued.
	URLsVisited int `json:"urls_visited"`

	// Domains lists the distinct domains requests were issued to, sorted.
	Domains []string `json:"domains"`

	// TotalLinks is the sum of links recorded across all pages.
	TotalLinks int `json:"total_links"`

	// TotalImages is the sum of images recorded across all pages.
	TotalImages int `json:"total_images"`

	// Skipped counts skipped URLs by reason (robots_disallowed, timeout,
	// connection_error, rate_limited, http_error, non_html).
	Skipped map[string]int `json:"skipped"`

	// RobotsCompliance reports whether robots.txt rules were honored.
	RobotsCompliance bool `json:"robots_compliance"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total wall-clock duration of the crawl.
	Elapsed time.Duration `json:"elapsed"`
}

// TotalSkipped returns the number of skipped URLs across all reasons.
func (s *Summary) TotalSkipped() int {
	var total int
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// SkipReasons returns the skip reasons present in the summary, sorted.
// Useful for deterministic report output.
func (s *Summary) SkipReasons() []string {
	reasons := make([]string, 0, len(s.Skipped))
	for reason := range s.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

// CrawlResult bundles the ordered page records with the run summary.
// This is the unit the report writers consume.
type CrawlResult struct {
	// Records holds one PageRecord per successfully extracted page,
	// in the order pages were fetched.
	Records []*PageRecord `json:"records"`

	// Summary describes the run as a whole.
	Summary *Summary `json:"summary"`
}
