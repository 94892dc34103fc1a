// Package model defines the data structures shared across the crawler.
//
// The central type is PageRecord, the immutable structured result of
// fetching and extracting a single page. Summary and CrawlResult describe
// a whole run and are consumed by the report writers and the database.
package model
