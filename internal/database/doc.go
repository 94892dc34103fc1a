// Package database persists crawl sessions and page records in SQLite
// so that repeated crawls of the same site can be compared over time.
package database
