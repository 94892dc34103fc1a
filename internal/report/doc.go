// Package report renders crawl results in the supported output formats:
// JSON for tooling, CSV for spreadsheets, Markdown for documentation,
// and plain text for terminals.
package report
