// Package main provides the entry point for the webcrawl CLI.
//
// webcrawl is a polite recursive web crawler. It honors robots.txt,
// rate-limits itself per domain, and extracts structured data from the
// pages it visits.
//
// Usage:
//
//	webcrawl crawl <url>
//	webcrawl compare <url>
//
// See --help for all available options.
package main

// main is the entry point for webcrawl.
func main() {
	Execute()
}
