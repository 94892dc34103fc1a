// Package config holds crawl configuration: defaults, CLI-populated
// options, validation, and the optional .webcrawl YAML file with
// per-domain overrides (headers, cookies, delay, depth).
//
// Configuration flows one way: flags and the config file populate a
// Config, Validate() rejects bad combinations before the crawl starts,
// and the populated struct is passed down by reference. No package reads
// global state.
package config
