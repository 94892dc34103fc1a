package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written in config files as
// human-readable strings ("2s", "500ms") rather than nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration from either a string ("1.5s") or a
// bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asString string
	if err := value.Decode(&asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}

	var asSeconds float64
	if err := value.Decode(&asSeconds); err != nil {
		return err
	}
	d.Duration = time.Duration(asSeconds * float64(time.Second))
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// SiteConfig holds per-domain overrides for crawl behavior.
// Keys in the config file are domains as they appear in URLs, including
// any non-standard port (e.g., "example.com" or "example.com:8080").
type SiteConfig struct {
	// Cookie is an HTTP cookie to send with requests to this domain.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this domain.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Delay overrides the global minimum delay for this domain.
	// A robots.txt Crawl-delay still wins when larger.
	Delay Duration `yaml:"delay,omitempty"`

	// Depth overrides the global crawl depth for links on this domain.
	// If zero, the global MaxDepth is used.
	Depth int `yaml:"depth,omitempty"`
}

// File represents the structure of the .webcrawl configuration file.
type File struct {
	// Sites maps domains to their site-specific configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all
	// domains unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a domain, merging the
// site-specific configuration over the defaults.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[domain]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Delay.Duration != 0 {
			result.Delay = siteConfig.Delay
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}
