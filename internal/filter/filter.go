package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Filter decides whether a discovered link may enter the frontier.
// It is a stateless predicate over the link URL: pattern rules first,
// then the same-domain/external-domain policy. The engine separately
// enforces depth and the external-domain budget.
type Filter struct {
	include       []*regexp.Regexp
	exclude       []*regexp.Regexp
	allowExternal bool
}

// New compiles include/exclude wildcard patterns into a Filter.
// Pattern syntax: '*' matches any substring, '?' matches any single
// character; matching is case-insensitive against the full URL.
func New(includePatterns, excludePatterns []string, allowExternal bool) (*Filter, error) {
	include, err := compilePatterns(includePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exclude, err := compilePatterns(excludePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}

	return &Filter{
		include:       include,
		exclude:       exclude,
		allowExternal: allowExternal,
	}, nil
}

// Accept reports whether a link may be crawled from a page on
// currentDomain. Rules apply in order: exclude patterns reject first,
// then include patterns (when present) must match, then off-domain links
// need the external policy. Exclude wins when both would match.
func (f *Filter) Accept(link *url.URL, currentDomain string) bool {
	target := link.String()

	for _, pattern := range f.exclude {
		if pattern.MatchString(target) {
			return false
		}
	}

	if len(f.include) > 0 {
		matched := false
		for _, pattern := range f.include {
			if pattern.MatchString(target) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if !strings.EqualFold(link.Host, currentDomain) && !f.allowExternal {
		return false
	}

	return true
}

// compilePatterns converts wildcard patterns to anchored regexps.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// compilePattern translates a single wildcard pattern.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
