// Package robots implements per-domain robots.txt policy.
//
// Rules are fetched once per domain, parsed with temoto/robotstxt, and
// cached for the lifetime of the run. The policy fails open: when
// robots.txt cannot be retrieved or parsed, the domain is treated as
// unrestricted, which matches long-standing crawler convention.
//
// Disabling compliance is not this package's concern. When the user turns
// robots checking off, callers simply do not consult the policy.
package robots
