// Package log provides a sanitizing slog handler.
//
// The crawler's site configuration may carry authentication cookies and
// headers for crawling logged-in areas. SecureHandler masks those values
// (and anything else that looks like a credential) before log records
// reach the underlying handler, so debug logging can stay verbose without
// leaking secrets.
package log
