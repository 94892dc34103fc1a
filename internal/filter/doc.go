// Package filter applies include/exclude pattern rules and the
// same-domain policy to discovered links before they enter the frontier.
package filter
