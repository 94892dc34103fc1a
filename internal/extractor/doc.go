// Package extractor turns raw HTML into structured page records.
//
// Parsing is delegated to goquery so that the malformed HTML common on
// the real web is handled gracefully; extraction never fails, it only
// leaves fields empty.
package extractor
