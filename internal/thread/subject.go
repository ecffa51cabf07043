package thread

import (
	"regexp"
	"strings"
)

var replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd|fw)\s*(\[\d+\]|\(\d+\))?\s*:\s*`)

// NormalizeSubject removes leading reply and forward prefixes, repeatedly
// and case-insensitively: "Re: FW: re: Water Leak" becomes "Water Leak".
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		next := replyPrefix.ReplaceAllString(s, "")
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
}

// MessageIDs extracts every angle-bracket token from a header value, in order.
func MessageIDs(header string) []string {
	var ids []string
	for {
		start := strings.IndexByte(header, '<')
		if start < 0 {
			return ids
		}
		end := strings.IndexByte(header[start:], '>')
		if end < 0 {
			return ids
		}
		token := header[start : start+end+1]
		if len(token) > 2 {
			ids = append(ids, token)
		}
		header = header[start+end+1:]
	}
}
