// Package quote removes quoted reply history from plain-text email bodies.
package quote

import (
	"regexp"
	"strings"
)

var (
	// attributionLine matches "On <date>, <person> wrote:" and its translations.
	attributionLine = regexp.MustCompile(`(?i)^\s*(` +
		`on\s.+\swrote|` +
		`am\s.+\sschrieb\s?.*|` +
		`le\s.+\sa\s+écrit|` +
		`el\s.+\sescribió|` +
		`op\s.+\sschreef\s?.*|` +
		`il\s.+\sha\s+scritto|` +
		`em\s.+\sescreveu` +
		`)\s*:\s*$`)

	// attributionStart matches the first line of an attribution that a client
	// wrapped across two lines.
	attributionStart = regexp.MustCompile(`(?i)^\s*(on|am|le|el|op|il|em)\s`)

	// address matches an angle-bracket address, possibly split by the wrap.
	address = regexp.MustCompile(`<[^<>]+@[^<>]+>`)

	quotedLine = regexp.MustCompile(`^\s*>`)
)

// Strip returns only the new text of a reply: everything from the first
// attribution line on is cut, remaining ">" lines are dropped and the result
// is trimmed. Strip(Strip(s)) == Strip(s).
func Strip(body string) string {
	text := strings.ReplaceAll(body, "\r\n", "\n")
	for {
		next := stripOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func stripOnce(text string) string {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if attributionLine.MatchString(line) {
			lines = lines[:i]
			break
		}
		if i+1 < len(lines) && isWrappedAttribution(line, lines[i+1]) {
			lines = lines[:i]
			break
		}
	}

	kept := lines[:0]
	for _, line := range lines {
		if quotedLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isWrappedAttribution reports whether line and next form an attribution
// broken inside or right before the sender's address.
func isWrappedAttribution(line, next string) bool {
	first := strings.TrimSpace(line)
	if !attributionStart.MatchString(first) || strings.HasSuffix(first, ".") ||
		strings.HasSuffix(first, "!") || strings.HasSuffix(first, "?") {
		return false
	}
	if !strings.HasPrefix(strings.TrimSpace(next), "<") &&
		strings.LastIndexByte(first, '<') <= strings.LastIndexByte(first, '>') {
		return false
	}
	joined := first + " " + strings.TrimSpace(next)
	return address.MatchString(joined) && attributionLine.MatchString(joined)
}
