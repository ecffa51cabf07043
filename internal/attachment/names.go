package attachment

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename keeps only [A-Za-z0-9._-], replacing anything else with
// an underscore. Leading dots are removed so the result is never hidden
// or a path component.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "attachment"
	}
	return name
}

// StoredName returns the collision-resistant name an attachment is written under.
func StoredName(now time.Time, suggested string) string {
	return fmt.Sprintf("%d_%s", now.UnixNano(), SanitizeFilename(suggested))
}
