// Package attachment persists decoded attachment bytes and returns the
// metadata stored on a reply.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

// ErrEmptyAttachment is returned when there are no bytes to store.
var ErrEmptyAttachment = errors.New("attachment is empty")

// WriteError wraps a storage failure for a single attachment.
type WriteError struct {
	Filename string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to store attachment %q: %v", e.Filename, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Hint carries what the MIME tree declared about the part.
type Hint struct {
	Type    string
	Subtype string
	IsImage bool
}

// Sink stores attachment bytes durably.
type Sink interface {
	Store(ctx context.Context, data []byte, suggestedFilename string, hint Hint) (models.Attachment, error)
}

// ResolveMIMEType picks the MIME type recorded for a stored attachment.
// Images always use the declared subtype (jpg is normalized to jpeg); other
// files use the declared type unless it is missing or generic, in which case
// the bytes are sniffed.
func ResolveMIMEType(data []byte, hint Hint) string {
	subtype := strings.ToLower(hint.Subtype)
	if hint.IsImage {
		if subtype == "jpg" {
			subtype = "jpeg"
		}
		if subtype == "" {
			return sniff(data)
		}
		return "image/" + subtype
	}

	declared := ""
	if hint.Type != "" && subtype != "" {
		declared = strings.ToLower(hint.Type) + "/" + subtype
	}
	if declared == "" || declared == "application/octet-stream" {
		return sniff(data)
	}
	return declared
}

// sniff detects the type from the content, without parameters.
func sniff(data []byte) string {
	detected := mimetype.Detect(data).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	return detected
}
