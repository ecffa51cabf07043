package attachment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/models"
)

// FileSink writes attachments into a local directory served under BaseURL.
type FileSink struct {
	dir     string
	baseURL string
	now     func() time.Time
}

// NewFileSink creates the directory if needed and returns a sink writing into it.
func NewFileSink(dir, baseURL string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &FileSink{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Store writes data to a new file. Existing files are never overwritten.
func (s *FileSink) Store(_ context.Context, data []byte, suggestedFilename string, hint Hint) (models.Attachment, error) {
	if len(data) == 0 {
		return models.Attachment{}, ErrEmptyAttachment
	}

	name := StoredName(s.now(), suggestedFilename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.Attachment{}, &WriteError{Filename: suggestedFilename, Err: err}
	}

	n, err := f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = ErrEmptyAttachment
	}
	if err != nil {
		_ = os.Remove(path)
		return models.Attachment{}, &WriteError{Filename: suggestedFilename, Err: err}
	}

	return models.Attachment{
		URL:       s.baseURL + "/" + name,
		Filename:  SanitizeFilename(suggestedFilename),
		SizeBytes: int64(n),
		MimeType:  ResolveMIMEType(data, hint),
		IsImage:   hint.IsImage,
	}, nil
}
