package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Christianjames01/repo-sub000/internal/imap"
)

// ErrPassInProgress is returned when RunPass is called while another pass
// on the same orchestrator has not finished.
var ErrPassInProgress = errors.New("ingest: a pass is already in progress")

// PersistenceError is a failed write for one message. The message is still
// marked seen and the pass continues.
type PersistenceError struct {
	Op        string
	MessageID string
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s for %s: %v", e.Op, e.MessageID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// isFatal reports whether err ends the pass: the session is gone or the
// pass ran out of time.
func isFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return true
	}
	var connErr *imap.ConnectionError
	return errors.As(err, &connErr)
}
