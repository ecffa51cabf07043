package imap

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ConfigurationError reports mailbox settings that are missing. No network
// I/O happens when it is returned.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "mailbox is not configured: missing " + strings.Join(e.Missing, ", ")
}

// ConnectionError is a transport failure. Err carries the server or network
// diagnostic unchanged.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("imap %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the transport's message verbatim.
func (e *ConnectionError) Diagnostic() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// classify wraps err as a ConnectionError when it means the session is no
// longer usable. Other errors are returned as they are.
func classify(c *client.Client, op string, err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, client.ErrAlreadyLoggedOut),
		errors.Is(err, client.ErrNotLoggedIn),
		c != nil && c.State() == imap.LogoutState:
		return &ConnectionError{Op: op, Err: err}
	}

	return fmt.Errorf("imap %s: %w", op, err)
}
