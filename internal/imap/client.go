package imap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/config"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
	"go.uber.org/zap"
)

func init() {
	// Decode non-UTF-8 encoded words in envelopes and headers.
	imap.CharsetReader = charset.Reader
}

const defaultTimeout = 30 * time.Second

// Dialer opens mailbox sessions.
type Dialer interface {
	Open(ctx context.Context) (Session, error)
}

// IMAPDialer opens sessions against one IMAP mailbox.
type IMAPDialer struct {
	Server   string
	Username string
	Password string
	Mailbox  string
	UseTLS   bool
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewIMAPDialer creates an IMAPDialer from the application config.
func NewIMAPDialer(cfg *config.Config, logger *zap.Logger) *IMAPDialer {
	return &IMAPDialer{
		Server:   cfg.IMAPServer(),
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		Mailbox:  cfg.IMAPMailbox,
		UseTLS:   cfg.IMAPTLS,
		Timeout:  cfg.IMAPTimeout,
		Logger:   logger,
	}
}

// Open connects, authenticates and selects the mailbox. The session is
// terminated when ctx is done.
func (d *IMAPDialer) Open(ctx context.Context) (Session, error) {
	var missing []string
	if d.Server == "" {
		missing = append(missing, "host")
	}
	if d.Username == "" {
		missing = append(missing, "username")
	}
	if d.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c, err := ConnectToIMAP(d.Server, d.UseTLS, timeout)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", Err: err}
	}
	c.Timeout = timeout

	if err := Login(c, d.Username, d.Password); err != nil {
		_ = c.Logout()
		return nil, &ConnectionError{Op: "login", Err: err}
	}

	mailbox := d.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, false); err != nil {
		_ = c.Logout()
		return nil, &ConnectionError{Op: "select", Err: err}
	}

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return newSession(ctx, c, logger.Named("imap")), nil
}

// ConnectToIMAP connects to the IMAP server with the given dial timeout.
// useTLS: true for production (TLS), false for tests (non-TLS).
func ConnectToIMAP(server string, useTLS bool, timeout time.Duration) (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout: timeout,
	}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, server, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial with TLS: %w", err)
		}
		return c, nil
	}

	// Non-TLS connection for testing
	c, err := client.DialWithDialer(dialer, server)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	return c, nil
}

// Login authenticates with the IMAP server.
func Login(c *client.Client, username, password string) error {
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	return nil
}
