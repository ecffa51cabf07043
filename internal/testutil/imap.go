package testutil

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// TestIMAPServer represents a test IMAP server instance.
type TestIMAPServer struct {
	Server   *server.Server
	Address  string
	Backend  *memory.Backend
	cleanup  func()
	username string
	password string
}

// NewTestIMAPServer creates a new test IMAP server with an in-memory backend.
// Returns the server instance and cleanup function.
// The memory backend creates a default user with username "username" and password "password".
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	// Create an in-memory backend
	be := memory.New()

	// Create server
	s := server.New(be)
	s.AllowInsecureAuth = true

	// Start server on random port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	addr := listener.Addr().String()

	// Start server in goroutine
	go func() {
		if err := s.Serve(listener); err != nil {
			t.Logf("IMAP server error: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	cleanup := func() {
		err := s.Close()
		if err != nil {
			return
		}
	}

	// Memory backend creates a default user with these credentials
	username := "username"
	password := "password"

	return &TestIMAPServer{
		Server:   s,
		Address:  addr,
		Backend:  be,
		cleanup:  cleanup,
		username: username,
		password: password,
	}
}

// Close shuts down the test IMAP server.
func (s *TestIMAPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Username returns the default test username.
func (s *TestIMAPServer) Username() string {
	return s.username
}

// Password returns the default test password.
func (s *TestIMAPServer) Password() string {
	return s.password
}

// Connect creates a new IMAP client connection to the test server.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	client, err := imapclient.Dial(s.Address)
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}

	if err := client.Login(s.username, s.password); err != nil {
		_ = client.Logout()
		t.Fatalf("Failed to login: %v", err)
	}

	cleanup := func() {
		_ = client.Logout()
	}

	return client, cleanup
}

// MarkAllSeen flags every message in INBOX as seen. The memory backend
// starts with one seeded message, which tests usually want out of the way.
func (s *TestIMAPServer) MarkAllSeen(t *testing.T) {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select("INBOX", false); err != nil {
		t.Fatalf("Failed to select INBOX: %v", err)
	}

	uids, err := client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		t.Fatalf("Failed to search INBOX: %v", err)
	}
	if len(uids) == 0 {
		return
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		t.Fatalf("Failed to mark messages seen: %v", err)
	}
}

// AppendRaw appends a raw RFC 822 message to INBOX as unseen and returns its UID.
func (s *TestIMAPServer) AppendRaw(t *testing.T, raw string) uint32 {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if err := client.Append("INBOX", nil, time.Now(), strings.NewReader(raw)); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	if _, err := client.Select("INBOX", false); err != nil {
		t.Fatalf("Failed to select INBOX: %v", err)
	}

	uids, err := client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		t.Fatalf("Failed to search for message: %v", err)
	}
	if len(uids) == 0 {
		t.Fatalf("Message not found after append")
	}

	latest := uids[0]
	for _, uid := range uids {
		if uid > latest {
			latest = uid
		}
	}
	return latest
}

// IsSeen reports whether the message with the given UID has the seen flag.
func (s *TestIMAPServer) IsSeen(t *testing.T, uid uint32) bool {
	t.Helper()

	client, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := client.Select("INBOX", true); err != nil {
		t.Fatalf("Failed to select INBOX: %v", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	messages := make(chan *imap.Message, 1)
	if err := client.UidFetch(seqSet, []imap.FetchItem{imap.FetchFlags}, messages); err != nil {
		t.Fatalf("Failed to fetch flags: %v", err)
	}

	for msg := range messages {
		for _, flag := range msg.Flags {
			if flag == imap.SeenFlag {
				return true
			}
		}
	}
	return false
}
