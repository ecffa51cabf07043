package imap

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/mimewalk"
	"github.com/Christianjames01/repo-sub000/internal/testutil"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const rawReply = "From: Jane Resident <resident@example.com>\r\n" +
	"To: office@example.gov\r\n" +
	"Subject: Re: Noise Complaint\r\n" +
	"Date: Mon, 04 Mar 2024 10:00:00 +0000\r\n" +
	"Message-ID: <reply-1@example.com>\r\n" +
	"In-Reply-To: <outbound-1@example.gov>\r\n" +
	"References: <root-1@example.gov> <outbound-1@example.gov>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"VGhhbmtzIGZvciB0aGUgdXBkYXRlLg==\r\n" +
	"--b1\r\n" +
	"Content-Type: image/jpeg; name=\"street.jpg\"\r\n" +
	"Content-Disposition: inline; filename=\"street.jpg\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"/9j/4AAQSkZJRg==\r\n" +
	"--b1--\r\n"

func newTestDialer(t *testing.T, server *testutil.TestIMAPServer) *IMAPDialer {
	t.Helper()
	return &IMAPDialer{
		Server:   server.Address,
		Username: server.Username(),
		Password: server.Password(),
		Mailbox:  "INBOX",
		UseTLS:   false,
		Timeout:  5 * time.Second,
		Logger:   zaptest.NewLogger(t),
	}
}

func TestIMAPDialer_Open(t *testing.T) {
	t.Run("missing settings are a configuration error", func(t *testing.T) {
		d := &IMAPDialer{Server: "imap.example.gov:993"}

		_, err := d.Open(context.Background())

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, []string{"username", "password"}, cfgErr.Missing)
	})

	t.Run("wrong password is a connection error", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		defer server.Close()

		d := newTestDialer(t, server)
		d.Password = "wrong"

		_, err := d.Open(context.Background())

		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, "login", connErr.Op)
		assert.NotEmpty(t, connErr.Diagnostic())
	})

	t.Run("unreachable server is a connection error", func(t *testing.T) {
		d := &IMAPDialer{Server: "127.0.0.1:1", Username: "u", Password: "p", Timeout: time.Second}

		_, err := d.Open(context.Background())

		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, "connect", connErr.Op)
		assert.Contains(t, connErr.Error(), connErr.Diagnostic())
	})

	t.Run("unknown mailbox is a connection error", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		defer server.Close()

		d := newTestDialer(t, server)
		d.Mailbox = "Does-Not-Exist"

		_, err := d.Open(context.Background())

		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, "select", connErr.Op)
	})
}

func TestSession(t *testing.T) {
	server := testutil.NewTestIMAPServer(t)
	defer server.Close()
	server.MarkAllSeen(t)

	ctx := context.Background()

	t.Run("no unseen messages yields empty list", func(t *testing.T) {
		s, err := newTestDialer(t, server).Open(ctx)
		require.NoError(t, err)
		defer s.Close()

		uids, err := s.ListUnseen(ctx)
		require.NoError(t, err)
		assert.NotNil(t, uids)
		assert.Empty(t, uids)
	})

	uid := server.AppendRaw(t, rawReply)

	t.Run("lists, fetches and marks seen", func(t *testing.T) {
		s, err := newTestDialer(t, server).Open(ctx)
		require.NoError(t, err)
		defer s.Close()

		uids, err := s.ListUnseen(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint32{uid}, uids)

		env, err := s.FetchEnvelope(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, uid, env.UID)
		assert.Equal(t, "resident@example.com", env.FromAddress)
		assert.Equal(t, "Jane Resident", env.FromName)
		assert.Equal(t, "Re: Noise Complaint", env.Subject)
		assert.Equal(t, "<reply-1@example.com>", env.MessageID)
		assert.Equal(t, "<outbound-1@example.gov>", env.InReplyTo)
		assert.Equal(t, "<root-1@example.gov> <outbound-1@example.gov>", env.References)

		root, err := s.FetchStructure(ctx, uid)
		require.NoError(t, err)
		container, ok := root.(*mimewalk.MultipartContainer)
		require.True(t, ok)
		require.Len(t, container.Children, 2)
		image := mimewalk.HeaderOf(container.Children[1])
		assert.Equal(t, "image/jpeg", image.ContentType())
		assert.Equal(t, "street.jpg", image.DispositionParam("filename"))

		part, err := s.FetchPartRaw(ctx, uid, "1")
		require.NoError(t, err)
		assert.Equal(t, "Thanks for the update.", string(mimewalk.Decode(part, "base64")))

		raw, err := s.FetchRaw(ctx, uid)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(raw), "Subject: Re: Noise Complaint"))

		assert.False(t, server.IsSeen(t, uid), "fetches must not set the seen flag")

		require.NoError(t, s.MarkSeen(ctx, uid))
		assert.True(t, server.IsSeen(t, uid))

		uids, err = s.ListUnseen(ctx)
		require.NoError(t, err)
		assert.Empty(t, uids)
	})

	t.Run("cancelled context stops commands", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		s, err := newTestDialer(t, server).Open(cancelCtx)
		require.NoError(t, err)
		defer s.Close()

		cancel()

		_, err = s.ListUnseen(cancelCtx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s, err := newTestDialer(t, server).Open(ctx)
		require.NoError(t, err)

		assert.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})

	t.Run("fetching a missing uid is not a connection error", func(t *testing.T) {
		s, err := newTestDialer(t, server).Open(ctx)
		require.NoError(t, err)
		defer s.Close()

		_, err = s.FetchEnvelope(ctx, 9999)
		require.Error(t, err)
		var connErr *ConnectionError
		assert.False(t, errors.As(err, &connErr))
	})
}

func TestConvertStructure(t *testing.T) {
	bs := &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain", Params: map[string]string{"Charset": "utf-8"}},
			{
				MIMEType:          "message",
				MIMESubType:       "rfc822",
				Disposition:       "attachment",
				DispositionParams: map[string]string{"filename": "fwd.eml"},
				BodyStructure: &imap.BodyStructure{
					MIMEType:    "multipart",
					MIMESubType: "alternative",
					Parts: []*imap.BodyStructure{
						{MIMEType: "text", MIMESubType: "plain"},
						{MIMEType: "text", MIMESubType: "html"},
					},
				},
			},
			{
				MIMEType:      "message",
				MIMESubType:   "rfc822",
				BodyStructure: &imap.BodyStructure{MIMEType: "image", MIMESubType: "png"},
			},
		},
	}

	root := convertStructure(bs)

	container, ok := root.(*mimewalk.MultipartContainer)
	require.True(t, ok)
	require.Len(t, container.Children, 3)

	text := container.Children[0]
	_, ok = text.(*mimewalk.TextPart)
	assert.True(t, ok)
	assert.Equal(t, "utf-8", mimewalk.HeaderOf(text).Param("charset"))

	forwarded, ok := container.Children[1].(*mimewalk.BinaryPart)
	require.True(t, ok)
	assert.Len(t, forwarded.Children, 2, "encapsulated multipart parts are flattened")
	assert.Equal(t, "fwd.eml", forwarded.DispositionParam("filename"))

	single, ok := container.Children[2].(*mimewalk.BinaryPart)
	require.True(t, ok)
	require.Len(t, single.Children, 1)
	assert.Equal(t, "image/png", mimewalk.HeaderOf(single.Children[0]).ContentType())
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path     string
		expected []int
		wantErr  bool
	}{
		{path: "", expected: nil},
		{path: "1", expected: []int{1}},
		{path: "1.2.3", expected: []int{1, 2, 3}},
		{path: "1..2", wantErr: true},
		{path: "0", wantErr: true},
		{path: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := parsePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		connection bool
	}{
		{name: "eof", err: io.EOF, connection: true},
		{name: "closed connection", err: net.ErrClosed, connection: true},
		{name: "logged out", err: client.ErrNotLoggedIn, connection: true},
		{name: "server rejection", err: errors.New("NO no such message"), connection: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(nil, "fetch", tt.err)

			var connErr *ConnectionError
			assert.Equal(t, tt.connection, errors.As(err, &connErr))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify(nil, "fetch", nil))
}
