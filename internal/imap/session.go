package imap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Christianjames01/repo-sub000/internal/mimewalk"
	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/textproto"
	"go.uber.org/zap"
)

// Session is one authenticated connection with the mailbox selected.
// All fetches peek, so only MarkSeen changes flags.
type Session interface {
	// ListUnseen returns the UIDs of unseen messages in ascending order. Never nil.
	ListUnseen(ctx context.Context) ([]uint32, error)
	FetchEnvelope(ctx context.Context, uid uint32) (*models.InboundMessage, error)
	FetchStructure(ctx context.Context, uid uint32) (mimewalk.Part, error)
	FetchPartRaw(ctx context.Context, uid uint32, path string) ([]byte, error)
	// FetchRaw returns the whole message. It is only used when the structure is unusable.
	FetchRaw(ctx context.Context, uid uint32) ([]byte, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

type session struct {
	c         *client.Client
	logger    *zap.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(ctx context.Context, c *client.Client, logger *zap.Logger) *session {
	s := &session{
		c:      c,
		logger: logger,
		done:   make(chan struct{}),
	}

	// Unblock any in-flight command when the pass is cancelled or times out.
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Warn("terminating IMAP session", zap.Error(ctx.Err()))
			_ = c.Terminate()
		case <-s.done:
		}
	}()

	return s
}

func (s *session) ListUnseen(ctx context.Context) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, s.fail(ctx, "search", err)
	}

	if uids == nil {
		uids = []uint32{}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return uids, nil
}

func (s *session) FetchEnvelope(ctx context.Context, uid uint32) (*models.InboundMessage, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	msg, err := s.fetchOne(ctx, uid, items, "fetch envelope")
	if err != nil {
		return nil, err
	}

	inbound := &models.InboundMessage{
		UID:        uid,
		ReceivedAt: msg.InternalDate,
	}

	if env := msg.Envelope; env != nil {
		inbound.Subject = env.Subject
		inbound.MessageID = env.MessageId
		inbound.InReplyTo = env.InReplyTo
		if inbound.ReceivedAt.IsZero() {
			inbound.ReceivedAt = env.Date
		}
		if len(env.From) > 0 && env.From[0] != nil {
			inbound.FromAddress = formatAddress(env.From[0])
			inbound.FromName = env.From[0].PersonalName
		}
	}

	if body := msg.GetBody(section); body != nil {
		header, err := textproto.ReadHeader(bufio.NewReader(body))
		if err != nil {
			s.logger.Debug("failed to parse raw header block", zap.Uint32("uid", uid), zap.Error(err))
		} else {
			inbound.References = header.Get("References")
			if inbound.InReplyTo == "" {
				inbound.InReplyTo = header.Get("In-Reply-To")
			}
			if inbound.MessageID == "" {
				inbound.MessageID = strings.TrimSpace(header.Get("Message-Id"))
			}
		}
	}

	return inbound, nil
}

func (s *session) FetchStructure(ctx context.Context, uid uint32) (mimewalk.Part, error) {
	msg, err := s.fetchOne(ctx, uid, []imap.FetchItem{imap.FetchUid, imap.FetchBodyStructure}, "fetch structure")
	if err != nil {
		return nil, err
	}
	if msg.BodyStructure == nil {
		return nil, fmt.Errorf("imap fetch structure: server returned no body structure for uid %d", uid)
	}
	return convertStructure(msg.BodyStructure), nil
}

func (s *session) FetchPartRaw(ctx context.Context, uid uint32, path string) ([]byte, error) {
	partPath, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Path: partPath},
		Peek:         true,
	}
	return s.fetchBody(ctx, uid, section, "fetch part "+path)
}

func (s *session) FetchRaw(ctx context.Context, uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{Peek: true}
	return s.fetchBody(ctx, uid, section, "fetch message")
}

func (s *session) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return s.fail(ctx, "store", err)
	}
	return nil
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.c.State() != imap.LogoutState {
			err = s.c.Logout()
		}
	})
	if errors.Is(err, client.ErrAlreadyLoggedOut) {
		return nil
	}
	return err
}

func (s *session) fetchBody(ctx context.Context, uid uint32, section *imap.BodySectionName, op string) ([]byte, error) {
	msg, err := s.fetchOne(ctx, uid, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, op)
	if err != nil {
		return nil, err
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("imap %s: server returned no body for uid %d", op, uid)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("imap %s: failed to read body: %w", op, err)
	}
	return data, nil
}

// fetchOne runs a UID FETCH for a single message and waits for it to finish.
func (s *session) fetchOne(ctx context.Context, uid uint32, items []imap.FetchItem, op string) (*imap.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}

	if err := <-done; err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("imap %s: message with uid %d not found", op, uid)
	}
	return msg, nil
}

// fail prefers the context error so a cancelled pass is reported as such.
func (s *session) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return classify(s.c, op, err)
}

// convertStructure maps a BODYSTRUCTURE onto the part tree. Parts of an
// encapsulated message/rfc822 are attached as its children so their dotted
// paths match the server's numbering.
func convertStructure(bs *imap.BodyStructure) mimewalk.Part {
	h := mimewalk.Header{
		Type:              bs.MIMEType,
		Subtype:           bs.MIMESubType,
		Params:            copyParams(bs.Params),
		Disposition:       bs.Disposition,
		DispositionParams: copyParams(bs.DispositionParams),
		Encoding:          bs.Encoding,
		Size:              bs.Size,
	}

	if name, err := bs.Filename(); err == nil && name != "" {
		if _, ok := h.DispositionParams["filename"]; ok {
			h.DispositionParams["filename"] = name
		} else if _, ok := h.Params["name"]; ok {
			h.Params["name"] = name
		}
	}

	var children []mimewalk.Part
	switch {
	case strings.EqualFold(bs.MIMEType, "multipart"):
		for _, p := range bs.Parts {
			children = append(children, convertStructure(p))
		}
	case strings.EqualFold(bs.MIMEType, "message") && strings.EqualFold(bs.MIMESubType, "rfc822") && bs.BodyStructure != nil:
		inner := bs.BodyStructure
		if strings.EqualFold(inner.MIMEType, "multipart") {
			for _, p := range inner.Parts {
				children = append(children, convertStructure(p))
			}
		} else {
			children = []mimewalk.Part{convertStructure(inner)}
		}
	}

	return mimewalk.NewPart(h, children)
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[strings.ToLower(k)] = v
	}
	return out
}

func parsePath(path string) ([]int, error) {
	if path == "" {
		return nil, nil
	}
	fields := strings.Split(path, ".")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid part path %q", path)
		}
		out = append(out, n)
	}
	return out, nil
}

// formatAddress formats an IMAP address as mailbox@host.
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}
