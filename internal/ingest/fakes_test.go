package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/imap"
	"github.com/Christianjames01/repo-sub000/internal/mimewalk"
	"github.com/Christianjames01/repo-sub000/internal/models"
)

// memStore is an in-memory Store that also serves thread lookups.
type memStore struct {
	mu            sync.Mutex
	replies       []*models.Reply
	notifications []*models.Notification
	admins        []models.Administrator
	failSave      func(reply *models.Reply) error
	seq           int
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) now() time.Time {
	return time.Date(2024, 3, 4, 10, 0, s.seq, 0, time.UTC)
}

func (s *memStore) SaveReply(_ context.Context, reply *models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave != nil {
		if err := s.failSave(reply); err != nil {
			return err
		}
	}
	if reply.MessageIDHeader != "" {
		for _, r := range s.replies {
			if r.MessageIDHeader == reply.MessageIDHeader {
				return db.ErrDuplicateReply
			}
		}
	}

	reply.ID = s.nextID("reply")
	reply.CreatedAt = s.now()
	copied := *reply
	s.replies = append(s.replies, &copied)
	return nil
}

func (s *memStore) ReplyExistsByMessageID(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.replies {
		if r.MessageIDHeader == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) SetReplyThread(_ context.Context, replyID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.replies {
		if r.ID == replyID {
			r.ThreadID = threadID
			return nil
		}
	}
	return db.ErrReplyNotFound
}

func (s *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.nextID("notification")
	n.CreatedAt = s.now()
	copied := *n
	s.notifications = append(s.notifications, &copied)
	return nil
}

func (s *memStore) SetNotificationThread(_ context.Context, id, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ID == id {
			n.ThreadID = threadID
			return nil
		}
	}
	return db.ErrNotificationNotFound
}

func (s *memStore) ListAdministrators(context.Context) ([]models.Administrator, error) {
	return s.admins, nil
}

func (s *memStore) ThreadIDByMessageID(_ context.Context, messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bare := strings.Trim(messageID, "<>")
	for i := len(s.replies) - 1; i >= 0; i-- {
		r := s.replies[i]
		if r.ThreadID != "" && strings.Trim(r.MessageIDHeader, "<>") == bare {
			return r.ThreadID, nil
		}
	}
	return "", db.ErrReplyNotFound
}

func (s *memStore) LatestThreadIDByTitle(_ context.Context, fragment string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if strings.Contains(strings.ToLower(n.Title), strings.ToLower(fragment)) {
			return n.RootID(), nil
		}
	}
	return "", db.ErrNotificationNotFound
}

func (s *memStore) repliesFor(threadID string) []*models.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Reply
	for _, r := range s.replies {
		if r.ThreadID == threadID {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) notificationsFor(replyID string) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Notification
	for _, n := range s.notifications {
		if n.ReplyID == replyID {
			out = append(out, n)
		}
	}
	return out
}

// fakeMessage is one message in fakeSession's mailbox.
type fakeMessage struct {
	envelope     models.InboundMessage
	root         mimewalk.Part
	parts        map[string][]byte
	raw          []byte
	structureErr error
	envelopeErr  error
	partErr      error
}

type fakeSession struct {
	mu       sync.Mutex
	messages map[uint32]*fakeMessage
	seen     map[uint32]bool
	listErr  error
	markErr  error
	closed   bool
	onFetch  func(uid uint32)
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		messages: make(map[uint32]*fakeMessage),
		seen:     make(map[uint32]bool),
	}
}

func (s *fakeSession) add(uid uint32, m *fakeMessage) {
	m.envelope.UID = uid
	s.messages[uid] = m
}

func (s *fakeSession) isSeen(uid uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[uid]
}

func (s *fakeSession) ListUnseen(ctx context.Context) ([]uint32, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uids := []uint32{}
	for uid := range s.messages {
		if !s.seen[uid] {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *fakeSession) message(uid uint32) (*fakeMessage, error) {
	if s.onFetch != nil {
		s.onFetch(uid)
	}
	m, ok := s.messages[uid]
	if !ok {
		return nil, fmt.Errorf("imap fetch: message with uid %d not found", uid)
	}
	return m, nil
}

func (s *fakeSession) FetchEnvelope(_ context.Context, uid uint32) (*models.InboundMessage, error) {
	m, err := s.message(uid)
	if err != nil {
		return nil, err
	}
	if m.envelopeErr != nil {
		return nil, m.envelopeErr
	}
	env := m.envelope
	return &env, nil
}

func (s *fakeSession) FetchStructure(_ context.Context, uid uint32) (mimewalk.Part, error) {
	m, err := s.message(uid)
	if err != nil {
		return nil, err
	}
	if m.structureErr != nil {
		return nil, m.structureErr
	}
	return m.root, nil
}

func (s *fakeSession) FetchPartRaw(_ context.Context, uid uint32, path string) ([]byte, error) {
	m, err := s.message(uid)
	if err != nil {
		return nil, err
	}
	if m.partErr != nil {
		return nil, m.partErr
	}
	data, ok := m.parts[path]
	if !ok {
		return nil, fmt.Errorf("no part %s", path)
	}
	return data, nil
}

func (s *fakeSession) FetchRaw(_ context.Context, uid uint32) ([]byte, error) {
	m, err := s.message(uid)
	if err != nil {
		return nil, err
	}
	if m.raw == nil {
		return nil, errors.New("no raw message")
	}
	return m.raw, nil
}

func (s *fakeSession) MarkSeen(_ context.Context, uid uint32) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[uid] = true
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeDialer struct {
	session *fakeSession
	err     error
	opens   atomic.Int32
	block   chan struct{}
}

func (d *fakeDialer) Open(ctx context.Context) (imap.Session, error) {
	d.opens.Add(1)
	if d.block != nil {
		<-d.block
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.Notification
}

func (p *recordingPublisher) PublishNotification(n *models.Notification, _ models.ReplySummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
}

func textPart(subtype, encoding string) *mimewalk.TextPart {
	return &mimewalk.TextPart{Header: mimewalk.Header{
		Type:     "text",
		Subtype:  subtype,
		Params:   map[string]string{"charset": "utf-8"},
		Encoding: encoding,
	}}
}

func mixed(children ...mimewalk.Part) *mimewalk.MultipartContainer {
	return &mimewalk.MultipartContainer{
		Header:   mimewalk.Header{Type: "multipart", Subtype: "mixed"},
		Children: children,
	}
}
