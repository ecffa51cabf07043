// Package ingest runs mailbox polling passes: every unseen message is
// decoded, matched to a thread, stored as a reply and announced to the
// administrators.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/attachment"
	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/imap"
	"github.com/Christianjames01/repo-sub000/internal/metrics"
	"github.com/Christianjames01/repo-sub000/internal/mimewalk"
	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/Christianjames01/repo-sub000/internal/quote"
	"github.com/Christianjames01/repo-sub000/internal/thread"
	"go.uber.org/zap"
)

// Store is the persistence surface of a pass.
type Store interface {
	MessageIDIndex
	NotificationStore
	SaveReply(ctx context.Context, reply *models.Reply) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Dialer     imap.Dialer
	Store      Store
	Sink       attachment.Sink
	Resolver   thread.Resolver
	Recipients RecipientSource
	Publisher  Publisher
	Logger     *zap.Logger

	// MailboxAddress is the portal's own address. Messages from it are skipped.
	MailboxAddress string
	Limits         mimewalk.Limits
}

// Orchestrator drives polling passes. Only one pass runs at a time; callers
// that trigger passes from several places serialize them through the scheduler.
type Orchestrator struct {
	dialer      imap.Dialer
	store       Store
	walker      *mimewalk.Walker
	resolver    thread.Resolver
	ledger      *Ledger
	fanout      *FanOut
	selfAddress string
	logger      *zap.Logger

	running atomic.Bool
	mu      sync.Mutex
	state   State
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		dialer:      deps.Dialer,
		store:       deps.Store,
		walker:      mimewalk.NewWalker(deps.Sink, deps.Limits, logger),
		resolver:    deps.Resolver,
		ledger:      NewLedger(deps.Store),
		fanout:      NewFanOut(deps.Store, deps.Recipients, deps.Publisher, logger),
		selfAddress: strings.ToLower(strings.TrimSpace(deps.MailboxAddress)),
		logger:      logger.Named("ingest"),
	}
}

// State returns where the current pass is.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RunPass processes the mailbox's unseen messages as listed when the pass
// starts. Per-message failures are recorded in the result and the message is
// still marked seen. Failing to open the session or list messages, a lost
// connection and ctx expiry abort the pass: the partial result is returned
// with the error and unprocessed messages stay unseen.
func (o *Orchestrator) RunPass(ctx context.Context) (*PassResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer o.running.Store(false)
	defer o.setState(StateIdle)

	start := time.Now()
	result := newPassResult()
	status := "ok"
	defer func() {
		metrics.RecordPass(status, time.Since(start))
		o.logger.Info("pass finished",
			zap.String("status", status),
			zap.Int("processed", result.Tally.Processed),
			zap.Int("skipped_duplicate", result.Tally.SkippedDuplicate),
			zap.Int("skipped_self", result.Tally.SkippedSelf),
			zap.Int("failed", result.Tally.Failed),
			zap.Duration("duration", time.Since(start)))
	}()

	o.setState(StateSessionOpening)
	session, err := o.dialer.Open(ctx)
	if err != nil {
		status = "error"
		o.logger.Error("failed to open mailbox session", zap.Error(err))
		return result, err
	}
	defer func() {
		o.setState(StateClosing)
		if err := session.Close(); err != nil {
			o.logger.Warn("failed to close mailbox session", zap.Error(err))
		}
	}()

	o.setState(StateListing)
	uids, err := session.ListUnseen(ctx)
	if err != nil {
		status = "error"
		o.logger.Error("failed to list unseen messages", zap.Error(err))
		return result, fmt.Errorf("failed to list unseen messages: %w", err)
	}

	o.logger.Info("pass started", zap.Int("unseen", len(uids)))

	for i, uid := range uids {
		outcome, err := o.processMessage(ctx, session, uid)
		if outcome != nil {
			result.record(*outcome)
		}
		if err != nil {
			status = "aborted"
			o.logger.Error("pass aborted",
				zap.Uint32("uid", uid),
				zap.Int("remaining", len(uids)-i-1),
				zap.Error(err))
			return result, err
		}
	}

	return result, nil
}

// processMessage handles one message. A non-nil error is fatal to the pass;
// the outcome is nil unless the message was fully handled before it.
func (o *Orchestrator) processMessage(ctx context.Context, session imap.Session, uid uint32) (*Outcome, error) {
	o.setState(StateDecoding)

	msg, err := session.FetchEnvelope(ctx, uid)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		return o.fail(ctx, session, &Outcome{UID: uid}, err)
	}

	out := &Outcome{
		UID:       uid,
		MessageID: msg.MessageID,
		From:      msg.FromAddress,
		Subject:   msg.Subject,
	}

	if o.isSelf(msg.FromAddress) {
		out.Kind = OutcomeSkippedSelf
		return o.finish(ctx, session, out)
	}

	seen, err := o.ledger.Seen(ctx, msg.MessageID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.fail(ctx, session, out, &PersistenceError{Op: "check for duplicate", MessageID: msg.MessageID, Err: err})
	}
	if seen {
		out.Kind = OutcomeSkippedDuplicate
		return o.finish(ctx, session, out)
	}

	walked, err := o.walk(ctx, session, uid)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		return o.fail(ctx, session, out, err)
	}
	out.Truncated = walked.Truncated

	o.setState(StateResolving)
	threadID, _, err := o.resolver.Resolve(ctx, msg.Subject, msg.InReplyTo, msg.References)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.fail(ctx, session, out, fmt.Errorf("failed to resolve thread: %w", err))
	}

	o.setState(StatePersisting)
	reply := &models.Reply{
		ThreadID:           threadID,
		Direction:          models.DirectionInbound,
		FromAddress:        msg.FromAddress,
		FromName:           msg.FromName,
		Subject:            msg.Subject,
		BodyText:           quote.Strip(walked.PlainText),
		UnsafeBodyHTML:     walked.HTMLText,
		Attachments:        walked.Attachments,
		AttachmentsDropped: len(walked.Dropped),
		MessageIDHeader:    strings.TrimSpace(msg.MessageID),
	}
	if err := o.store.SaveReply(ctx, reply); err != nil {
		o.logOrphanedAttachments(uid, reply)
		if errors.Is(err, db.ErrDuplicateReply) {
			out.Kind = OutcomeSkippedDuplicate
			return o.finish(ctx, session, out)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.fail(ctx, session, out, &PersistenceError{Op: "save reply", MessageID: msg.MessageID, Err: err})
	}
	out.ReplyID = reply.ID
	out.Attachments = len(reply.Attachments)
	out.AttachmentsDropped = reply.AttachmentsDropped
	metrics.RecordAttachments(out.Attachments, out.AttachmentsDropped)

	o.setState(StateFanningOut)
	threadID, notifications, err := o.fanout.FanOut(ctx, reply, threadID)
	out.ThreadID = threadID
	out.Notifications = len(notifications)
	if err != nil {
		// The reply is stored; report the fan-out problem without failing it.
		out.Reason = err.Error()
		o.logger.Error("fan-out failed",
			zap.Uint32("uid", uid),
			zap.String("reply_id", reply.ID),
			zap.Error(err))
	}

	out.Kind = OutcomeProcessed
	out.reply = reply
	return o.finish(ctx, session, out)
}

// walk extracts the message content. An unusable BODYSTRUCTURE falls back to
// parsing the whole message locally.
func (o *Orchestrator) walk(ctx context.Context, session imap.Session, uid uint32) (*mimewalk.Result, error) {
	root, err := session.FetchStructure(ctx, uid)
	if err == nil {
		fetch := mimewalk.PartFetcherFunc(func(ctx context.Context, path string) ([]byte, error) {
			return session.FetchPartRaw(ctx, uid, path)
		})
		return o.walker.Walk(ctx, fetch, root)
	}
	if isFatal(ctx, err) {
		return nil, err
	}

	o.logger.Warn("body structure unusable, parsing raw message", zap.Uint32("uid", uid), zap.Error(err))

	raw, err := session.FetchRaw(ctx, uid)
	if err != nil {
		return nil, &mimewalk.DecodeError{Path: "", Err: err}
	}
	root, fetch, err := mimewalk.FromRaw(raw)
	if err != nil {
		return nil, &mimewalk.DecodeError{Path: "", Err: err}
	}
	return o.walker.Walk(ctx, fetch, root)
}

func (o *Orchestrator) fail(ctx context.Context, session imap.Session, out *Outcome, err error) (*Outcome, error) {
	out.Kind = OutcomeFailed
	out.Reason = err.Error()
	return o.finish(ctx, session, out)
}

// finish marks the message seen, whatever happened to it, and logs the outcome.
func (o *Orchestrator) finish(ctx context.Context, session imap.Session, out *Outcome) (*Outcome, error) {
	o.setState(StateMarking)

	var fatal error
	if err := session.MarkSeen(ctx, out.UID); err != nil {
		if isFatal(ctx, err) {
			fatal = err
		} else {
			o.logger.Warn("failed to mark message seen", zap.Uint32("uid", out.UID), zap.Error(err))
		}
	}

	metrics.RecordMessage(string(out.Kind))

	fields := []zap.Field{
		zap.Uint32("uid", out.UID),
		zap.String("message_id", out.MessageID),
		zap.String("outcome", string(out.Kind)),
	}
	if out.Reason != "" {
		fields = append(fields, zap.String("reason", out.Reason))
	}
	if out.Kind == OutcomeFailed {
		o.logger.Error("message failed", fields...)
	} else {
		o.logger.Info("message handled", append(fields,
			zap.String("reply_id", out.ReplyID),
			zap.String("thread_id", out.ThreadID))...)
	}

	return out, fatal
}

// logOrphanedAttachments reports stored files that no saved reply refers to.
func (o *Orchestrator) logOrphanedAttachments(uid uint32, reply *models.Reply) {
	if len(reply.Attachments) == 0 {
		return
	}
	urls := make([]string, 0, len(reply.Attachments))
	for _, a := range reply.Attachments {
		urls = append(urls, a.URL)
	}
	o.logger.Warn("reply not saved, attachments left orphaned",
		zap.Uint32("uid", uid),
		zap.String("message_id", reply.MessageIDHeader),
		zap.Strings("urls", urls))
}

func (o *Orchestrator) isSelf(from string) bool {
	return o.selfAddress != "" && strings.EqualFold(strings.TrimSpace(from), o.selfAddress)
}
