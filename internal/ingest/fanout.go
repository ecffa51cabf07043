package ingest

import (
	"context"
	"fmt"

	"github.com/Christianjames01/repo-sub000/internal/metrics"
	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/Christianjames01/repo-sub000/internal/thread"
	"go.uber.org/zap"
)

// RecipientSource returns the administrators to notify. It is called once
// per reply and never cached.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]models.Administrator, error)
}

// AdministratorLister is satisfied by the database store.
type AdministratorLister interface {
	ListAdministrators(ctx context.Context) ([]models.Administrator, error)
}

// StoreRecipients notifies every administrator in the database.
type StoreRecipients struct {
	Store AdministratorLister
}

// Recipients implements RecipientSource.
func (s StoreRecipients) Recipients(ctx context.Context) ([]models.Administrator, error) {
	return s.Store.ListAdministrators(ctx)
}

// StaticRecipients is a fixed recipient set.
type StaticRecipients []models.Administrator

// Recipients implements RecipientSource.
func (s StaticRecipients) Recipients(context.Context) ([]models.Administrator, error) {
	return s, nil
}

// Publisher pushes a created notification to its administrator's live connections.
type Publisher interface {
	PublishNotification(n *models.Notification, reply models.ReplySummary)
}

type nopPublisher struct{}

func (nopPublisher) PublishNotification(*models.Notification, models.ReplySummary) {}

// NotificationStore is the write surface fan-out needs.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	SetNotificationThread(ctx context.Context, id, threadID string) error
	SetReplyThread(ctx context.Context, replyID, threadID string) error
}

// FanOut creates one notification per administrator for a stored reply.
type FanOut struct {
	store      NotificationStore
	recipients RecipientSource
	publisher  Publisher
	logger     *zap.Logger
}

// NewFanOut creates a FanOut. publisher may be nil.
func NewFanOut(store NotificationStore, recipients RecipientSource, publisher Publisher, logger *zap.Logger) *FanOut {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		store:      store,
		recipients: recipients,
		publisher:  publisher,
		logger:     logger.Named("fanout"),
	}
}

// FanOut notifies every administrator about reply and returns the thread the
// notifications belong to. When threadID is empty the first notification
// becomes the thread root and is written back onto the reply. With no
// administrators a recipient-less root is created so the reply is anchored.
func (f *FanOut) FanOut(ctx context.Context, reply *models.Reply, threadID string) (string, []*models.Notification, error) {
	admins, err := f.recipients.Recipients(ctx)
	if err != nil {
		return threadID, nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	title := notificationTitle(reply)
	body := notificationBody(reply)
	created := make([]*models.Notification, 0, len(admins))

	if len(admins) == 0 {
		if threadID != "" {
			return threadID, created, nil
		}
		root := &models.Notification{Title: title, Body: body, ReplyID: reply.ID}
		if err := f.createRoot(ctx, reply, root); err != nil {
			return "", created, err
		}
		f.logger.Info("no administrators to notify, created thread root",
			zap.String("reply_id", reply.ID), zap.String("thread_id", root.ID))
		return root.ID, created, nil
	}

	for _, admin := range admins {
		n := &models.Notification{
			AdminID:  admin.ID,
			Title:    title,
			Body:     body,
			ReplyID:  reply.ID,
			ThreadID: threadID,
		}

		if threadID == "" {
			if err := f.createRoot(ctx, reply, n); err != nil {
				return "", created, err
			}
			threadID = n.ID
		} else if err := f.store.CreateNotification(ctx, n); err != nil {
			return threadID, created, fmt.Errorf("failed to notify administrator %s: %w", admin.ID, err)
		}

		created = append(created, n)
	}

	metrics.RecordNotifications(len(created))

	summary := reply.Summary()
	for _, n := range created {
		f.publisher.PublishNotification(n, summary)
	}

	return threadID, created, nil
}

// createRoot inserts n as a new thread root and points the reply at it.
func (f *FanOut) createRoot(ctx context.Context, reply *models.Reply, n *models.Notification) error {
	if err := f.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to create thread root: %w", err)
	}
	if err := f.store.SetNotificationThread(ctx, n.ID, n.ID); err != nil {
		return fmt.Errorf("failed to mark thread root: %w", err)
	}
	n.ThreadID = n.ID

	if err := f.store.SetReplyThread(ctx, reply.ID, n.ID); err != nil {
		return fmt.Errorf("failed to attach reply to thread: %w", err)
	}
	reply.ThreadID = n.ID
	return nil
}

// notificationTitle uses the normalized subject so later replies with the
// same subject match the thread by title.
func notificationTitle(reply *models.Reply) string {
	if subject := thread.NormalizeSubject(reply.Subject); subject != "" {
		return subject
	}
	return "Email from " + reply.Summary().Sender
}

func notificationBody(reply *models.Reply) string {
	summary := reply.Summary()
	if summary.Body == "" {
		return summary.Sender + " replied by email."
	}
	return summary.Sender + " replied by email: " + summary.Body
}
