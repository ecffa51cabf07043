package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingRecipients struct{}

func (failingRecipients) Recipients(context.Context) ([]models.Administrator, error) {
	return nil, errors.New("connection refused")
}

func TestFanOut(t *testing.T) {
	ctx := context.Background()

	newReply := func(t *testing.T, store *memStore, threadID string) *models.Reply {
		t.Helper()
		reply := &models.Reply{
			ThreadID:    threadID,
			FromAddress: "resident@example.com",
			FromName:    "Jane Resident",
			Subject:     "RE: Fwd: Street light out",
			BodyText:    "It is still dark.",
		}
		require.NoError(t, store.SaveReply(ctx, reply))
		return reply
	}

	t.Run("existing thread is kept", func(t *testing.T) {
		store := &memStore{}
		publisher := &recordingPublisher{}
		f := NewFanOut(store, StaticRecipients(admins), publisher, zaptest.NewLogger(t))
		reply := newReply(t, store, "thread-1")

		threadID, created, err := f.FanOut(ctx, reply, "thread-1")

		require.NoError(t, err)
		assert.Equal(t, "thread-1", threadID)
		require.Len(t, created, 2)
		for _, n := range created {
			assert.Equal(t, "thread-1", n.ThreadID)
			assert.Equal(t, reply.ID, n.ReplyID)
			assert.Equal(t, "Street light out", n.Title)
			assert.Equal(t, "Jane Resident replied by email: It is still dark.", n.Body)
		}
		assert.Len(t, publisher.events, 2)
	})

	t.Run("first notification roots a new thread", func(t *testing.T) {
		store := &memStore{}
		f := NewFanOut(store, StaticRecipients(admins), nil, nil)
		reply := newReply(t, store, "")

		threadID, created, err := f.FanOut(ctx, reply, "")

		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, created[0].ID, threadID)
		assert.Equal(t, threadID, created[0].ThreadID)
		assert.Equal(t, threadID, created[1].ThreadID)
		assert.Equal(t, threadID, reply.ThreadID)
		assert.Len(t, store.repliesFor(threadID), 1)
	})

	t.Run("existing thread without administrators creates nothing", func(t *testing.T) {
		store := &memStore{}
		f := NewFanOut(store, StaticRecipients(nil), nil, nil)
		reply := newReply(t, store, "thread-1")

		threadID, created, err := f.FanOut(ctx, reply, "thread-1")

		require.NoError(t, err)
		assert.Equal(t, "thread-1", threadID)
		assert.Empty(t, created)
		assert.Empty(t, store.notifications)
	})

	t.Run("untitled reply is named after the sender", func(t *testing.T) {
		store := &memStore{}
		f := NewFanOut(store, StaticRecipients(nil), nil, nil)
		reply := &models.Reply{FromAddress: "resident@example.com"}
		require.NoError(t, store.SaveReply(ctx, reply))

		_, _, err := f.FanOut(ctx, reply, "")

		require.NoError(t, err)
		require.Len(t, store.notifications, 1)
		assert.Equal(t, "Email from resident@example.com", store.notifications[0].Title)
		assert.Equal(t, "resident@example.com replied by email.", store.notifications[0].Body)
	})

	t.Run("recipient lookup failure", func(t *testing.T) {
		store := &memStore{}
		f := NewFanOut(store, failingRecipients{}, nil, nil)
		reply := newReply(t, store, "")

		_, created, err := f.FanOut(ctx, reply, "")

		assert.ErrorContains(t, err, "failed to resolve recipients")
		assert.Empty(t, created)
	})
}
