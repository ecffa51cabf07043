package db

import (
	"context"
	"errors"
	"testing"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/Christianjames01/repo-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplies(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	root := &models.Notification{Title: "Noise Complaint", Body: "Loud music after midnight"}
	require.NoError(t, CreateNotification(ctx, pool, root))

	t.Run("saves and retrieves reply", func(t *testing.T) {
		reply := &models.Reply{
			ThreadID:    root.ID,
			FromAddress: "resident@example.com",
			FromName:    "Resident",
			Subject:     "Re: Noise Complaint",
			BodyText:    "Thanks for the update.",
			Attachments: []models.Attachment{{
				URL:       "/uploads/1_photo.jpg",
				Filename:  "photo.jpg",
				SizeBytes: 1024,
				MimeType:  "image/jpeg",
				IsImage:   true,
			}},
			AttachmentsDropped: 1,
			MessageIDHeader:    "<reply-1@example.com>",
		}
		require.NoError(t, SaveReply(ctx, pool, reply))
		assert.NotEmpty(t, reply.ID)
		assert.False(t, reply.CreatedAt.IsZero())

		retrieved, err := GetReplyByID(ctx, pool, reply.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DirectionInbound, retrieved.Direction)
		assert.Equal(t, root.ID, retrieved.ThreadID)
		assert.Equal(t, "Thanks for the update.", retrieved.BodyText)
		assert.Equal(t, 1, retrieved.AttachmentsDropped)
		require.Len(t, retrieved.Attachments, 1)
		assert.True(t, retrieved.Attachments[0].IsImage)
		assert.Equal(t, "photo.jpg", retrieved.Attachments[0].Filename)
	})

	t.Run("reply without thread or message id", func(t *testing.T) {
		reply := &models.Reply{FromAddress: "a@example.com", Subject: "hello"}
		require.NoError(t, SaveReply(ctx, pool, reply))

		retrieved, err := GetReplyByID(ctx, pool, reply.ID)
		require.NoError(t, err)
		assert.Empty(t, retrieved.ThreadID)
		assert.Empty(t, retrieved.MessageIDHeader)
		assert.NotNil(t, retrieved.Attachments)
	})

	t.Run("empty message ids never collide", func(t *testing.T) {
		first := &models.Reply{FromAddress: "a@example.com"}
		second := &models.Reply{FromAddress: "a@example.com"}
		require.NoError(t, SaveReply(ctx, pool, first))
		require.NoError(t, SaveReply(ctx, pool, second))
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("duplicate message id is rejected", func(t *testing.T) {
		first := &models.Reply{FromAddress: "a@example.com", MessageIDHeader: "<dup@example.com>"}
		require.NoError(t, SaveReply(ctx, pool, first))

		second := &models.Reply{FromAddress: "a@example.com", MessageIDHeader: "<dup@example.com>"}
		err := SaveReply(ctx, pool, second)
		assert.True(t, errors.Is(err, ErrDuplicateReply))
	})

	t.Run("existence check", func(t *testing.T) {
		exists, err := ReplyExistsByMessageID(ctx, pool, "<reply-1@example.com>")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = ReplyExistsByMessageID(ctx, pool, "<never@example.com>")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("thread lookup by message id with and without brackets", func(t *testing.T) {
		threadID, err := ThreadIDByMessageID(ctx, pool, "<reply-1@example.com>")
		require.NoError(t, err)
		assert.Equal(t, root.ID, threadID)

		bare := &models.Reply{ThreadID: root.ID, Direction: models.DirectionOutbound, MessageIDHeader: "outbound-7@example.gov"}
		require.NoError(t, SaveReply(ctx, pool, bare))

		threadID, err = ThreadIDByMessageID(ctx, pool, "<outbound-7@example.gov>")
		require.NoError(t, err)
		assert.Equal(t, root.ID, threadID)
	})

	t.Run("thread lookup skips replies without thread", func(t *testing.T) {
		orphan := &models.Reply{MessageIDHeader: "<orphan@example.com>"}
		require.NoError(t, SaveReply(ctx, pool, orphan))

		_, err := ThreadIDByMessageID(ctx, pool, "<orphan@example.com>")
		assert.ErrorIs(t, err, ErrReplyNotFound)
	})

	t.Run("set reply thread and list thread replies", func(t *testing.T) {
		reply := &models.Reply{Subject: "late", MessageIDHeader: "<late@example.com>"}
		require.NoError(t, SaveReply(ctx, pool, reply))
		require.NoError(t, SetReplyThread(ctx, pool, reply.ID, root.ID))

		replies, err := GetRepliesForThread(ctx, pool, root.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(replies), 3)
		assert.Equal(t, reply.ID, replies[len(replies)-1].ID)
	})

	t.Run("missing reply", func(t *testing.T) {
		_, err := GetReplyByID(ctx, pool, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrReplyNotFound)

		err = SetReplyThread(ctx, pool, "00000000-0000-0000-0000-000000000000", root.ID)
		assert.ErrorIs(t, err, ErrReplyNotFound)
	})
}
