package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrReplyNotFound is returned when a requested reply cannot be found.
	ErrReplyNotFound = errors.New("reply not found")

	// ErrDuplicateReply is returned when a reply with the same external message id already exists.
	ErrDuplicateReply = errors.New("reply with this message id already exists")
)

const replyColumns = `
	id,
	COALESCE(thread_id::text, ''),
	direction,
	from_address,
	from_name,
	subject,
	body_text,
	unsafe_body_html,
	attachments,
	attachments_dropped,
	is_read,
	COALESCE(message_id, ''),
	created_at`

// SaveReply inserts a new reply and populates its ID and CreatedAt.
func SaveReply(ctx context.Context, pool *pgxpool.Pool, reply *models.Reply) error {
	if reply.Direction == "" {
		reply.Direction = models.DirectionInbound
	}
	if reply.Attachments == nil {
		reply.Attachments = []models.Attachment{}
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO email_replies (
			thread_id,
			direction,
			from_address,
			from_name,
			subject,
			body_text,
			unsafe_body_html,
			attachments,
			attachments_dropped,
			is_read,
			message_id
		) VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		RETURNING id, created_at
	`,
		reply.ThreadID,
		string(reply.Direction),
		reply.FromAddress,
		reply.FromName,
		reply.Subject,
		reply.BodyText,
		reply.UnsafeBodyHTML,
		reply.Attachments,
		reply.AttachmentsDropped,
		reply.IsRead,
		reply.MessageIDHeader,
	).Scan(&reply.ID, &reply.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateReply
	}
	if err != nil {
		return fmt.Errorf("failed to save reply: %w", err)
	}

	return nil
}

// GetReplyByID returns a reply by its ID.
func GetReplyByID(ctx context.Context, pool *pgxpool.Pool, id string) (*models.Reply, error) {
	row := pool.QueryRow(ctx, `SELECT `+replyColumns+` FROM email_replies WHERE id = $1`, id)

	reply, err := scanReply(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReplyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reply: %w", err)
	}

	return reply, nil
}

// GetRepliesForThread returns all replies of a thread, oldest first.
func GetRepliesForThread(ctx context.Context, pool *pgxpool.Pool, threadID string) ([]*models.Reply, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+replyColumns+`
		FROM email_replies
		WHERE thread_id = $1
		ORDER BY created_at, id
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get replies: %w", err)
	}
	defer rows.Close()

	replies := []*models.Reply{}
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		replies = append(replies, reply)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replies: %w", err)
	}

	return replies, nil
}

// ReplyExistsByMessageID reports whether a reply with the external message id is stored.
func ReplyExistsByMessageID(ctx context.Context, pool *pgxpool.Pool, messageID string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM email_replies WHERE message_id = $1)
	`, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reply existence: %w", err)
	}
	return exists, nil
}

// ThreadIDByMessageID returns the thread of the most recent reply whose
// external id matches messageID, with or without angle brackets.
// Replies that have no thread yet are ignored.
func ThreadIDByMessageID(ctx context.Context, pool *pgxpool.Pool, messageID string) (string, error) {
	bare := strings.TrimSuffix(strings.TrimPrefix(messageID, "<"), ">")
	bracketed := "<" + bare + ">"

	var threadID string
	err := pool.QueryRow(ctx, `
		SELECT thread_id::text
		FROM email_replies
		WHERE message_id IN ($1, $2) AND thread_id IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, bracketed, bare).Scan(&threadID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrReplyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up reply thread: %w", err)
	}

	return threadID, nil
}

// SetReplyThread assigns a thread to a reply.
func SetReplyThread(ctx context.Context, pool *pgxpool.Pool, replyID, threadID string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE email_replies SET thread_id = $2::uuid WHERE id = $1
	`, replyID, threadID)
	if err != nil {
		return fmt.Errorf("failed to set reply thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReplyNotFound
	}
	return nil
}

func scanReply(row pgx.Row) (*models.Reply, error) {
	var reply models.Reply
	var direction string
	if err := row.Scan(
		&reply.ID,
		&reply.ThreadID,
		&direction,
		&reply.FromAddress,
		&reply.FromName,
		&reply.Subject,
		&reply.BodyText,
		&reply.UnsafeBodyHTML,
		&reply.Attachments,
		&reply.AttachmentsDropped,
		&reply.IsRead,
		&reply.MessageIDHeader,
		&reply.CreatedAt,
	); err != nil {
		return nil, err
	}
	reply.Direction = models.Direction(direction)
	if reply.Attachments == nil {
		reply.Attachments = []models.Attachment{}
	}
	return &reply, nil
}
