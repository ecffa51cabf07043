package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotificationNotFound is returned when a requested notification cannot be found.
var ErrNotificationNotFound = errors.New("notification not found")

const notificationColumns = `
	id,
	COALESCE(admin_id::text, ''),
	title,
	body,
	COALESCE(reply_id::text, ''),
	COALESCE(thread_id::text, ''),
	is_read,
	created_at`

// CreateNotification inserts a notification and populates its ID and CreatedAt.
func CreateNotification(ctx context.Context, pool *pgxpool.Pool, n *models.Notification) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO notifications (admin_id, title, body, reply_id, thread_id, is_read)
		VALUES (NULLIF($1, '')::uuid, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, $6)
		RETURNING id, created_at
	`, n.AdminID, n.Title, n.Body, n.ReplyID, n.ThreadID, n.IsRead).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// SetNotificationThread assigns a thread to a notification.
func SetNotificationThread(ctx context.Context, pool *pgxpool.Pool, id, threadID string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE notifications SET thread_id = $2::uuid WHERE id = $1
	`, id, threadID)
	if err != nil {
		return fmt.Errorf("failed to set notification thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// GetNotificationByID returns a notification by its ID.
func GetNotificationByID(ctx context.Context, pool *pgxpool.Pool, id string) (*models.Notification, error) {
	var n models.Notification
	err := pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id).Scan(
		&n.ID, &n.AdminID, &n.Title, &n.Body, &n.ReplyID, &n.ThreadID, &n.IsRead, &n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

// GetNotificationsForReply returns the notifications created for a reply, oldest first.
func GetNotificationsForReply(ctx context.Context, pool *pgxpool.Pool, replyID string) ([]*models.Notification, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE reply_id = $1
		ORDER BY created_at, id
	`, replyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.AdminID, &n.Title, &n.Body, &n.ReplyID, &n.ThreadID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// LatestThreadIDByTitle returns the thread root of the most recent
// notification whose title contains fragment, case-insensitively.
func LatestThreadIDByTitle(ctx context.Context, pool *pgxpool.Pool, fragment string) (string, error) {
	var threadID string
	err := pool.QueryRow(ctx, `
		SELECT COALESCE(thread_id, id)::text
		FROM notifications
		WHERE title ILIKE $1 ESCAPE '\'
		ORDER BY created_at DESC
		LIMIT 1
	`, "%"+escapeLike(fragment)+"%").Scan(&threadID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotificationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up thread by title: %w", err)
	}

	return threadID, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
