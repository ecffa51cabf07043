package db

import (
	"context"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store binds the package functions to one pool so they can be injected
// behind the narrow interfaces the ingestion components declare.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) SaveReply(ctx context.Context, reply *models.Reply) error {
	return SaveReply(ctx, s.pool, reply)
}

func (s *Store) GetReplyByID(ctx context.Context, id string) (*models.Reply, error) {
	return GetReplyByID(ctx, s.pool, id)
}

func (s *Store) GetRepliesForThread(ctx context.Context, threadID string) ([]*models.Reply, error) {
	return GetRepliesForThread(ctx, s.pool, threadID)
}

func (s *Store) ReplyExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	return ReplyExistsByMessageID(ctx, s.pool, messageID)
}

func (s *Store) ThreadIDByMessageID(ctx context.Context, messageID string) (string, error) {
	return ThreadIDByMessageID(ctx, s.pool, messageID)
}

func (s *Store) SetReplyThread(ctx context.Context, replyID, threadID string) error {
	return SetReplyThread(ctx, s.pool, replyID, threadID)
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return CreateNotification(ctx, s.pool, n)
}

func (s *Store) SetNotificationThread(ctx context.Context, id, threadID string) error {
	return SetNotificationThread(ctx, s.pool, id, threadID)
}

func (s *Store) LatestThreadIDByTitle(ctx context.Context, fragment string) (string, error) {
	return LatestThreadIDByTitle(ctx, s.pool, fragment)
}

func (s *Store) ListAdministrators(ctx context.Context) ([]models.Administrator, error) {
	return ListAdministrators(ctx, s.pool)
}

func (s *Store) GetAdministratorByEmail(ctx context.Context, email string) (*models.Administrator, error) {
	return GetAdministratorByEmail(ctx, s.pool, email)
}
