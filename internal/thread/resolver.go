// Package thread matches inbound replies to existing notification threads.
package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/db"
	sortthread "github.com/emersion/go-imap-sortthread"
	"go.uber.org/zap"
)

// Resolver maps an inbound message to a thread id. ok is false when no
// thread matched; the caller then starts a new one.
type Resolver interface {
	Resolve(ctx context.Context, subject, inReplyTo, references string) (threadID string, ok bool, err error)
}

// Store is the lookup surface the heuristic resolver needs.
type Store interface {
	ThreadIDByMessageID(ctx context.Context, messageID string) (string, error)
	LatestThreadIDByTitle(ctx context.Context, fragment string) (string, error)
}

// HeuristicResolver correlates by In-Reply-To, then References, then by
// normalized subject against notification titles.
type HeuristicResolver struct {
	store  Store
	logger *zap.Logger
}

// NewHeuristicResolver creates a HeuristicResolver.
func NewHeuristicResolver(store Store, logger *zap.Logger) *HeuristicResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeuristicResolver{store: store, logger: logger.Named("thread")}
}

// Resolve implements Resolver.
func (r *HeuristicResolver) Resolve(ctx context.Context, subject, inReplyTo, references string) (string, bool, error) {
	for _, header := range []string{inReplyTo, references} {
		for _, id := range MessageIDs(header) {
			threadID, err := r.store.ThreadIDByMessageID(ctx, id)
			if errors.Is(err, db.ErrReplyNotFound) {
				continue
			}
			if err != nil {
				return "", false, fmt.Errorf("failed to look up message id %s: %w", id, err)
			}
			r.logger.Debug("thread matched by header", zap.String("message_id", id), zap.String("thread_id", threadID))
			return threadID, true, nil
		}
	}

	candidates := []string{NormalizeSubject(subject)}
	if base, _ := sortthread.GetBaseSubject(subject); base != "" && !strings.EqualFold(base, candidates[0]) {
		candidates = append(candidates, base)
	}

	for _, fragment := range candidates {
		if fragment == "" {
			continue
		}
		threadID, err := r.store.LatestThreadIDByTitle(ctx, fragment)
		if errors.Is(err, db.ErrNotificationNotFound) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to look up thread by subject: %w", err)
		}
		r.logger.Debug("thread matched by subject", zap.String("subject", fragment), zap.String("thread_id", threadID))
		return threadID, true, nil
	}

	return "", false, nil
}
