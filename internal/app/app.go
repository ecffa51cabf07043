// Package app assembles the ingestion pipeline from the configuration. Both
// the HTTP server and the ingest command build their components here.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/attachment"
	"github.com/Christianjames01/repo-sub000/internal/config"
	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/imap"
	"github.com/Christianjames01/repo-sub000/internal/ingest"
	"github.com/Christianjames01/repo-sub000/internal/mimewalk"
	"github.com/Christianjames01/repo-sub000/internal/scheduler"
	"github.com/Christianjames01/repo-sub000/internal/thread"
	ws "github.com/Christianjames01/repo-sub000/internal/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// lockTTLFloor is the shortest Redis lock lifetime we hand out.
const lockTTLFloor = 5 * time.Minute

// App holds the wired components.
type App struct {
	Store        *db.Store
	Hub          *ws.Hub
	Orchestrator *ingest.Orchestrator
	Runner       *scheduler.Runner

	closers []func()
}

// New wires the orchestrator and its scheduler. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, store *db.Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sink, err := NewSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	locker, closeLocker, err := NewLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(10, logger)

	orchestrator := ingest.NewOrchestrator(ingest.Deps{
		Dialer:         imap.NewIMAPDialer(cfg, logger),
		Store:          store,
		Sink:           sink,
		Resolver:       thread.NewHeuristicResolver(store, logger),
		Recipients:     ingest.StoreRecipients{Store: store},
		Publisher:      hub,
		Logger:         logger,
		MailboxAddress: cfg.IMAPAddress,
		Limits: mimewalk.Limits{
			MaxDepth: cfg.MIMEMaxDepth,
			MaxParts: cfg.MIMEMaxParts,
		},
	})

	runner := scheduler.NewRunner(orchestrator, locker, scheduler.Options{
		MinInterval: cfg.PollMinInterval,
		Timeout:     cfg.PollTimeout,
	}, logger)

	return &App{
		Store:        store,
		Hub:          hub,
		Orchestrator: orchestrator,
		Runner:       runner,
		closers:      []func(){closeLocker},
	}, nil
}

// Close releases the connections opened by New.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}

// NewSink returns the attachment sink selected by PORTAL_ATTACHMENT_BACKEND.
func NewSink(ctx context.Context, cfg *config.Config) (attachment.Sink, error) {
	switch cfg.AttachmentBackend {
	case config.AttachmentBackendFile:
		sink, err := attachment.NewFileSink(cfg.AttachmentDir, cfg.AttachmentBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create file attachment sink: %w", err)
		}
		return sink, nil
	case config.AttachmentBackendS3:
		// A relative base URL only makes sense for the file backend.
		baseURL := ""
		if strings.HasPrefix(cfg.AttachmentBaseURL, "http://") || strings.HasPrefix(cfg.AttachmentBaseURL, "https://") {
			baseURL = cfg.AttachmentBaseURL
		}
		sink, err := attachment.NewS3Sink(ctx, attachment.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			BaseURL:   baseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 attachment sink: %w", err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown attachment backend %q", cfg.AttachmentBackend)
	}
}

// NewLocker returns a Redis-backed locker when PORTAL_REDIS_ADDR is set and a
// process-local one otherwise. The returned func closes the Redis client.
func NewLocker(ctx context.Context, cfg *config.Config) (scheduler.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return &scheduler.LocalLocker{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	ttl := 2 * cfg.PollTimeout
	if ttl < lockTTLFloor {
		ttl = lockTTLFloor
	}

	return scheduler.NewRedisLocker(client, "", ttl), func() { _ = client.Close() }, nil
}
