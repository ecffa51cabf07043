package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/api"
	"github.com/Christianjames01/repo-sub000/internal/app"
	"github.com/Christianjames01/repo-sub000/internal/auth"
	"github.com/Christianjames01/repo-sub000/internal/config"
	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/logger"
	ws "github.com/Christianjames01/repo-sub000/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.GetDatabaseURL()); err != nil {
		l.Fatal("Failed to migrate database", zap.Error(err))
	}

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.CloseConnection(pool)

	l.Info("Successfully connected to database")

	a, err := app.New(ctx, cfg, db.NewStore(pool), l)
	if err != nil {
		l.Fatal("Failed to assemble ingestion pipeline", zap.Error(err))
	}
	defer a.Close()

	go a.Runner.Start(ctx, cfg.PollInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewServer(cfg, a.Store, a.Runner, a.Hub, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			l.Warn("Server shutdown failed", zap.Error(err))
		}
	}()

	l.Info("Portal mail server starting",
		zap.String("address", server.Addr),
		zap.String("environment", cfg.Environment))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}

// Directory is the store surface the HTTP layer needs.
type Directory interface {
	auth.AdminLookup
	api.ReplyLister
}

// NewServer creates and returns a new HTTP handler for the portal mail API.
func NewServer(cfg *config.Config, store Directory, poller api.Poller, hub *ws.Hub, l *zap.Logger) http.Handler {
	requireAdmin := auth.RequireAdmin(store, l)

	pollHandler := api.NewPollHandler(poller, store, l)
	wsHandler := api.NewWebSocketHandler(hub, l)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/mail/poll", requireAdmin(http.HandlerFunc(pollHandler.Poll)))
	mux.Handle("/api/v1/ws", requireAdmin(http.HandlerFunc(wsHandler.Handle)))
	mux.Handle("/metrics", promhttp.Handler())

	// Stored attachments are served from disk when the file backend has a local URL.
	if cfg.AttachmentBackend == config.AttachmentBackendFile && strings.HasPrefix(cfg.AttachmentBaseURL, "/") {
		prefix := strings.TrimRight(cfg.AttachmentBaseURL, "/") + "/"
		mux.Handle(prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.AttachmentDir))))
	}

	return mux
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Portal mail API is running")
}
