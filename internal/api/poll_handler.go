// Package api serves the portal's mail endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Christianjames01/repo-sub000/internal/imap"
	"github.com/Christianjames01/repo-sub000/internal/ingest"
	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/Christianjames01/repo-sub000/internal/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxPollBody bounds the poll request body.
const maxPollBody = 1 << 20

// Poller runs a serialized ingestion pass.
type Poller interface {
	RunOnce(ctx context.Context, trigger string) (*ingest.PassResult, error)
}

// ReplyLister loads the replies of a thread.
type ReplyLister interface {
	GetRepliesForThread(ctx context.Context, threadID string) ([]*models.Reply, error)
}

// PollHandler handles POST /api/v1/mail/poll: the dashboard's "check for
// replies" button.
type PollHandler struct {
	poller  Poller
	replies ReplyLister
	logger  *zap.Logger
}

// NewPollHandler creates a new PollHandler instance.
func NewPollHandler(poller Poller, replies ReplyLister, logger *zap.Logger) *PollHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollHandler{
		poller:  poller,
		replies: replies,
		logger:  logger.Named("api.poll"),
	}
}

type pollRequest struct {
	ThreadID      string   `json:"thread_id"`
	KnownReplyIDs []string `json:"known_reply_ids"`
}

// passSummary is the raw outcome of the ingestion pass.
type passSummary struct {
	Success   bool             `json:"success"`
	Processed int              `json:"processed"`
	Skipped   string           `json:"skipped,omitempty"`
	Tally     ingest.Tally     `json:"tally"`
	Outcomes  []ingest.Outcome `json:"outcomes"`
}

type pollResponse struct {
	Success    bool                  `json:"success"`
	Processed  int                   `json:"processed"`
	NewReplies []models.ReplySummary `json:"newReplies"`
	IMAPResult *passSummary          `json:"imapResult,omitempty"`
	Error      string                `json:"error,omitempty"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Error     string `json:"error"`
}

// Poll runs a pass and returns the replies the dashboard has not seen yet.
// With a thread_id those are the thread's replies missing from
// known_reply_ids; without one they are the replies stored by this pass.
// A pass that is already running or ran moments ago is not an error: the
// thread's stored replies are still returned.
func (h *PollHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"}, h.logger)
		return
	}

	var req pollRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPollBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"}, h.logger)
		return
	}
	if req.ThreadID != "" {
		if _, err := uuid.Parse(req.ThreadID); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid thread_id"}, h.logger)
			return
		}
	}

	ctx := r.Context()
	summary := &passSummary{Success: true, Outcomes: []ingest.Outcome{}}

	result, err := h.poller.RunOnce(ctx, scheduler.TriggerForeground)
	switch {
	case errors.Is(err, scheduler.ErrBusy), errors.Is(err, scheduler.ErrTooSoon):
		summary.Skipped = err.Error()
	case err != nil:
		processed := 0
		if result != nil {
			processed = result.Processed()
		}
		h.logger.Error("poll pass failed", zap.Error(err), zap.Int("processed", processed))
		writeJSON(w, statusForPassError(err), errorResponse{Processed: processed, Error: err.Error()}, h.logger)
		return
	default:
		summary.Processed = result.Processed()
		summary.Tally = result.Tally
		summary.Outcomes = result.Outcomes
	}

	if req.ThreadID == "" {
		newReplies := []models.ReplySummary{}
		if result != nil {
			newReplies = summarize(result.Replies(), nil)
		}
		writeJSON(w, http.StatusOK, pollResponse{
			Success:    true,
			Processed:  summary.Processed,
			NewReplies: newReplies,
		}, h.logger)
		return
	}

	replies, err := h.replies.GetRepliesForThread(ctx, req.ThreadID)
	if err != nil {
		h.logger.Error("failed to load thread replies", zap.String("thread_id", req.ThreadID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Processed: summary.Processed, Error: "failed to load thread replies"}, h.logger)
		return
	}

	known := make(map[string]struct{}, len(req.KnownReplyIDs))
	for _, id := range req.KnownReplyIDs {
		known[id] = struct{}{}
	}

	writeJSON(w, http.StatusOK, pollResponse{
		Success:    true,
		Processed:  summary.Processed,
		NewReplies: summarize(replies, known),
		IMAPResult: summary,
	}, h.logger)
}

// summarize converts replies to summaries, leaving out known ids. Never nil.
func summarize(replies []*models.Reply, known map[string]struct{}) []models.ReplySummary {
	out := make([]models.ReplySummary, 0, len(replies))
	for _, reply := range replies {
		if _, ok := known[reply.ID]; ok {
			continue
		}
		out = append(out, reply.Summary())
	}
	return out
}

func statusForPassError(err error) int {
	var cfgErr *imap.ConfigurationError
	var connErr *imap.ConnectionError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &connErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
