// Package scheduler serializes the triggers of mailbox passes: the
// foreground poll request and the periodic background check.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/ingest"
	"github.com/Christianjames01/repo-sub000/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrBusy means another pass holds the lock.
	ErrBusy = errors.New("scheduler: a pass is already running")

	// ErrTooSoon means the previous pass started less than the minimum interval ago.
	ErrTooSoon = errors.New("scheduler: last pass was too recent")
)

// Trigger names used in logs and metrics.
const (
	TriggerForeground = "foreground"
	TriggerScheduled  = "scheduled"
)

// Pass runs one ingestion pass.
type Pass interface {
	RunPass(ctx context.Context) (*ingest.PassResult, error)
}

// Options tune a Runner.
type Options struct {
	// MinInterval is the minimum time between the starts of two passes.
	MinInterval time.Duration
	// Timeout bounds a single pass. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

// Runner runs passes one at a time.
type Runner struct {
	pass    Pass
	locker  Locker
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
	lastRun time.Time
}

// NewRunner creates a Runner. A nil locker serializes within the process only.
func NewRunner(pass Pass, locker Locker, opts Options, logger *zap.Logger) *Runner {
	if locker == nil {
		locker = &LocalLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		pass:   pass,
		locker: locker,
		opts:   opts,
		logger: logger.Named("scheduler"),
		now:    time.Now,
	}
}

// RunOnce runs a pass unless one is running (ErrBusy) or the last one
// started too recently (ErrTooSoon).
func (r *Runner) RunOnce(ctx context.Context, trigger string) (*ingest.PassResult, error) {
	unlock, ok, err := r.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.RecordTriggerRejected(trigger, "busy")
		return nil, ErrBusy
	}
	defer unlock()

	if !r.claim() {
		metrics.RecordTriggerRejected(trigger, "too_soon")
		return nil, ErrTooSoon
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	r.logger.Debug("running pass", zap.String("trigger", trigger))

	result, err := r.pass.RunPass(ctx)
	if errors.Is(err, ingest.ErrPassInProgress) {
		metrics.RecordTriggerRejected(trigger, "busy")
		return nil, ErrBusy
	}
	return result, err
}

// claim records a pass start if the minimum interval has elapsed.
func (r *Runner) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.lastRun.IsZero() && now.Sub(r.lastRun) < r.opts.MinInterval {
		return false
	}
	r.lastRun = now
	return true
}

// Start runs a pass every interval until ctx is done. Rejected and failed
// passes are logged; the loop keeps going.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("scheduled polling started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduled polling stopped")
			return
		case <-ticker.C:
			result, err := r.RunOnce(ctx, TriggerScheduled)
			switch {
			case errors.Is(err, ErrBusy), errors.Is(err, ErrTooSoon):
				r.logger.Debug("scheduled pass skipped", zap.Error(err))
			case err != nil:
				r.logger.Error("scheduled pass failed", zap.Error(err))
			default:
				r.logger.Info("scheduled pass completed", zap.Int("processed", result.Processed()))
			}
		}
	}
}
