package scheduler

import (
	"context"
	"time"

	"engagement_backend/platform/logger"
)

const defaultScoreRefreshInterval = time.Hour

// Enqueuer schedules the periodic tasks.
type Enqueuer interface {
	EnqueueReminderPass(ctx context.Context, at time.Time, interval time.Duration) (bool, error)
	EnqueueScoreRefresh(ctx context.Context, at time.Time, interval time.Duration) (bool, error)
}

// Ticker enqueues a reminder pass every interval and a score refresh every
// refresh interval. Several tickers may run; asynq keeps one task per slot.
type Ticker struct {
	enqueuer        Enqueuer
	log             *logger.Logger
	interval        time.Duration
	refreshInterval time.Duration
	now             func() time.Time
}

func NewTicker(enqueuer Enqueuer, interval time.Duration, log *logger.Logger) *Ticker {
	return &Ticker{
		enqueuer:        enqueuer,
		log:             log.WithComponent("scheduler.ticker"),
		interval:        interval,
		refreshInterval: defaultScoreRefreshInterval,
		now:             time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	if t == nil || t.enqueuer == nil || t.interval <= 0 {
		return
	}

	t.enqueuePass(ctx)
	t.enqueueRefresh(ctx)

	passes := time.NewTicker(t.interval)
	defer passes.Stop()
	refreshes := time.NewTicker(t.refreshInterval)
	defer refreshes.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-passes.C:
			t.enqueuePass(ctx)
		case <-refreshes.C:
			t.enqueueRefresh(ctx)
		}
	}
}

func (t *Ticker) enqueuePass(ctx context.Context) {
	enqueued, err := t.enqueuer.EnqueueReminderPass(ctx, t.now(), t.interval)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("reminder pass enqueue failed", "error", err)
		}
		return
	}
	if !enqueued {
		t.log.Debug("reminder pass already enqueued for this slot")
	}
}

func (t *Ticker) enqueueRefresh(ctx context.Context) {
	if _, err := t.enqueuer.EnqueueScoreRefresh(ctx, t.now(), t.refreshInterval); err != nil && ctx.Err() == nil {
		t.log.Warn("score refresh enqueue failed", "error", err)
	}
}
