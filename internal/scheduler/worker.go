package scheduler

import (
	"context"
	"fmt"
	"time"

	"engagement_backend/internal/reminders/transport"
	"engagement_backend/platform/config"
	"engagement_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ReminderRunner runs one reminder pass.
type ReminderRunner interface {
	RunPass(ctx context.Context, now time.Time) (transport.PassResult, error)
}

// ScoreRefresher rescores leads whose score went stale.
type ScoreRefresher interface {
	RefreshStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	reminders ReminderRunner
	scores    ScoreRefresher
	log       *logger.Logger
	now       func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, reminders ReminderRunner, scores ScoreRefresher, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	w := newWorker(reminders, scores, log)
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		Logger: newAsynqLogger(w.log),
	})
	return w, nil
}

func newWorker(reminders ReminderRunner, scores ScoreRefresher, log *logger.Logger) *Worker {
	w := &Worker{
		mux:       asynq.NewServeMux(),
		reminders: reminders,
		scores:    scores,
		log:       log.WithComponent("scheduler.worker"),
		now:       time.Now,
	}
	w.mux.HandleFunc(TaskReminderPass, w.handleReminderPass)
	w.mux.HandleFunc(TaskScoreRefresh, w.handleScoreRefresh)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleReminderPass(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReminderPassPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	started := w.now()
	result, err := w.reminders.RunPass(ctx, started)
	if err != nil {
		return err
	}
	w.log.Info("reminder pass finished",
		"slot", payload.Slot,
		"scanned", result.Scanned,
		"sent", result.Sent,
		"failed", result.Failed,
		"noResponse", result.NoResponse,
		"skipped", result.Skipped,
		"duration", time.Since(started),
	)
	return nil
}

func (w *Worker) handleScoreRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreRefreshPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	maxAge, err := time.ParseDuration(payload.MaxAge)
	if err != nil || maxAge <= 0 {
		return fmt.Errorf("%w: invalid max age %q", asynq.SkipRetry, payload.MaxAge)
	}

	refreshed, err := w.scores.RefreshStale(ctx, maxAge, payload.Limit)
	if err != nil {
		return err
	}
	if refreshed > 0 {
		w.log.Info("stale scores refreshed", "count", refreshed)
	}
	return nil
}

// asynqLogger routes asynq's internal logging through the application logger.
type asynqLogger struct {
	log *logger.Logger
}

func newAsynqLogger(log *logger.Logger) asynqLogger {
	return asynqLogger{log: log}
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
