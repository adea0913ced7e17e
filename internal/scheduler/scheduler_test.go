package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"engagement_backend/internal/reminders/transport"
	"engagement_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/goleak"
)

type countingEnqueuer struct {
	mu        sync.Mutex
	passes    int
	refreshes int
	fired     chan struct{}
}

func (e *countingEnqueuer) EnqueueReminderPass(context.Context, time.Time, time.Duration) (bool, error) {
	e.mu.Lock()
	e.passes++
	e.mu.Unlock()
	select {
	case e.fired <- struct{}{}:
	default:
	}
	return true, nil
}

func (e *countingEnqueuer) EnqueueScoreRefresh(context.Context, time.Time, time.Duration) (bool, error) {
	e.mu.Lock()
	e.refreshes++
	e.mu.Unlock()
	return true, nil
}

func TestTickerStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	enq := &countingEnqueuer{fired: make(chan struct{}, 8)}
	ticker := NewTicker(enq, 10*time.Millisecond, logger.New("development"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-enq.fired:
		case <-time.After(time.Second):
			t.Fatal("ticker did not enqueue")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}

	enq.mu.Lock()
	defer enq.mu.Unlock()
	if enq.passes < 3 || enq.refreshes != 1 {
		t.Fatalf("passes=%d refreshes=%d", enq.passes, enq.refreshes)
	}
}

func TestTickerWithoutIntervalReturns(t *testing.T) {
	defer goleak.VerifyNone(t)
	NewTicker(&countingEnqueuer{fired: make(chan struct{}, 1)}, 0, logger.New("development")).Run(context.Background())
}

func TestEnqueueReminderPassIsUniquePerSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := newClient(asynq.RedisClientOpt{Addr: mr.Addr()}, "reminders")
	defer client.Close()

	ctx := context.Background()
	at := time.Date(2026, 1, 30, 12, 1, 0, 0, time.UTC)

	first, err := client.EnqueueReminderPass(ctx, at, 5*time.Minute)
	if err != nil || !first {
		t.Fatalf("first enqueue = %v, %v", first, err)
	}
	second, err := client.EnqueueReminderPass(ctx, at.Add(2*time.Minute), 5*time.Minute)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if second {
		t.Fatal("a second pass was enqueued for the same slot")
	}
	next, err := client.EnqueueReminderPass(ctx, at.Add(5*time.Minute), 5*time.Minute)
	if err != nil || !next {
		t.Fatalf("next slot enqueue = %v, %v", next, err)
	}
}

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) RunPass(context.Context, time.Time) (transport.PassResult, error) {
	f.calls++
	return transport.PassResult{Scanned: 2, Sent: 1, Skipped: 1}, f.err
}

type fakeRefresher struct {
	maxAge time.Duration
	limit  int
}

func (f *fakeRefresher) RefreshStale(_ context.Context, maxAge time.Duration, limit int) (int, error) {
	f.maxAge, f.limit = maxAge, limit
	return 3, nil
}

func TestWorkerRunsReminderPass(t *testing.T) {
	runner := &fakeRunner{}
	w := newWorker(runner, &fakeRefresher{}, logger.New("development"))

	task, err := NewReminderPassTask(ReminderPassPayload{Slot: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("RunPass called %d times", runner.calls)
	}

	runner.err = errors.New("db down")
	if err := w.mux.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected pass error to surface for retry")
	}
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	w := newWorker(&fakeRunner{}, &fakeRefresher{}, logger.New("development"))
	err := w.mux.ProcessTask(context.Background(), asynq.NewTask(TaskReminderPass, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestWorkerRefreshesStaleScores(t *testing.T) {
	refresher := &fakeRefresher{}
	w := newWorker(&fakeRunner{}, refresher, logger.New("development"))

	task, err := NewScoreRefreshTask(ScoreRefreshPayload{MaxAge: "24h0m0s", Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if refresher.maxAge != 24*time.Hour || refresher.limit != 50 {
		t.Fatalf("refresh args = %v, %d", refresher.maxAge, refresher.limit)
	}
}
