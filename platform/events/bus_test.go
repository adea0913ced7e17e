package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"engagement_backend/platform/logger"

	"go.uber.org/goleak"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncRunsEveryHandlerAndJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	var calls int32
	boom := errors.New("boom")
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return boom
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestPublishSyncRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		panic("kaboom")
	}))

	if err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()}); err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestPublishDeliversAsyncAndSurvivesCancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewInMemoryBus(logger.New("development"))
	var seen int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		atomic.AddInt32(&seen, 1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if seen != 1 {
		t.Fatalf("expected handler to run once with a live context, got %d", seen)
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()
	if err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
