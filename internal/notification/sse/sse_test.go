package sse

import (
	"context"
	"sync"
	"testing"
	"time"

	"engagement_backend/internal/events"
	"engagement_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type recorder struct {
	mu  sync.Mutex
	got map[uuid.UUID][]Event
	hit chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: map[uuid.UUID][]Event{}, hit: make(chan struct{}, 16)}
}

func (r *recorder) Publish(userID uuid.UUID, event Event) {
	r.mu.Lock()
	r.got[userID] = append(r.got[userID], event)
	r.mu.Unlock()
	r.hit <- struct{}{}
}

func (r *recorder) events(userID uuid.UUID) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.got[userID]...)
}

func TestPublishReachesOnlyTheOwner(t *testing.T) {
	svc := New(logger.New("development"))
	owner, other := uuid.New(), uuid.New()
	a := &client{userID: owner, events: make(chan Event, 1)}
	b := &client{userID: other, events: make(chan Event, 1)}
	svc.addClient(a)
	svc.addClient(b)

	svc.Publish(owner, Event{Type: EventAlertCreated})

	select {
	case ev := <-a.events:
		if ev.Type != EventAlertCreated {
			t.Fatalf("type = %s", ev.Type)
		}
	default:
		t.Fatal("owner did not receive the event")
	}
	if len(b.events) != 0 {
		t.Fatal("event leaked to another user")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	svc := New(logger.New("development"))
	userID := uuid.New()
	c := &client{userID: userID, events: make(chan Event, 1)}
	svc.addClient(c)

	svc.Publish(userID, Event{Type: EventReminderSent})
	svc.Publish(userID, Event{Type: EventReminderSent})

	if len(c.events) != 1 {
		t.Fatalf("buffered %d events", len(c.events))
	}
	svc.removeClient(c)
	if svc.ClientCount(userID) != 0 {
		t.Fatal("client not removed")
	}
}

func TestCloseRefusesNewClients(t *testing.T) {
	svc := New(logger.New("development"))
	svc.Close()
	if svc.addClient(&client{userID: uuid.New(), events: make(chan Event, 1)}) {
		t.Fatal("closed service accepted a client")
	}
}

func TestProjectorMapsDomainEvents(t *testing.T) {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	rec := newRecorder()
	NewProjector(rec).RegisterHandlers(bus)
	userID, leadID := uuid.New(), uuid.New()

	ctx := context.Background()
	_ = bus.PublishSync(ctx, events.AppointmentConfirmationChanged{BaseEvent: events.NewBaseEvent(), UserID: userID, AppointmentID: uuid.New(), From: "pending", To: "confirmed", Actor: "client"})
	_ = bus.PublishSync(ctx, events.ReminderDispatched{BaseEvent: events.NewBaseEvent(), UserID: userID, Kind: "24h", Channel: "whatsapp"})
	_ = bus.PublishSync(ctx, events.AlertCreated{BaseEvent: events.NewBaseEvent(), UserID: userID, Kind: "conflict"})
	_ = bus.PublishSync(ctx, events.LeadScoreUpdated{BaseEvent: events.NewBaseEvent(), UserID: userID, LeadID: leadID, Score: 4.5})

	got := rec.events(userID)
	want := []EventType{EventConfirmationChanged, EventReminderSent, EventAlertCreated, EventLeadScoreUpdated}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("event %d = %s, want %s", i, got[i].Type, w)
		}
	}
	if got[3].LeadID == nil || *got[3].LeadID != leadID {
		t.Fatal("score event lost its lead id")
	}
}

func TestRedisRelayForwardsToLocalStreams(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	log := logger.New("development")
	relay := NewRedisRelay(client, "test:realtime", log)
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Forward(ctx, rec) }()

	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub("test:realtime")["test:realtime"] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	userID := uuid.New()
	relay.Publish(userID, Event{Type: EventAlertCreated, Data: map[string]any{"kind": "frustrated"}})

	select {
	case <-rec.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("relayed event not forwarded")
	}
	if got := rec.events(userID); len(got) != 1 || got[0].Type != EventAlertCreated {
		t.Fatalf("forwarded %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not stop")
	}
}
