package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"engagement_backend/internal/events"
	"engagement_backend/internal/leads/repository"
	"engagement_backend/internal/leads/scoring"
	"engagement_backend/internal/leads/transport"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]repository.Lead
	signals    scoring.Signals
	lostRaces  int
	followUps  []string
	followFlag map[uuid.UUID]bool
	statuses   map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:      map[uuid.UUID]repository.Lead{},
		followFlag: map[uuid.UUID]bool{},
		statuses:   map[uuid.UUID]string{},
	}
}

func (f *fakeStore) Create(_ context.Context, l *repository.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[l.ID] = *l
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id, userID uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.UserID != userID {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return l, nil
}

func (f *fakeStore) List(context.Context, uuid.UUID, *string, bool, int) ([]repository.Lead, error) {
	return nil, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id, _ uuid.UUID, status string, onlyAutomatic bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || (onlyAutomatic && l.ManualOverride) {
		return false, nil
	}
	l.Status = status
	f.leads[id] = l
	f.statuses[id] = status
	return true, nil
}

func (f *fakeStore) SetManualOverride(_ context.Context, id, _ uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leads[id]
	l.ManualOverride = enabled
	f.leads[id] = l
	return nil
}

func (f *fakeStore) MarkNeedsFollowUp(_ context.Context, id, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followFlag[id] = true
	return nil
}

func (f *fakeStore) RecordMessage(context.Context, repository.Message) error { return nil }

func (f *fakeStore) RecordSentiment(context.Context, uuid.UUID, uuid.UUID, string, string) error {
	return nil
}

func (f *fakeStore) Signals(_ context.Context, leadID, _ uuid.UUID) (scoring.Signals, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signals, f.leads[leadID].ScoreVersion, nil
}

func (f *fakeStore) UpdateScore(_ context.Context, leadID, _ uuid.UUID, score float64, version int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leads[leadID]
	if f.lostRaces > 0 {
		f.lostRaces--
		l.ScoreVersion++
		l.PriorityScore = 9.99
		f.leads[leadID] = l
		return false, nil
	}
	if l.ScoreVersion != version {
		return false, nil
	}
	l.PriorityScore = score
	l.ScoreVersion++
	f.leads[leadID] = l
	return true, nil
}

func (f *fakeStore) RecordFollowUp(_ context.Context, leadID, _ uuid.UUID, message string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = append(f.followUps, message)
	f.followFlag[leadID] = false
	return nil
}

func (f *fakeStore) ListFollowUps(context.Context, uuid.UUID, uuid.UUID) ([]repository.FollowUp, error) {
	return nil, nil
}

func (f *fakeStore) ListStaleScores(context.Context, time.Time, int) ([]repository.LeadRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]repository.LeadRef, 0, len(f.leads))
	for id, l := range f.leads {
		refs = append(refs, repository.LeadRef{LeadID: id, UserID: l.UserID})
	}
	return refs, nil
}

func newTestService(store *fakeStore) (*Service, *events.InMemoryBus) {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	svc := New(store, bus, log, "BR")
	svc.now = func() time.Time { return fixedNow }
	return svc, bus
}

func seedLead(store *fakeStore, userID uuid.UUID) uuid.UUID {
	id := uuid.New()
	store.leads[id] = repository.Lead{ID: id, UserID: userID, Name: "Ana", Status: "interested"}
	return id
}

func TestRecomputeOverwritesScore(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	leadID := seedLead(store, userID)
	last := fixedNow.Add(-72 * time.Hour)
	store.signals = scoring.Signals{Sentiment: "frustrated", LastInteraction: &last, MessageCount: 12}
	svc, _ := newTestService(store)

	resp, err := svc.Recompute(context.Background(), userID, leadID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if resp.Score != 5.7 || store.leads[leadID].PriorityScore != 5.7 {
		t.Fatalf("expected 5.7, got %v (stored %v)", resp.Score, store.leads[leadID].PriorityScore)
	}

	store.signals = scoring.Signals{Sentiment: "neutral"}
	resp, _ = svc.Recompute(context.Background(), userID, leadID)
	if resp.Score != 3.5 {
		t.Fatalf("expected the score to be overwritten with 3.5, got %v", resp.Score)
	}
}

func TestRecomputeRetriesOnceAfterLostRace(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	leadID := seedLead(store, userID)
	store.signals = scoring.Signals{Sentiment: "neutral"}
	store.lostRaces = 1
	svc, _ := newTestService(store)

	resp, err := svc.Recompute(context.Background(), userID, leadID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if resp.Score != 3.5 {
		t.Fatalf("expected retry to store 3.5, got %v", resp.Score)
	}
}

func TestRecomputeKeepsWinnerAfterTwoLostRaces(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	leadID := seedLead(store, userID)
	store.lostRaces = 2
	svc, _ := newTestService(store)

	resp, err := svc.Recompute(context.Background(), userID, leadID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if resp.Score != 9.99 {
		t.Fatalf("expected the concurrent writer's score, got %v", resp.Score)
	}
}

func TestMessageRecordedTriggersRecompute(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	leadID := seedLead(store, userID)
	store.signals = scoring.Signals{Sentiment: "neutral"}
	svc, bus := newTestService(store)
	svc.RegisterHandlers(bus)

	if err := svc.RecordMessage(context.Background(), userID, leadID, DirectionInbound, "oi", time.Time{}); err != nil {
		t.Fatalf("record message: %v", err)
	}
	bus.Wait()

	if store.leads[leadID].PriorityScore != 3.5 {
		t.Fatalf("expected score 3.5 after message, got %v", store.leads[leadID].PriorityScore)
	}
}

func TestRecordMessageRejectsUnknownDirection(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	err := svc.RecordMessage(context.Background(), uuid.New(), uuid.New(), "sideways", "oi", time.Time{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeStatusAcceptsLegacyLabels(t *testing.T) {
	cases := map[string]transport.LeadStatus{
		"Interessado": transport.LeadStatusInterested,
		"Agendado":    transport.LeadStatusScheduled,
		"Convertido":  transport.LeadStatusConverted,
		"Finalizado":  transport.LeadStatusConverted,
		" scheduled ": transport.LeadStatusScheduled,
	}
	for raw, want := range cases {
		got, ok := NormalizeStatus(raw)
		if !ok || got != want {
			t.Fatalf("%q: expected %s, got %s (ok=%v)", raw, want, got, ok)
		}
	}
	if _, ok := NormalizeStatus("Perdido"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestAppointmentCreatedRespectsManualOverride(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	free := seedLead(store, userID)
	pinned := seedLead(store, userID)
	l := store.leads[pinned]
	l.ManualOverride = true
	store.leads[pinned] = l

	svc, _ := newTestService(store)
	ctx := context.Background()
	for _, id := range []uuid.UUID{free, pinned} {
		leadID := id
		if err := svc.onAppointmentCreated(ctx, events.AppointmentCreated{UserID: userID, LeadID: &leadID}); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}

	if store.leads[free].Status != "scheduled" {
		t.Fatalf("expected free lead to become scheduled, got %s", store.leads[free].Status)
	}
	if store.leads[pinned].Status != "interested" {
		t.Fatalf("expected pinned lead to keep its status, got %s", store.leads[pinned].Status)
	}
}

func TestCancellationQueuesFollowUp(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	leadID := seedLead(store, userID)
	svc, _ := newTestService(store)

	err := svc.onConfirmationChanged(context.Background(), events.AppointmentConfirmationChanged{
		UserID: userID, LeadID: &leadID, From: "pending", To: "cancelled",
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !store.followFlag[leadID] {
		t.Fatalf("expected lead to need follow-up")
	}

	if _, err := svc.SendFollowUp(context.Background(), userID, leadID, "Podemos remarcar?"); err != nil {
		t.Fatalf("send follow-up: %v", err)
	}
	if store.followFlag[leadID] || len(store.followUps) != 1 {
		t.Fatalf("expected follow-up recorded and flag cleared")
	}
}
