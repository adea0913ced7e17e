package service

import (
	"context"
	"testing"
	"time"

	"engagement_backend/internal/activity/repository"
	"engagement_backend/internal/activity/transport"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	inserted []repository.Entry
	lastList repository.ListParams
}

func (f *fakeStore) Insert(_ context.Context, e *repository.Entry) error {
	f.inserted = append(f.inserted, *e)
	return nil
}

func (f *fakeStore) List(_ context.Context, p repository.ListParams) ([]repository.Entry, error) {
	f.lastList = p
	return f.inserted, nil
}

func TestRecordConfirmationWritesUserAction(t *testing.T) {
	store := &fakeStore{}
	svc := New(store)
	leadID := uuid.New()

	err := svc.RecordConfirmation(context.Background(), uuid.New(), &leadID, "Agendamento confirmado manualmente", map[string]interface{}{"to": "confirmed"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.inserted))
	}
	got := store.inserted[0]
	if got.ActionType != ActionConfirmation || got.ExecutedBy != ExecutedByUser {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestListTranslatesRangeAndLead(t *testing.T) {
	store := &fakeStore{}
	svc := New(store)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	leadID := uuid.New()

	_, err := svc.List(context.Background(), uuid.New(), transport.ListActivityRequest{LeadID: leadID.String(), Range: "48h"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.lastList.Since == nil || !store.lastList.Since.Equal(now.Add(-48*time.Hour)) {
		t.Fatalf("expected since 48h ago, got %v", store.lastList.Since)
	}
	if store.lastList.LeadID == nil || *store.lastList.LeadID != leadID {
		t.Fatalf("expected lead filter")
	}
	if store.lastList.Limit != defaultLimit {
		t.Fatalf("expected default limit, got %d", store.lastList.Limit)
	}
}

func TestListRejectsUnknownRange(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.List(context.Background(), uuid.New(), transport.ListActivityRequest{Range: "30d"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
