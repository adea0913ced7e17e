package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"engagement_backend/internal/events"
	"engagement_backend/internal/reminders/delivery"
	"engagement_backend/internal/reminders/domain"
	"engagement_backend/internal/reminders/repository"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
)

var apptStart = time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)

type fakeAppointment struct {
	id      uuid.UUID
	userID  uuid.UUID
	start   time.Time
	pending bool
	name    string
	phone   string
}

type fakeStore struct {
	mu          sync.Mutex
	appts       []*fakeAppointment
	dispatches  []repository.Dispatch
	templates   map[uuid.UUID]map[domain.Kind]string
	settings    map[uuid.UUID]domain.Settings
	settingsErr error
}

func newFakeStore(appts ...*fakeAppointment) *fakeStore {
	return &fakeStore{
		appts:     appts,
		templates: map[uuid.UUID]map[domain.Kind]string{},
		settings:  map[uuid.UUID]domain.Settings{},
	}
}

func (f *fakeStore) ListPending(_ context.Context, before time.Time, limit int) ([]repository.PendingAppointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.PendingAppointment{}
	for _, a := range f.appts {
		if !a.pending || !a.start.Before(before) || len(out) >= limit {
			continue
		}
		dispatched := map[domain.Kind]bool{}
		for _, d := range f.dispatches {
			if d.AppointmentID == a.id {
				dispatched[d.Kind] = true
			}
		}
		name, phone := a.name, a.phone
		out = append(out, repository.PendingAppointment{
			ID: a.id, UserID: a.userID, StartAt: a.start,
			LeadName: &name, LeadPhone: &phone, Dispatched: dispatched,
		})
	}
	return out, nil
}

func (f *fakeStore) RecordDispatch(_ context.Context, d repository.Dispatch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.dispatches {
		if existing.AppointmentID == d.AppointmentID && existing.Kind == d.Kind {
			return false, nil
		}
	}
	f.dispatches = append(f.dispatches, d)
	return true, nil
}

func (f *fakeStore) ListTemplates(_ context.Context, userID uuid.UUID) (map[domain.Kind]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[domain.Kind]string{}
	for k, v := range f.templates[userID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SaveTemplate(_ context.Context, userID uuid.UUID, kind domain.Kind, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.templates[userID] == nil {
		f.templates[userID] = map[domain.Kind]string{}
	}
	f.templates[userID][kind] = body
	return nil
}

func (f *fakeStore) GetSettings(_ context.Context, userID uuid.UUID) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return domain.Settings{}, f.settingsErr
	}
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	return domain.DefaultSettings(), nil
}

func (f *fakeStore) SaveSettings(_ context.Context, userID uuid.UUID, s domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[userID] = s
	return nil
}

func (f *fakeStore) kinds(id uuid.UUID) []domain.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Kind
	for _, d := range f.dispatches {
		if d.AppointmentID == id {
			out = append(out, d.Kind)
		}
	}
	return out
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	block bool
	texts []string
}

func (f *fakeSender) Send(ctx context.Context, _ delivery.Recipient, text string) (string, error) {
	if f.block {
		<-ctx.Done()
		return delivery.ChannelWhatsApp, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return delivery.ChannelWhatsApp, f.err
	}
	f.texts = append(f.texts, text)
	return delivery.ChannelWhatsApp, nil
}

type fakeMarker struct {
	store *fakeStore
	err   error
	calls int
}

func (m *fakeMarker) MarkNoResponse(_ context.Context, _, id uuid.UUID) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, a := range m.store.appts {
		if a.id == id {
			a.pending = false
		}
	}
	return nil
}

func newAppointment() *fakeAppointment {
	return &fakeAppointment{id: uuid.New(), userID: uuid.New(), start: apptStart, pending: true, name: "Ana", phone: "+5511987654321"}
}

func newTestService(store *fakeStore, sender *fakeSender, opts Options) (*Service, *fakeMarker) {
	log := logger.New("development")
	marker := &fakeMarker{store: store}
	svc := New(store, sender, marker, events.NewInMemoryBus(log), log, time.UTC, opts)
	return svc, marker
}

func TestFullReminderLifecycle(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	sender := &fakeSender{}
	svc, marker := newTestService(store, sender, Options{})
	ctx := context.Background()

	res, err := svc.RunPass(ctx, apptStart.Add(-23*time.Hour))
	if err != nil || res.Sent != 1 {
		t.Fatalf("first pass: %+v %v", res, err)
	}
	res, _ = svc.RunPass(ctx, apptStart.Add(-20*time.Hour))
	if res.Sent != 0 {
		t.Fatalf("24h reminder was sent twice")
	}
	res, _ = svc.RunPass(ctx, apptStart.Add(-time.Hour))
	if res.Sent != 1 {
		t.Fatalf("expected 2h reminder, got %+v", res)
	}
	res, _ = svc.RunPass(ctx, apptStart.Add(time.Minute))
	if res.NoResponse != 1 || marker.calls != 1 {
		t.Fatalf("expected no_response transition, got %+v", res)
	}
	res, _ = svc.RunPass(ctx, apptStart.Add(time.Hour))
	if res.Scanned != 0 {
		t.Fatalf("appointment should no longer be pending")
	}

	kinds := store.kinds(appt.id)
	if len(kinds) != 2 || kinds[0] != domain.Kind24h || kinds[1] != domain.Kind2h {
		t.Fatalf("unexpected dispatches %v", kinds)
	}
	if !strings.Contains(sender.texts[0], "Olá Ana") {
		t.Fatalf("unexpected rendered text %q", sender.texts[0])
	}
}

func TestLateAppointmentGetsOnly2h(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, Options{})

	_, _ = svc.RunPass(context.Background(), apptStart.Add(-90*time.Minute))

	kinds := store.kinds(appt.id)
	if len(kinds) != 1 || kinds[0] != domain.Kind2h {
		t.Fatalf("expected only 2h dispatch, got %v", kinds)
	}

	for _, before := range []time.Duration{60 * time.Minute, 30 * time.Minute, time.Minute} {
		res, _ := svc.RunPass(context.Background(), apptStart.Add(-before))
		if res.Sent != 0 {
			t.Fatalf("pass %v before start sent %d reminders", before, res.Sent)
		}
	}
	if kinds := store.kinds(appt.id); len(kinds) != 1 || kinds[0] != domain.Kind2h {
		t.Fatalf("24h reminder must never be sent late, got %v", kinds)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("expected a single message, got %d", len(sender.texts))
	}
}

func TestFailedDeliveryIsRetriedNextPass(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	sender := &fakeSender{err: errors.New("gateway down")}
	svc, _ := newTestService(store, sender, Options{})

	res, err := svc.RunPass(context.Background(), apptStart.Add(-23*time.Hour))
	if err != nil || res.Failed != 1 || len(store.kinds(appt.id)) != 0 {
		t.Fatalf("expected failure without record: %+v %v", res, err)
	}

	sender.err = nil
	res, _ = svc.RunPass(context.Background(), apptStart.Add(-22*time.Hour))
	if res.Sent != 1 || len(store.kinds(appt.id)) != 1 {
		t.Fatalf("expected retry to succeed: %+v", res)
	}
}

func TestSendTimeoutCountsAsFailure(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	svc, _ := newTestService(store, &fakeSender{block: true}, Options{SendTimeout: 10 * time.Millisecond})

	res, err := svc.RunPass(context.Background(), apptStart.Add(-23*time.Hour))
	if err != nil || res.Failed != 1 || len(store.kinds(appt.id)) != 0 {
		t.Fatalf("expected timeout failure: %+v %v", res, err)
	}
}

func TestDisabledRemindersAreSkipped(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	store.settings[appt.userID] = domain.Settings{AutomaticRemindersEnabled: false}
	sender := &fakeSender{}
	svc, marker := newTestService(store, sender, Options{})

	res, _ := svc.RunPass(context.Background(), apptStart.Add(-time.Hour))
	if res.Skipped != 1 || len(sender.texts) != 0 {
		t.Fatalf("expected skip, got %+v", res)
	}

	res, _ = svc.RunPass(context.Background(), apptStart.Add(time.Minute))
	if res.NoResponse != 1 || marker.calls != 1 {
		t.Fatalf("no_response must still apply when reminders are off: %+v", res)
	}
}

func TestReopenedAppointmentIsNotRemindedAgain(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, Options{})
	ctx := context.Background()

	_, _ = svc.RunPass(ctx, apptStart.Add(-23*time.Hour))
	// Confirmed then reopened: back to pending with the 24h dispatch on record.
	appt.pending = false
	_, _ = svc.RunPass(ctx, apptStart.Add(-22*time.Hour))
	appt.pending = true
	res, _ := svc.RunPass(ctx, apptStart.Add(-21*time.Hour))

	if res.Sent != 0 || len(sender.texts) != 1 {
		t.Fatalf("24h reminder re-sent after reopen: %+v", res)
	}
}

func TestLostNoResponseRaceIsBenign(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	svc, marker := newTestService(store, &fakeSender{}, Options{})
	marker.err = apperr.Conflict("appointment changed concurrently")

	res, err := svc.RunPass(context.Background(), apptStart.Add(time.Minute))
	if err != nil || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("expected benign skip, got %+v %v", res, err)
	}
}

func TestSettingsErrorFailsOnlyThatAppointment(t *testing.T) {
	appt := newAppointment()
	past := newAppointment()
	past.start = apptStart.Add(-2 * time.Hour)
	store := newFakeStore(appt, past)
	store.settingsErr = errors.New("db down")
	svc, _ := newTestService(store, &fakeSender{}, Options{})

	res, err := svc.RunPass(context.Background(), apptStart.Add(-time.Hour))
	if err != nil || res.Failed != 1 || res.NoResponse != 1 {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
}

func TestCustomTemplateIsRendered(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, Options{})
	ctx := context.Background()

	if _, err := svc.SaveTemplate(ctx, appt.userID, domain.Kind24h, "Oi [NOME], amanhã [DATA] às [HORA]"); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, _ = svc.RunPass(ctx, apptStart.Add(-23*time.Hour))

	if len(sender.texts) != 1 || sender.texts[0] != "Oi Ana, amanhã 11/03/2026 às 14:00" {
		t.Fatalf("unexpected text %v", sender.texts)
	}
}

func TestTemplatesFallBackToDefaults(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeSender{}, Options{})
	userID := uuid.New()

	if _, err := svc.SaveTemplate(context.Background(), userID, domain.Kind2h, "  "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	resp, err := svc.Templates(context.Background(), userID)
	if err != nil || len(resp.Items) != 2 || !resp.Items[0].IsDefault || !resp.Items[1].IsDefault {
		t.Fatalf("unexpected templates %+v %v", resp, err)
	}

	preview, _ := svc.Preview(context.Background(), userID, domain.Kind24h, "")
	if !strings.Contains(preview.Rendered, "Maria Silva") || !strings.Contains(preview.Rendered, "14:30") {
		t.Fatalf("unexpected preview %q", preview.Rendered)
	}
}
