package service

import (
	"context"
	"sync"
	"testing"
	"time"

	apptdomain "engagement_backend/internal/appointments/domain"
	apptrepo "engagement_backend/internal/appointments/repository"
	apptservice "engagement_backend/internal/appointments/service"
	"engagement_backend/internal/events"
	"engagement_backend/internal/reminders/domain"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
)

// appointmentRows backs the appointments service with the same appointments
// and dispatches the reminder pass sees, so a confirmation change made through
// the appointments service takes the row out of the pending scan.
type appointmentRows struct {
	mu          sync.Mutex
	reminders   *fakeStore
	rows        map[uuid.UUID]apptrepo.Appointment
	transitions []apptdomain.TransitionRecord
	responses   map[uuid.UUID]string
	respondedAt map[uuid.UUID]time.Time
}

func newAppointmentRows(reminders *fakeStore) *appointmentRows {
	r := &appointmentRows{
		reminders:   reminders,
		rows:        map[uuid.UUID]apptrepo.Appointment{},
		responses:   map[uuid.UUID]string{},
		respondedAt: map[uuid.UUID]time.Time{},
	}
	for _, a := range reminders.appts {
		initial := apptdomain.NewConfirmation()
		r.rows[a.id] = apptrepo.Appointment{
			ID: a.id, UserID: a.userID, StartAt: a.start, EndAt: a.start.Add(time.Hour),
			Status: initial.Coarse, ConfirmationStatus: initial.Status,
		}
	}
	return r
}

func (r *appointmentRows) CreateIfFree(context.Context, *apptrepo.Appointment) (*uuid.UUID, error) {
	return nil, nil
}

func (r *appointmentRows) GetByID(_ context.Context, id, userID uuid.UUID) (apptrepo.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.UserID != userID {
		return apptrepo.Appointment{}, apperr.NotFound("appointment not found")
	}
	return a, nil
}

func (r *appointmentRows) List(context.Context, apptrepo.ListParams) ([]apptrepo.Appointment, error) {
	return nil, nil
}

func (r *appointmentRows) ApplyTransition(_ context.Context, id, userID uuid.UUID, expected apptdomain.ConfirmationStatus, next apptdomain.Confirmation, change apptdomain.Change) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.rows[id]
	if a.UserID != userID || a.ConfirmationStatus != expected {
		return false, nil
	}
	a.ConfirmationStatus = next.Status
	a.Status = next.Coarse
	a.CancelledByClient = next.CancelledByClient
	a.ConfirmedByClient = next.ConfirmedByClient
	a.CancellationReason = next.CancellationReason
	r.rows[id] = a

	rec := apptdomain.TransitionRecord{ID: uuid.New(), From: change.From, To: change.To, Actor: change.Actor, CreatedAt: change.At}
	if change.ReplyText != "" {
		reply := change.ReplyText
		rec.ReplyText = &reply
	}
	r.transitions = append(r.transitions, rec)

	r.reminders.mu.Lock()
	for _, fa := range r.reminders.appts {
		if fa.id == id {
			fa.pending = next.Status == apptdomain.StatusPending
		}
	}
	r.reminders.mu.Unlock()
	return true, nil
}

func (r *appointmentRows) ListTransitions(context.Context, uuid.UUID) ([]apptdomain.TransitionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]apptdomain.TransitionRecord(nil), r.transitions...), nil
}

func (r *appointmentRows) ListDispatches(_ context.Context, appointmentID uuid.UUID) ([]apptdomain.DispatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders.mu.Lock()
	defer r.reminders.mu.Unlock()
	out := []apptdomain.DispatchRecord{}
	for i, d := range r.reminders.dispatches {
		if d.AppointmentID != appointmentID {
			continue
		}
		rec := apptdomain.DispatchRecord{ID: uuid.New(), Kind: string(d.Kind), Channel: d.Channel, SentAt: d.SentAt}
		if i == len(r.reminders.dispatches)-1 {
			if text, ok := r.responses[appointmentID]; ok {
				at := r.respondedAt[appointmentID]
				rec.Response, rec.RespondedAt = &text, &at
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *appointmentRows) AttachResponse(_ context.Context, appointmentID uuid.UUID, text string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responses[appointmentID]; !ok {
		r.responses[appointmentID] = text
		r.respondedAt[appointmentID] = at
	}
	return nil
}

func (r *appointmentRows) Stats(context.Context, uuid.UUID, *time.Time, *time.Time) (apptrepo.Stats, error) {
	return apptrepo.Stats{}, nil
}

func TestClientDeclineAfterDayBeforeReminderStopsTwoHourReminder(t *testing.T) {
	appt := newAppointment()
	store := newFakeStore(appt)
	sender := &fakeSender{}
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	appointments := apptservice.New(newAppointmentRows(store), bus, nil, log, time.UTC)
	svc := New(store, sender, appointments, bus, log, time.UTC, Options{})
	ctx := context.Background()

	res, err := svc.RunPass(ctx, apptStart.Add(-23*time.Hour))
	if err != nil || res.Sent != 1 {
		t.Fatalf("day-before pass: %+v %v", res, err)
	}

	reply := "Não posso ir, preciso cancelar"
	cancelled, err := appointments.Cancel(ctx, appt.userID, appt.id, apptdomain.ActorClient, reply, reply)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.ConfirmationStatus != apptdomain.StatusCancelled || !cancelled.CancelledByClient {
		t.Fatalf("unexpected appointment after cancel: %+v", cancelled)
	}

	res, _ = svc.RunPass(ctx, apptStart.Add(-time.Hour))
	if res.Scanned != 0 || res.Sent != 0 {
		t.Fatalf("cancelled appointment must not be reminded: %+v", res)
	}
	res, _ = svc.RunPass(ctx, apptStart.Add(time.Minute))
	if res.NoResponse != 0 {
		t.Fatalf("cancelled appointment must not become no_response: %+v", res)
	}
	if kinds := store.kinds(appt.id); len(kinds) != 1 || kinds[0] != domain.Kind24h {
		t.Fatalf("expected only the 24h dispatch, got %v", kinds)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("expected one message sent, got %d", len(sender.texts))
	}

	timeline, err := appointments.Timeline(ctx, appt.userID, appt.id)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	var sawReminder, sawResponse, sawCancel bool
	for _, e := range timeline.Entries {
		switch e.Type {
		case apptdomain.EntryReminder:
			sawReminder = e.Kind != nil && *e.Kind == string(domain.Kind24h)
		case apptdomain.EntryClientResponse:
			sawResponse = e.ReplyText != nil && *e.ReplyText == reply
		case apptdomain.EntryTransition:
			sawCancel = e.To != nil && *e.To == apptdomain.StatusCancelled &&
				e.Actor != nil && *e.Actor == apptdomain.ActorClient &&
				e.ReplyText != nil && *e.ReplyText == reply
		}
	}
	if !sawReminder || !sawResponse || !sawCancel {
		t.Fatalf("timeline incomplete (reminder=%v response=%v cancel=%v): %+v", sawReminder, sawResponse, sawCancel, timeline.Entries)
	}
}
