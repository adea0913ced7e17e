package service

import (
	"context"
	"sync"
	"time"

	"engagement_backend/internal/events"
	"engagement_backend/internal/reminders/delivery"
	"engagement_backend/internal/reminders/domain"
	"engagement_backend/internal/reminders/repository"
	"engagement_backend/internal/reminders/transport"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
	outcomeNoResponse
)

// userState is loaded once per user per pass.
type userState struct {
	once      sync.Once
	settings  domain.Settings
	templates map[domain.Kind]string
	err       error
}

type passState struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*userState
	result transport.PassResult
}

func (p *passState) user(id uuid.UUID) *userState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.users[id]
	if !ok {
		st = &userState{}
		p.users[id] = st
	}
	return st
}

func (p *passState) record(o outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch o {
	case outcomeSent:
		p.result.Sent++
	case outcomeFailed:
		p.result.Failed++
	case outcomeNoResponse:
		p.result.NoResponse++
	default:
		p.result.Skipped++
	}
}

// RunPass evaluates every pending appointment starting within the next 24h.
// Appointments are processed independently; a failure on one never stops the
// others and is retried on the next pass.
func (s *Service) RunPass(ctx context.Context, now time.Time) (transport.PassResult, error) {
	pending, err := s.repo.ListPending(ctx, now.Add(domain.Kind24h.Offset()), s.opts.BatchSize)
	if err != nil {
		return transport.PassResult{}, err
	}

	state := &passState{users: make(map[uuid.UUID]*userState)}
	state.result.Scanned = len(pending)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, appt := range pending {
		appt := appt
		g.Go(func() error {
			state.record(s.process(gctx, state, appt, now))
			return nil
		})
	}
	_ = g.Wait()

	return state.result, ctx.Err()
}

func (s *Service) process(ctx context.Context, state *passState, appt repository.PendingAppointment, now time.Time) outcome {
	if ctx.Err() != nil {
		return outcomeSkipped
	}

	decision := domain.Decide(now, appt.StartAt, appt.Dispatched)
	if decision.NoResponse {
		return s.markNoResponse(ctx, appt)
	}
	if decision.Send == "" {
		return outcomeSkipped
	}

	user := state.user(appt.UserID)
	user.once.Do(func() {
		user.settings, user.err = s.repo.GetSettings(ctx, appt.UserID)
		if user.err == nil {
			user.templates, user.err = s.repo.ListTemplates(ctx, appt.UserID)
		}
	})
	if user.err != nil {
		s.log.Warn("reminder settings unavailable", "userId", appt.UserID, "error", user.err)
		return outcomeFailed
	}
	if !user.settings.AutomaticRemindersEnabled {
		return outcomeSkipped
	}

	return s.send(ctx, appt, decision.Send, user.templates)
}

func (s *Service) markNoResponse(ctx context.Context, appt repository.PendingAppointment) outcome {
	err := s.appointments.MarkNoResponse(ctx, appt.UserID, appt.ID)
	if err == nil {
		return outcomeNoResponse
	}
	if apperr.Is(err, apperr.KindConflict) {
		// Someone answered between the listing and the update.
		s.log.Debug("no_response transition lost to a concurrent change", "appointmentId", appt.ID)
		return outcomeSkipped
	}
	s.log.Warn("failed to mark appointment as no_response", "appointmentId", appt.ID, "error", err)
	return outcomeFailed
}

func (s *Service) send(ctx context.Context, appt repository.PendingAppointment, kind domain.Kind, templates map[domain.Kind]string) outcome {
	body, ok := templates[kind]
	if !ok {
		body = domain.DefaultTemplate(kind)
	}
	text := domain.Render(body, domain.TemplateData{
		Name:    deref(appt.LeadName),
		Start:   appt.StartAt,
		Service: deref(appt.Notes),
	}, s.loc)

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	channel, err := s.sender.Send(sendCtx, delivery.Recipient{
		Name:  deref(appt.LeadName),
		Phone: deref(appt.LeadPhone),
		Email: deref(appt.LeadEmail),
	}, text)
	if err != nil {
		s.log.Warn("reminder delivery failed", "appointmentId", appt.ID, "kind", kind, "channel", channel, "error", err)
		return outcomeFailed
	}

	inserted, err := s.repo.RecordDispatch(ctx, repository.Dispatch{
		AppointmentID: appt.ID,
		Kind:          kind,
		Channel:       channel,
		RenderedText:  text,
		SentAt:        s.now().UTC(),
	})
	if err != nil {
		s.log.Error("reminder sent but not recorded", "appointmentId", appt.ID, "kind", kind, "error", err)
		return outcomeFailed
	}
	if !inserted {
		s.log.Debug("reminder already recorded by another pass", "appointmentId", appt.ID, "kind", kind)
		return outcomeSkipped
	}

	s.eventBus.Publish(ctx, events.ReminderDispatched{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		Kind:          string(kind),
		Channel:       channel,
	})
	return outcomeSent
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
