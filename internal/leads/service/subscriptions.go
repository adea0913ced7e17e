package service

import (
	"context"
	"fmt"

	"engagement_backend/internal/events"
	"engagement_backend/internal/leads/transport"
)

// RegisterHandlers subscribes the service to the events that move a lead's
// score, status or follow-up flag.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadMessageRecorded{}.EventName(), events.HandlerFunc(s.onMessageRecorded))
	bus.Subscribe(events.SentimentEvaluated{}.EventName(), events.HandlerFunc(s.onSentimentEvaluated))
	bus.Subscribe(events.AppointmentCreated{}.EventName(), events.HandlerFunc(s.onAppointmentCreated))
	bus.Subscribe(events.AppointmentConfirmationChanged{}.EventName(), events.HandlerFunc(s.onConfirmationChanged))
}

func (s *Service) onMessageRecorded(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadMessageRecorded)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	_, err := s.Recompute(ctx, e.UserID, e.LeadID)
	return err
}

func (s *Service) onSentimentEvaluated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SentimentEvaluated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	_, err := s.Recompute(ctx, e.UserID, e.LeadID)
	return err
}

// A booked appointment moves the lead to scheduled unless the operator pinned it.
func (s *Service) onAppointmentCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.AppointmentCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if e.LeadID == nil {
		return nil
	}
	_, err := s.repo.UpdateStatus(ctx, *e.LeadID, e.UserID, string(transport.LeadStatusScheduled), true)
	return err
}

// Cancelled and unanswered appointments put the lead in the follow-up queue.
func (s *Service) onConfirmationChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.AppointmentConfirmationChanged)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if e.LeadID == nil || (e.To != "cancelled" && e.To != "no_response") {
		return nil
	}
	return s.repo.MarkNeedsFollowUp(ctx, *e.LeadID, e.UserID)
}
