package sse

import (
	"context"

	"engagement_backend/internal/events"
)

// Projector turns domain events into SSE events for the owning user.
type Projector struct {
	out Publisher
}

func NewProjector(out Publisher) *Projector {
	return &Projector{out: out}
}

// RegisterHandlers subscribes the projector to the events shown live to operators.
func (p *Projector) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AppointmentConfirmationChanged{}.EventName(), events.HandlerFunc(p.onConfirmationChanged))
	bus.Subscribe(events.ReminderDispatched{}.EventName(), events.HandlerFunc(p.onReminderDispatched))
	bus.Subscribe(events.AlertCreated{}.EventName(), events.HandlerFunc(p.onAlertCreated))
	bus.Subscribe(events.LeadScoreUpdated{}.EventName(), events.HandlerFunc(p.onLeadScoreUpdated))
}

func (p *Projector) onConfirmationChanged(_ context.Context, event events.Event) error {
	e, ok := event.(events.AppointmentConfirmationChanged)
	if !ok {
		return nil
	}
	p.out.Publish(e.UserID, Event{
		Type:   EventConfirmationChanged,
		LeadID: e.LeadID,
		Data: map[string]any{
			"appointmentId": e.AppointmentID,
			"from":          e.From,
			"to":            e.To,
			"actor":         e.Actor,
		},
	})
	return nil
}

func (p *Projector) onReminderDispatched(_ context.Context, event events.Event) error {
	e, ok := event.(events.ReminderDispatched)
	if !ok {
		return nil
	}
	p.out.Publish(e.UserID, Event{
		Type: EventReminderSent,
		Data: map[string]any{
			"appointmentId": e.AppointmentID,
			"kind":          e.Kind,
			"channel":       e.Channel,
		},
	})
	return nil
}

func (p *Projector) onAlertCreated(_ context.Context, event events.Event) error {
	e, ok := event.(events.AlertCreated)
	if !ok {
		return nil
	}
	p.out.Publish(e.UserID, Event{
		Type:   EventAlertCreated,
		LeadID: e.LeadID,
		Data: map[string]any{
			"alertId": e.AlertID,
			"kind":    e.Kind,
			"message": e.Message,
		},
	})
	return nil
}

func (p *Projector) onLeadScoreUpdated(_ context.Context, event events.Event) error {
	e, ok := event.(events.LeadScoreUpdated)
	if !ok {
		return nil
	}
	leadID := e.LeadID
	p.out.Publish(e.UserID, Event{
		Type:   EventLeadScoreUpdated,
		LeadID: &leadID,
		Data:   map[string]any{"score": e.Score},
	})
	return nil
}
