package service

import (
	"context"
	"fmt"

	"engagement_backend/internal/alerts/domain"
	"engagement_backend/internal/events"
)

// RegisterHandlers subscribes the alert engine to the risk findings it turns into alerts.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.FrustrationDetected{}.EventName(), events.HandlerFunc(s.onFrustration))
	bus.Subscribe(events.LowConfidenceReply{}.EventName(), events.HandlerFunc(s.onLowConfidence))
	bus.Subscribe(events.SchedulingConflict{}.EventName(), events.HandlerFunc(s.onConflict))
}

func (s *Service) onFrustration(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FrustrationDetected)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	_, err := s.Raise(ctx, e.UserID, domain.KindFrustrated, e.LeadID, e.Sample)
	return err
}

func (s *Service) onLowConfidence(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LowConfidenceReply)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	_, err := s.Raise(ctx, e.UserID, domain.KindUnconfident, e.LeadID, e.Reply)
	return err
}

func (s *Service) onConflict(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SchedulingConflict)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	slot := e.RequestedStart.In(s.loc).Format("02/01/2006 15:04")
	_, err := s.Raise(ctx, e.UserID, domain.KindConflict, e.LeadID, slot)
	return err
}
