// Package service turns conversation traffic into appointment transitions,
// lead signals and alert events.
package service

import (
	"context"
	"strings"
	"time"

	apptdomain "engagement_backend/internal/appointments/domain"
	apptransport "engagement_backend/internal/appointments/transport"
	"engagement_backend/internal/conversations/classifier"
	"engagement_backend/internal/conversations/transport"
	"engagement_backend/internal/events"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	directionInbound    = "inbound"
	directionOutbound   = "outbound"
	sentimentFrustrated = "frustrated"
	sentimentNegative   = "negative"
	maxCancelReason     = 497
)

// LeadRecorder stores lead-side conversation signals.
type LeadRecorder interface {
	RecordMessage(ctx context.Context, userID, leadID uuid.UUID, direction, body string, receivedAt time.Time) error
	RecordSentiment(ctx context.Context, userID, leadID uuid.UUID, sentiment, sample string) error
}

// AppointmentResponder applies a client's answer to an appointment.
type AppointmentResponder interface {
	Confirm(ctx context.Context, userID, id uuid.UUID, actor apptdomain.Actor, replyText string) (apptransport.AppointmentResponse, error)
	Cancel(ctx context.Context, userID, id uuid.UUID, actor apptdomain.Actor, reason, replyText string) (apptransport.AppointmentResponse, error)
}

type Service struct {
	leads        LeadRecorder
	appointments AppointmentResponder
	classifier   *classifier.Classifier
	eventBus     events.Bus
	log          *logger.Logger
}

func New(leads LeadRecorder, appointments AppointmentResponder, c *classifier.Classifier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:        leads,
		appointments: appointments,
		classifier:   c,
		eventBus:     bus,
		log:          log.WithComponent("conversations"),
	}
}

// IngestMessage records a message with a lead. Inbound text is classified and,
// when it answers an appointment, moves that appointment on the client's behalf.
func (s *Service) IngestMessage(ctx context.Context, userID uuid.UUID, req transport.IngestMessageRequest) (transport.IngestMessageResponse, error) {
	text := sanitize.Text(req.Text)
	if text == "" {
		return transport.IngestMessageResponse{}, apperr.Validation("text is required")
	}
	var receivedAt time.Time
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}
	if err := s.leads.RecordMessage(ctx, userID, req.LeadID, req.Direction, text, receivedAt); err != nil {
		return transport.IngestMessageResponse{}, err
	}

	resp := transport.IngestMessageResponse{Intent: classifier.IntentNone, Outcome: transport.OutcomeNone}
	if req.Direction != directionInbound {
		return resp, nil
	}

	result := s.classifier.Classify(text)
	resp.Intent = result.Intent
	resp.Frustrated = result.Frustrated

	if result.Frustrated {
		if err := s.leads.RecordSentiment(ctx, userID, req.LeadID, sentimentFrustrated, text); err != nil {
			return transport.IngestMessageResponse{}, err
		}
		s.publishFrustration(ctx, userID, &req.LeadID, text)
	}

	if req.AppointmentID != nil && result.Intent != classifier.IntentNone {
		outcome, err := s.answer(ctx, userID, *req.AppointmentID, result.Intent, text)
		if err != nil {
			return transport.IngestMessageResponse{}, err
		}
		resp.Outcome = outcome
	}
	return resp, nil
}

func (s *Service) answer(ctx context.Context, userID, appointmentID uuid.UUID, intent classifier.Intent, text string) (transport.Outcome, error) {
	var (
		err     error
		applied transport.Outcome
	)
	switch intent {
	case classifier.IntentAffirmative:
		_, err = s.appointments.Confirm(ctx, userID, appointmentID, apptdomain.ActorClient, text)
		applied = transport.OutcomeConfirmed
	case classifier.IntentNegative:
		_, err = s.appointments.Cancel(ctx, userID, appointmentID, apptdomain.ActorClient, sanitize.Excerpt(text, maxCancelReason), text)
		applied = transport.OutcomeCancelled
	default:
		return transport.OutcomeNone, nil
	}
	if apperr.Is(err, apperr.KindConflict) {
		s.log.Info("client reply did not apply", "appointmentId", appointmentID, "intent", intent)
		return transport.OutcomeNotApplied, nil
	}
	if err != nil {
		return "", err
	}
	return applied, nil
}

// RecordReply inspects a generated reply and raises a low confidence event when it hedges.
func (s *Service) RecordReply(ctx context.Context, userID uuid.UUID, req transport.RecordReplyRequest) (transport.RecordReplyResponse, error) {
	text := sanitize.Text(req.Text)
	if text == "" {
		return transport.RecordReplyResponse{}, apperr.Validation("text is required")
	}
	if req.LeadID != nil {
		if err := s.leads.RecordMessage(ctx, userID, *req.LeadID, directionOutbound, text, time.Time{}); err != nil {
			return transport.RecordReplyResponse{}, err
		}
	}
	if !s.classifier.IsLowConfidence(text) {
		return transport.RecordReplyResponse{}, nil
	}
	s.eventBus.Publish(ctx, events.LowConfidenceReply{
		BaseEvent: events.NewBaseEvent(),
		UserID:    userID,
		LeadID:    req.LeadID,
		Reply:     text,
	})
	return transport.RecordReplyResponse{LowConfidence: true}, nil
}

// RecordSentiment stores an external sentiment evaluation.
func (s *Service) RecordSentiment(ctx context.Context, userID uuid.UUID, req transport.RecordSentimentRequest) error {
	sentiment := strings.ToLower(strings.TrimSpace(req.Sentiment))
	sample := sanitize.Text(req.Sample)
	if req.LeadID != nil {
		if err := s.leads.RecordSentiment(ctx, userID, *req.LeadID, sentiment, sample); err != nil {
			return err
		}
	}
	if sentiment == sentimentFrustrated || sentiment == sentimentNegative {
		s.publishFrustration(ctx, userID, req.LeadID, sample)
	}
	return nil
}

func (s *Service) publishFrustration(ctx context.Context, userID uuid.UUID, leadID *uuid.UUID, sample string) {
	s.eventBus.Publish(ctx, events.FrustrationDetected{
		BaseEvent: events.NewBaseEvent(),
		UserID:    userID,
		LeadID:    leadID,
		Sample:    sample,
	})
}
