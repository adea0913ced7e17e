package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"engagement_backend/internal/appointments/domain"
	"engagement_backend/internal/appointments/repository"
	"engagement_backend/internal/appointments/transport"
	"engagement_backend/internal/events"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = "15:04"

	errEndTimeAfterStart = "endTime must be after startTime"
	errSlotTaken         = "time slot overlaps another appointment"
)

// Store is the persistence the service depends on.
type Store interface {
	CreateIfFree(ctx context.Context, appt *repository.Appointment) (*uuid.UUID, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (repository.Appointment, error)
	List(ctx context.Context, p repository.ListParams) ([]repository.Appointment, error)
	ApplyTransition(ctx context.Context, id, userID uuid.UUID, expected domain.ConfirmationStatus, next domain.Confirmation, change domain.Change) (bool, error)
	ListTransitions(ctx context.Context, appointmentID uuid.UUID) ([]domain.TransitionRecord, error)
	ListDispatches(ctx context.Context, appointmentID uuid.UUID) ([]domain.DispatchRecord, error)
	AttachResponse(ctx context.Context, appointmentID uuid.UUID, text string, at time.Time) error
	Stats(ctx context.Context, userID uuid.UUID, from, to *time.Time) (repository.Stats, error)
}

// ActivityRecorder writes manual confirmation actions to the activity log.
type ActivityRecorder interface {
	RecordConfirmation(ctx context.Context, userID uuid.UUID, leadID *uuid.UUID, description string, details map[string]interface{}) error
}

// Service provides business logic for appointments and their confirmation lifecycle.
type Service struct {
	repo     Store
	eventBus events.Bus
	activity ActivityRecorder
	log      *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

// New creates a new appointments service. loc is the zone operators enter
// dates and times in.
func New(repo Store, eventBus events.Bus, activity ActivityRecorder, log *logger.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		activity: activity,
		log:      log.WithComponent("appointments"),
		loc:      loc,
		now:      time.Now,
	}
}

// Create books a new appointment in the pending state. Overlapping an occupied
// slot fails with a conflict and publishes SchedulingConflict.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req transport.CreateAppointmentRequest) (transport.AppointmentResponse, error) {
	start, err := time.ParseInLocation(dateFormat+" "+timeFormat, req.Date+" "+req.StartTime, s.loc)
	if err != nil {
		return transport.AppointmentResponse{}, apperr.Validation("invalid date or startTime")
	}
	end, err := time.ParseInLocation(dateFormat+" "+timeFormat, req.Date+" "+req.EndTime, s.loc)
	if err != nil {
		return transport.AppointmentResponse{}, apperr.Validation("invalid endTime")
	}
	if !end.After(start) {
		return transport.AppointmentResponse{}, apperr.Validation(errEndTimeAfterStart)
	}

	initial := domain.NewConfirmation()
	appt := &repository.Appointment{
		ID:                 uuid.New(),
		UserID:             userID,
		LeadID:             req.LeadID,
		StartAt:            start.UTC(),
		EndAt:              end.UTC(),
		Notes:              sanitize.TextPtr(optional(req.Notes)),
		PriceCents:         req.PriceCents,
		Status:             initial.Coarse,
		ConfirmationStatus: initial.Status,
	}

	conflicting, err := s.repo.CreateIfFree(ctx, appt)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	if conflicting != nil {
		s.eventBus.Publish(ctx, events.SchedulingConflict{
			BaseEvent:                events.NewBaseEvent(),
			UserID:                   userID,
			LeadID:                   req.LeadID,
			RequestedStart:           appt.StartAt,
			RequestedEnd:             appt.EndAt,
			ConflictingAppointmentID: *conflicting,
		})
		return transport.AppointmentResponse{}, apperr.Conflict(errSlotTaken).WithDetails(map[string]string{
			"conflictingAppointmentId": conflicting.String(),
		})
	}

	s.eventBus.Publish(ctx, events.AppointmentCreated{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		UserID:        userID,
		LeadID:        appt.LeadID,
		StartAt:       appt.StartAt,
	})
	return toResponse(*appt), nil
}

// GetByID returns one appointment of the user.
func (s *Service) GetByID(ctx context.Context, userID, id uuid.UUID) (transport.AppointmentResponse, error) {
	appt, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	return toResponse(appt), nil
}

// List returns the user's appointments matching the filters.
func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListAppointmentsRequest) (transport.AppointmentListResponse, error) {
	params := repository.ListParams{UserID: userID, LeadID: req.LeadID}

	from, to, err := s.parseRange(req.From, req.To)
	if err != nil {
		return transport.AppointmentListResponse{}, err
	}
	params.From, params.To = from, to

	if req.ConfirmationStatus != "" {
		status := domain.ConfirmationStatus(req.ConfirmationStatus)
		if !status.Valid() {
			return transport.AppointmentListResponse{}, apperr.Validation("invalid confirmationStatus")
		}
		params.ConfirmationStatus = &status
	}

	items, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.AppointmentListResponse{}, err
	}

	resp := transport.AppointmentListResponse{Items: make([]transport.AppointmentResponse, 0, len(items)), Total: len(items)}
	for _, item := range items {
		resp.Items = append(resp.Items, toResponse(item))
	}
	return resp, nil
}

// Confirm marks a pending appointment as confirmed. replyText is the client's
// message when the confirmation came in through a conversation.
func (s *Service) Confirm(ctx context.Context, userID, id uuid.UUID, actor domain.Actor, replyText string) (transport.AppointmentResponse, error) {
	return s.transition(ctx, userID, id, domain.TransitionConfirm, domain.Request{Actor: actor, ReplyText: replyText})
}

// Cancel cancels a pending or unanswered appointment.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID, actor domain.Actor, reason, replyText string) (transport.AppointmentResponse, error) {
	reason = sanitize.Text(reason)
	if len([]rune(reason)) > 500 {
		return transport.AppointmentResponse{}, apperr.Validation("reason must be at most 500 characters")
	}
	return s.transition(ctx, userID, id, domain.TransitionCancel, domain.Request{Actor: actor, Reason: reason, ReplyText: replyText})
}

// Reopen returns a confirmed or cancelled appointment to pending.
func (s *Service) Reopen(ctx context.Context, userID, id uuid.UUID) (transport.AppointmentResponse, error) {
	return s.transition(ctx, userID, id, domain.TransitionReopen, domain.Request{Actor: domain.ActorOperator})
}

// MarkNoResponse records that the appointment started without an answer from the client.
func (s *Service) MarkNoResponse(ctx context.Context, userID, id uuid.UUID) error {
	_, err := s.transition(ctx, userID, id, domain.TransitionNoResponse, domain.Request{Actor: domain.ActorScheduler})
	return err
}

func (s *Service) transition(ctx context.Context, userID, id uuid.UUID, t domain.Transition, req domain.Request) (transport.AppointmentResponse, error) {
	req.At = s.now().UTC()

	appt, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}

	current := appt.Confirmation()
	next, change, err := current.Apply(t, req)
	if err != nil {
		return transport.AppointmentResponse{}, mapTransitionError(err)
	}

	if change != nil {
		applied, err := s.repo.ApplyTransition(ctx, id, userID, current.Status, next, *change)
		if err != nil {
			return transport.AppointmentResponse{}, err
		}
		if !applied {
			// Lost the compare-and-set: accept if the winner reached the same state.
			latest, err := s.repo.GetByID(ctx, id, userID)
			if err != nil {
				return transport.AppointmentResponse{}, err
			}
			if latest.ConfirmationStatus != t.Target() {
				return transport.AppointmentResponse{}, apperr.Conflict(
					fmt.Sprintf("appointment changed concurrently to %s", latest.ConfirmationStatus))
			}
			appt, change = latest, nil
		} else {
			applyConfirmation(&appt, next, req.At)
		}
	}

	if req.Actor == domain.ActorClient && strings.TrimSpace(req.ReplyText) != "" {
		if err := s.repo.AttachResponse(ctx, id, req.ReplyText, req.At); err != nil {
			s.log.Warn("failed to attach client reply to reminder", "appointmentId", id, "error", err)
		}
	}

	if change != nil {
		s.afterTransition(ctx, appt, *change)
	}
	return toResponse(appt), nil
}

func (s *Service) afterTransition(ctx context.Context, appt repository.Appointment, change domain.Change) {
	s.eventBus.Publish(ctx, events.AppointmentConfirmationChanged{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		LeadID:        appt.LeadID,
		From:          string(change.From),
		To:            string(change.To),
		Actor:         string(change.Actor),
		Reason:        change.Reason,
	})

	if change.Actor != domain.ActorOperator || s.activity == nil {
		return
	}
	details := map[string]interface{}{
		"appointmentId": appt.ID.String(),
		"from":          string(change.From),
		"to":            string(change.To),
	}
	if change.Reason != "" {
		details["reason"] = change.Reason
	}
	if err := s.activity.RecordConfirmation(ctx, appt.UserID, appt.LeadID, describe(change, appt.StartAt.In(s.loc)), details); err != nil {
		s.log.Warn("failed to record confirmation activity", "appointmentId", appt.ID, "error", err)
	}
}

// Timeline merges the transitions and reminders of an appointment.
func (s *Service) Timeline(ctx context.Context, userID, id uuid.UUID) (transport.TimelineResponse, error) {
	if _, err := s.repo.GetByID(ctx, id, userID); err != nil {
		return transport.TimelineResponse{}, err
	}
	transitions, err := s.repo.ListTransitions(ctx, id)
	if err != nil {
		return transport.TimelineResponse{}, err
	}
	dispatches, err := s.repo.ListDispatches(ctx, id)
	if err != nil {
		return transport.TimelineResponse{}, err
	}
	return transport.TimelineResponse{
		AppointmentID: id,
		Entries:       domain.BuildTimeline(transitions, dispatches),
	}, nil
}

// Reminders lists the reminders sent for an appointment.
func (s *Service) Reminders(ctx context.Context, userID, id uuid.UUID) ([]transport.DispatchResponse, error) {
	if _, err := s.repo.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}
	dispatches, err := s.repo.ListDispatches(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]transport.DispatchResponse, 0, len(dispatches))
	for _, d := range dispatches {
		out = append(out, transport.DispatchResponse{
			ID:          d.ID,
			Kind:        d.Kind,
			Channel:     d.Channel,
			SentAt:      d.SentAt,
			Response:    d.Response,
			RespondedAt: d.RespondedAt,
		})
	}
	return out, nil
}

// Stats summarises confirmation outcomes for the period.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID, req transport.StatsRequest) (transport.StatsResponse, error) {
	from, to, err := s.parseRange(req.From, req.To)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	stats, err := s.repo.Stats(ctx, userID, from, to)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	return transport.StatsResponse{
		Total:            stats.Total,
		Pending:          stats.Pending,
		Confirmed:        stats.Confirmed,
		Cancelled:        stats.Cancelled,
		NoResponse:       stats.NoResponse,
		ConfirmationRate: percent(stats.Confirmed, stats.Total),
		CancellationRate: percent(stats.Cancelled, stats.Total),
	}, nil
}

// parseRange turns inclusive YYYY-MM-DD bounds into a half-open UTC range.
func (s *Service) parseRange(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromStr != "" {
		parsed, err := time.ParseInLocation(dateFormat, fromStr, s.loc)
		if err != nil {
			return nil, nil, apperr.Validation("invalid from date")
		}
		value := parsed.UTC()
		from = &value
	}
	if toStr != "" {
		parsed, err := time.ParseInLocation(dateFormat, toStr, s.loc)
		if err != nil {
			return nil, nil, apperr.Validation("invalid to date")
		}
		value := parsed.AddDate(0, 0, 1).UTC()
		to = &value
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, nil, apperr.Validation("to must not be before from")
	}
	return from, to, nil
}

func mapTransitionError(err error) error {
	switch {
	case errors.Is(err, domain.ErrActorNotAllowed):
		return apperr.Forbidden(err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperr.Conflict(err.Error())
	default:
		return err
	}
}

func applyConfirmation(appt *repository.Appointment, c domain.Confirmation, at time.Time) {
	appt.ConfirmationStatus = c.Status
	appt.Status = c.Coarse
	appt.ConfirmedByClient = c.ConfirmedByClient
	appt.CancelledByClient = c.CancelledByClient
	appt.ConfirmationReceivedAt = c.ConfirmationReceivedAt
	appt.CancellationReason = c.CancellationReason
	appt.UpdatedAt = at
}

func describe(change domain.Change, start time.Time) string {
	when := start.Format("02/01/2006 15:04")
	switch change.Transition {
	case domain.TransitionConfirm:
		return "Agendamento de " + when + " confirmado manualmente"
	case domain.TransitionCancel:
		return "Agendamento de " + when + " cancelado manualmente"
	default:
		return "Agendamento de " + when + " reaberto"
	}
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func toResponse(a repository.Appointment) transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:                     a.ID,
		UserID:                 a.UserID,
		LeadID:                 a.LeadID,
		LeadName:               a.LeadName,
		StartAt:                a.StartAt,
		EndAt:                  a.EndAt,
		Notes:                  a.Notes,
		PriceCents:             a.PriceCents,
		Status:                 a.Status,
		ConfirmationStatus:     a.ConfirmationStatus,
		ConfirmedByClient:      a.ConfirmedByClient,
		CancelledByClient:      a.CancelledByClient,
		ConfirmationReceivedAt: a.ConfirmationReceivedAt,
		CancellationReason:     a.CancellationReason,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}
