package service

import (
	"context"
	"strings"
	"time"

	"engagement_backend/internal/events"
	"engagement_backend/internal/leads/repository"
	"engagement_backend/internal/leads/scoring"
	"engagement_backend/internal/leads/transport"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/phone"
	"engagement_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	scoreAttempts    = 2

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Store is the persistence the service depends on.
type Store interface {
	Create(ctx context.Context, l *repository.Lead) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, userID uuid.UUID, status *string, needsFollowUp bool, limit int) ([]repository.Lead, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string, onlyAutomatic bool) (bool, error)
	SetManualOverride(ctx context.Context, id, userID uuid.UUID, enabled bool) error
	MarkNeedsFollowUp(ctx context.Context, id, userID uuid.UUID) error
	RecordMessage(ctx context.Context, m repository.Message) error
	RecordSentiment(ctx context.Context, leadID, userID uuid.UUID, sentiment, sample string) error
	Signals(ctx context.Context, leadID, userID uuid.UUID) (scoring.Signals, int64, error)
	UpdateScore(ctx context.Context, leadID, userID uuid.UUID, score float64, version int64) (bool, error)
	RecordFollowUp(ctx context.Context, leadID, userID uuid.UUID, message string, at time.Time) error
	ListFollowUps(ctx context.Context, leadID, userID uuid.UUID) ([]repository.FollowUp, error)
	ListStaleScores(ctx context.Context, olderThan time.Time, limit int) ([]repository.LeadRef, error)
}

// Service provides business logic for leads and their priority score.
type Service struct {
	repo        Store
	eventBus    events.Bus
	log         *logger.Logger
	phoneRegion string
	now         func() time.Time
}

// New creates a new leads service.
func New(repo Store, eventBus events.Bus, log *logger.Logger, phoneRegion string) *Service {
	return &Service{
		repo:        repo,
		eventBus:    eventBus,
		log:         log.WithComponent("leads"),
		phoneRegion: phoneRegion,
		now:         time.Now,
	}
}

// Create registers a lead. Phone numbers are stored in E.164 form.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	lead := repository.Lead{
		ID:     uuid.New(),
		UserID: userID,
		Name:   sanitize.Text(req.Name),
		Status: string(transport.LeadStatusInterested),
	}
	if strings.TrimSpace(req.Phone) != "" {
		if !phone.IsValid(req.Phone, s.phoneRegion) {
			return transport.LeadResponse{}, apperr.Validation("invalid phone number")
		}
		normalized := phone.NormalizeE164(req.Phone, s.phoneRegion)
		lead.Phone = &normalized
	}
	if email := strings.TrimSpace(strings.ToLower(req.Email)); email != "" {
		lead.Email = &email
	}
	lead.PriorityScore = scoring.Score("", nil, 0, s.now())

	if err := s.repo.Create(ctx, &lead); err != nil {
		return transport.LeadResponse{}, err
	}
	return toResponse(lead), nil
}

// GetByID returns one lead of the user.
func (s *Service) GetByID(ctx context.Context, userID, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toResponse(lead), nil
}

// List returns the user's leads ordered by priority.
func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	var status *string
	if req.Status != "" {
		status = &req.Status
	}
	return s.list(ctx, userID, status, false, req.Limit)
}

// ListNeedingFollowUp returns the follow-up queue.
func (s *Service) ListNeedingFollowUp(ctx context.Context, userID uuid.UUID) (transport.LeadListResponse, error) {
	return s.list(ctx, userID, nil, true, defaultListLimit)
}

func (s *Service) list(ctx context.Context, userID uuid.UUID, status *string, followUp bool, limit int) (transport.LeadListResponse, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	leads, err := s.repo.List(ctx, userID, status, followUp, limit)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	resp := transport.LeadListResponse{Items: make([]transport.LeadResponse, 0, len(leads)), Total: len(leads)}
	for _, lead := range leads {
		resp.Items = append(resp.Items, toResponse(lead))
	}
	return resp, nil
}

// UpdateStatus moves a lead along the funnel on operator request.
func (s *Service) UpdateStatus(ctx context.Context, userID, id uuid.UUID, raw string) (transport.LeadResponse, error) {
	status, ok := NormalizeStatus(raw)
	if !ok {
		return transport.LeadResponse{}, apperr.Validation("unknown lead status")
	}
	updated, err := s.repo.UpdateStatus(ctx, id, userID, string(status), false)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if !updated {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	return s.GetByID(ctx, userID, id)
}

// SetManualOverride pins the lead status so booking events stop moving it.
func (s *Service) SetManualOverride(ctx context.Context, userID, id uuid.UUID, enabled bool) (transport.LeadResponse, error) {
	if err := s.repo.SetManualOverride(ctx, id, userID, enabled); err != nil {
		return transport.LeadResponse{}, err
	}
	return s.GetByID(ctx, userID, id)
}

// RecordMessage stores a message exchanged with a lead and triggers a rescore.
func (s *Service) RecordMessage(ctx context.Context, userID, leadID uuid.UUID, direction, body string, receivedAt time.Time) error {
	if direction != DirectionInbound && direction != DirectionOutbound {
		return apperr.Validation("direction must be inbound or outbound")
	}
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	err := s.repo.RecordMessage(ctx, repository.Message{
		LeadID:     leadID,
		UserID:     userID,
		Direction:  direction,
		Body:       body,
		ReceivedAt: receivedAt.UTC(),
	})
	if err != nil {
		return err
	}
	s.eventBus.Publish(ctx, events.LeadMessageRecorded{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		UserID:    userID,
		Direction: direction,
	})
	return nil
}

// RecordSentiment stores a sentiment evaluation and triggers a rescore.
func (s *Service) RecordSentiment(ctx context.Context, userID, leadID uuid.UUID, sentiment, sample string) error {
	sentiment = strings.ToLower(strings.TrimSpace(sentiment))
	if err := s.repo.RecordSentiment(ctx, leadID, userID, sentiment, sample); err != nil {
		return err
	}
	s.eventBus.Publish(ctx, events.SentimentEvaluated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		UserID:    userID,
		Sentiment: sentiment,
	})
	return nil
}

// Recompute overwrites the lead's priority score from its current signals.
// A concurrent recompute that wins twice in a row already stored a score from
// signals at least as fresh, so its value is kept.
func (s *Service) Recompute(ctx context.Context, userID, leadID uuid.UUID) (transport.ScoreResponse, error) {
	for attempt := 0; attempt < scoreAttempts; attempt++ {
		signals, version, err := s.repo.Signals(ctx, leadID, userID)
		if err != nil {
			return transport.ScoreResponse{}, err
		}
		score := scoring.ScoreSignals(signals, s.now())

		updated, err := s.repo.UpdateScore(ctx, leadID, userID, score, version)
		if err != nil {
			return transport.ScoreResponse{}, err
		}
		if updated {
			s.eventBus.Publish(ctx, events.LeadScoreUpdated{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    leadID,
				UserID:    userID,
				Score:     score,
			})
			return transport.ScoreResponse{LeadID: leadID, Score: score}, nil
		}
	}

	lead, err := s.repo.GetByID(ctx, leadID, userID)
	if err != nil {
		return transport.ScoreResponse{}, err
	}
	s.log.Debug("score recompute lost to a concurrent writer", "leadId", leadID)
	return transport.ScoreResponse{LeadID: leadID, Score: lead.PriorityScore}, nil
}

// RefreshStale rescores leads untouched for longer than maxAge so that
// silence keeps raising their priority. It returns how many were rescored.
func (s *Service) RefreshStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	refs, err := s.repo.ListStaleScores(ctx, s.now().Add(-maxAge), limit)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if _, err := s.Recompute(ctx, ref.UserID, ref.LeadID); err != nil {
			s.log.Warn("stale score refresh failed", "leadId", ref.LeadID, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// SendFollowUp records a follow-up message and clears the follow-up flag.
func (s *Service) SendFollowUp(ctx context.Context, userID, leadID uuid.UUID, message string) (transport.LeadResponse, error) {
	message = sanitize.Text(message)
	if message == "" {
		return transport.LeadResponse{}, apperr.Validation("message is required")
	}
	if err := s.repo.RecordFollowUp(ctx, leadID, userID, message, s.now().UTC()); err != nil {
		return transport.LeadResponse{}, err
	}
	s.eventBus.Publish(ctx, events.LeadMessageRecorded{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		UserID:    userID,
		Direction: DirectionOutbound,
	})
	return s.GetByID(ctx, userID, leadID)
}

// FollowUpHistory lists follow-ups sent to a lead, newest first.
func (s *Service) FollowUpHistory(ctx context.Context, userID, leadID uuid.UUID) ([]repository.FollowUp, error) {
	if _, err := s.repo.GetByID(ctx, leadID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListFollowUps(ctx, leadID, userID)
}

// NormalizeStatus maps current and legacy display labels onto a lead status.
func NormalizeStatus(raw string) (transport.LeadStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "interested", "interessado":
		return transport.LeadStatusInterested, true
	case "scheduled", "agendado":
		return transport.LeadStatusScheduled, true
	case "converted", "convertido", "finalizado":
		return transport.LeadStatusConverted, true
	default:
		return "", false
	}
}

func toResponse(l repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                l.ID,
		Name:              l.Name,
		Phone:             l.Phone,
		Email:             l.Email,
		Status:            transport.LeadStatus(l.Status),
		ManualOverride:    l.ManualOverride,
		LastInteractionAt: l.LastInteractionAt,
		PriorityScore:     l.PriorityScore,
		NeedsFollowUp:     l.NeedsFollowUp,
		FollowUpSent:      l.FollowUpSent,
		LastFollowUpAt:    l.LastFollowUpAt,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}
