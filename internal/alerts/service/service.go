package service

import (
	"context"
	"time"

	"engagement_backend/internal/alerts/domain"
	"engagement_backend/internal/alerts/repository"
	"engagement_backend/internal/alerts/transport"
	"engagement_backend/internal/events"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
)

// Store is the persistence the service depends on.
type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Alert, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]repository.Alert, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, alertID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (domain.Preferences, error)
	ChangePreferences(ctx context.Context, userID uuid.UUID, c domain.PreferenceChange) (domain.Preferences, error)
}

// Service raises alerts under the user's preferences and serves the alert inbox.
type Service struct {
	repo     Store
	eventBus events.Bus
	log      *logger.Logger
	loc      *time.Location
}

func New(repo Store, eventBus events.Bus, log *logger.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		log:      log.WithComponent("alerts"),
		loc:      loc,
	}
}

// Raise creates an alert unless the user switched that kind off. A suppressed
// alert returns (nil, nil).
func (s *Service) Raise(ctx context.Context, userID uuid.UUID, kind domain.Kind, leadID *uuid.UUID, sample string) (*repository.Alert, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.Allows(kind) {
		s.log.Debug("alert suppressed by preference", "userId", userID, "kind", kind)
		return nil, nil
	}

	alert, err := s.repo.Create(ctx, repository.CreateParams{
		UserID:  userID,
		Kind:    kind,
		LeadID:  leadID,
		Message: domain.Message(kind, sample),
	})
	if err != nil {
		s.log.Error("failed to persist alert", "error", err, "userId", userID, "kind", kind)
		return nil, err
	}

	s.eventBus.Publish(ctx, events.AlertCreated{
		BaseEvent: events.NewBaseEvent(),
		AlertID:   alert.ID,
		UserID:    alert.UserID,
		Kind:      string(alert.Kind),
		LeadID:    alert.LeadID,
		Message:   alert.Message,
	})
	return &alert, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListAlertsRequest) (transport.AlertListResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	items, err := s.repo.List(ctx, userID, req.Unread, limit)
	if err != nil {
		return transport.AlertListResponse{}, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return transport.AlertListResponse{}, err
	}
	return transport.AlertListResponse{Items: items, Unread: unread}, nil
}

// MarkRead is idempotent; marking an already read alert succeeds.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (transport.MarkAllReadResponse, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return transport.MarkAllReadResponse{}, err
	}
	return transport.MarkAllReadResponse{Updated: n}, nil
}

func (s *Service) Preferences(ctx context.Context, userID uuid.UUID) (domain.Preferences, error) {
	return s.repo.GetPreferences(ctx, userID)
}

// UpdatePreferences changes only the switches present in req.
func (s *Service) UpdatePreferences(ctx context.Context, userID uuid.UUID, req transport.UpdatePreferencesRequest) (domain.Preferences, error) {
	return s.repo.ChangePreferences(ctx, userID, domain.PreferenceChange{
		Frustrated:  req.AlertFrustrated,
		Unconfident: req.AlertUnconfident,
		Conflict:    req.AlertConflict,
	})
}

// SetPreference toggles a single kind.
func (s *Service) SetPreference(ctx context.Context, userID uuid.UUID, kind domain.Kind, enabled bool) error {
	if !kind.Valid() {
		return apperr.Validation("unknown alert kind")
	}
	_, err := s.repo.ChangePreferences(ctx, userID, domain.ChangeFor(kind, enabled))
	return err
}
