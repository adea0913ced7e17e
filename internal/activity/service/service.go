package service

import (
	"context"
	"time"

	"engagement_backend/internal/activity/repository"
	"engagement_backend/internal/activity/transport"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	ActionConfirmation = "confirmation"
	ExecutedByUser     = "user"

	defaultLimit = 50
)

var ranges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"48h": 48 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// Store is the persistence the service depends on.
type Store interface {
	Insert(ctx context.Context, e *repository.Entry) error
	List(ctx context.Context, p repository.ListParams) ([]repository.Entry, error)
}

// Service records and queries operator actions.
type Service struct {
	repo Store
	now  func() time.Time
}

func New(repo Store) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RecordConfirmation logs a manual confirmation-status change made by the operator.
func (s *Service) RecordConfirmation(ctx context.Context, userID uuid.UUID, leadID *uuid.UUID, description string, details map[string]interface{}) error {
	return s.repo.Insert(ctx, &repository.Entry{
		UserID:      userID,
		LeadID:      leadID,
		ActionType:  ActionConfirmation,
		Description: description,
		ExecutedBy:  ExecutedByUser,
		Details:     details,
	})
}

// List returns the user's activity, optionally limited to one lead, one action
// type and a recent window.
func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListActivityRequest) (transport.ActivityListResponse, error) {
	params := repository.ListParams{UserID: userID, ActionType: req.ActionType, Limit: req.Limit}
	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}
	if req.LeadID != "" {
		id, err := uuid.Parse(req.LeadID)
		if err != nil {
			return transport.ActivityListResponse{}, apperr.Validation("invalid leadId")
		}
		params.LeadID = &id
	}
	if req.Range != "" {
		window, ok := ranges[req.Range]
		if !ok {
			return transport.ActivityListResponse{}, apperr.Validation("range must be 24h, 48h or 7d")
		}
		since := s.now().Add(-window)
		params.Since = &since
	}

	items, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.ActivityListResponse{}, err
	}
	return transport.ActivityListResponse{Items: items, Total: len(items)}, nil
}
