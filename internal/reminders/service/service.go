package service

import (
	"context"
	"strings"
	"time"

	"engagement_backend/internal/events"
	"engagement_backend/internal/reminders/delivery"
	"engagement_backend/internal/reminders/domain"
	"engagement_backend/internal/reminders/repository"
	"engagement_backend/internal/reminders/transport"
	"engagement_backend/platform/apperr"
	"engagement_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultConcurrency = 8
	defaultBatchSize   = 500
)

// Store is the persistence the service depends on.
type Store interface {
	ListPending(ctx context.Context, before time.Time, limit int) ([]repository.PendingAppointment, error)
	RecordDispatch(ctx context.Context, d repository.Dispatch) (bool, error)
	ListTemplates(ctx context.Context, userID uuid.UUID) (map[domain.Kind]string, error)
	SaveTemplate(ctx context.Context, userID uuid.UUID, kind domain.Kind, body string) error
	GetSettings(ctx context.Context, userID uuid.UUID) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID uuid.UUID, s domain.Settings) error
}

// Sender delivers a rendered reminder and reports the channel used.
type Sender interface {
	Send(ctx context.Context, to delivery.Recipient, text string) (string, error)
}

// NoResponseMarker moves an appointment whose start passed without an answer to no_response.
type NoResponseMarker interface {
	MarkNoResponse(ctx context.Context, userID, id uuid.UUID) error
}

// Options tune the reminder pass.
type Options struct {
	SendTimeout time.Duration
	Concurrency int
	BatchSize   int
}

// Service runs reminder passes and manages templates and settings.
type Service struct {
	repo         Store
	sender       Sender
	appointments NoResponseMarker
	eventBus     events.Bus
	log          *logger.Logger
	loc          *time.Location
	opts         Options
	now          func() time.Time
}

func New(repo Store, sender Sender, appointments NoResponseMarker, eventBus events.Bus, log *logger.Logger, loc *time.Location, opts Options) *Service {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:         repo,
		sender:       sender,
		appointments: appointments,
		eventBus:     eventBus,
		log:          log.WithComponent("reminders"),
		loc:          loc,
		opts:         opts,
		now:          time.Now,
	}
}

// Templates returns both kinds, falling back to the built-in text.
func (s *Service) Templates(ctx context.Context, userID uuid.UUID) (transport.TemplateListResponse, error) {
	saved, err := s.repo.ListTemplates(ctx, userID)
	if err != nil {
		return transport.TemplateListResponse{}, err
	}
	resp := transport.TemplateListResponse{Items: make([]transport.TemplateResponse, 0, len(domain.Kinds))}
	for _, k := range domain.Kinds {
		body, ok := saved[k]
		if !ok {
			body = domain.DefaultTemplate(k)
		}
		resp.Items = append(resp.Items, transport.TemplateResponse{Kind: k, Body: body, IsDefault: !ok})
	}
	return resp, nil
}

func (s *Service) SaveTemplate(ctx context.Context, userID uuid.UUID, kind domain.Kind, body string) (transport.TemplateResponse, error) {
	if !kind.Valid() {
		return transport.TemplateResponse{}, apperr.Validation("kind must be 24h or 2h")
	}
	body = strings.TrimSpace(body)
	if !domain.ValidateTemplate(body) {
		return transport.TemplateResponse{}, apperr.Validation("template must be between 1 and 1000 characters")
	}
	if err := s.repo.SaveTemplate(ctx, userID, kind, body); err != nil {
		return transport.TemplateResponse{}, err
	}
	return transport.TemplateResponse{Kind: kind, Body: body}, nil
}

// Preview renders body, or the current template when body is empty, against sample data.
func (s *Service) Preview(ctx context.Context, userID uuid.UUID, kind domain.Kind, body string) (transport.PreviewResponse, error) {
	if !kind.Valid() {
		return transport.PreviewResponse{}, apperr.Validation("kind must be 24h or 2h")
	}
	if strings.TrimSpace(body) == "" {
		var err error
		body, err = s.template(ctx, userID, kind)
		if err != nil {
			return transport.PreviewResponse{}, err
		}
	}
	return transport.PreviewResponse{
		Kind:     kind,
		Rendered: domain.Render(body, domain.SampleData(s.loc), s.loc),
	}, nil
}

func (s *Service) Settings(ctx context.Context, userID uuid.UUID) (domain.Settings, error) {
	return s.repo.GetSettings(ctx, userID)
}

func (s *Service) SaveSettings(ctx context.Context, userID uuid.UUID, settings domain.Settings) (domain.Settings, error) {
	if err := s.repo.SaveSettings(ctx, userID, settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *Service) template(ctx context.Context, userID uuid.UUID, kind domain.Kind) (string, error) {
	saved, err := s.repo.ListTemplates(ctx, userID)
	if err != nil {
		return "", err
	}
	if body, ok := saved[kind]; ok {
		return body, nil
	}
	return domain.DefaultTemplate(kind), nil
}
