// Package reminders provides the reminder scheduler, its delivery channels and
// the template and settings API.
package reminders

import (
	"time"

	"engagement_backend/internal/email"
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/internal/reminders/delivery"
	"engagement_backend/internal/reminders/handler"
	"engagement_backend/internal/reminders/repository"
	"engagement_backend/internal/reminders/service"
	"engagement_backend/internal/whatsapp"
	"engagement_backend/platform/config"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the subset of settings the module reads.
type Config interface {
	config.ReminderConfig
	config.WhatsAppConfig
	config.EmailConfig
	config.PhoneConfig
	IsEmailEnabled() bool
}

type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule wires the reminders module. appointments moves unanswered appointments to no_response.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, appointments service.NoResponseMarker, cfg Config, log *logger.Logger, loc *time.Location) *Module {
	var mail delivery.MailSender
	if cfg.IsEmailEnabled() {
		mail = email.NewSMTPSender(cfg)
	} else {
		log.Warn("SMTP not configured; email reminders disabled")
	}
	wa := whatsapp.NewClient(cfg, cfg.GetPhoneDefaultRegion(), log)
	if !wa.Enabled() {
		log.Warn("WhatsApp gateway not configured; WhatsApp reminders disabled")
	}

	svc := service.New(
		repository.New(pool),
		delivery.NewDispatcher(wa, mail),
		appointments,
		bus,
		log,
		loc,
		service.Options{
			SendTimeout: cfg.GetReminderSendTimeout(),
			Concurrency: cfg.GetReminderPassConcurrency(),
		},
	)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

func (m *Module) Name() string {
	return "reminders"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/reminders"))
}

var _ apphttp.Module = (*Module)(nil)
