// Package alerts provides the alert engine and the user's alert inbox.
package alerts

import (
	"time"

	"engagement_backend/internal/alerts/handler"
	"engagement_backend/internal/alerts/repository"
	"engagement_backend/internal/alerts/service"
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule wires the alerts module and subscribes the engine on bus.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, log *logger.Logger, loc *time.Location) *Module {
	svc := service.New(repository.New(pool), bus, log, loc)
	svc.RegisterHandlers(bus)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

func (m *Module) Name() string {
	return "alerts"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/alerts"))
}

var _ apphttp.Module = (*Module)(nil)
