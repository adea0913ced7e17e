// Package appointments provides the appointments domain module: booking,
// the client confirmation lifecycle and its audit trail.
package appointments

import (
	"time"

	"engagement_backend/internal/appointments/handler"
	"engagement_backend/internal/appointments/repository"
	"engagement_backend/internal/appointments/service"
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the appointments domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new appointments module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, activity service.ActivityRecorder, log *logger.Logger, loc *time.Location) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, activity, log, loc)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "appointments"
}

// RegisterRoutes registers the module's routes under /api/v1/appointments
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/appointments"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
