// Package leads provides the lead management module: the funnel status, the
// priority score and the follow-up queue.
package leads

import (
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/internal/leads/handler"
	"engagement_backend/internal/leads/repository"
	"engagement_backend/internal/leads/service"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads module implementing http.Module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
// The service subscribes to message, sentiment and appointment events on eventBus.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger, phoneRegion string) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log, phoneRegion)
	svc.RegisterHandlers(eventBus)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts lead routes on the protected API group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
