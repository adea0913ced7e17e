// Package activity provides the operator activity log.
package activity

import (
	"engagement_backend/internal/activity/handler"
	"engagement_backend/internal/activity/repository"
	"engagement_backend/internal/activity/service"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	Service *service.Service
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool))
	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

func (m *Module) Name() string {
	return "activity"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/activity"))
}

var _ apphttp.Module = (*Module)(nil)
