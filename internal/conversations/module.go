// Package conversations accepts message traffic with leads and classifies
// client replies into appointment answers and alert signals.
package conversations

import (
	"fmt"

	"engagement_backend/internal/conversations/classifier"
	"engagement_backend/internal/conversations/handler"
	"engagement_backend/internal/conversations/service"
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/config"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
}

// NewModule loads the reply lexicon and wires the conversation endpoints.
func NewModule(cfg config.ClassifierConfig, leads service.LeadRecorder, appointments service.AppointmentResponder, bus events.Bus, val *validator.Validator, log *logger.Logger) (*Module, error) {
	lex, err := classifier.LoadLexicon(cfg.GetClassifierLexiconPath())
	if err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}
	svc := service.New(leads, appointments, classifier.New(lex), bus, log)
	return &Module{handler: handler.New(svc, val)}, nil
}

func (m *Module) Name() string {
	return "conversations"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/conversations"))
}

var _ apphttp.Module = (*Module)(nil)
