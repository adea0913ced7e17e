// Package notification pushes domain events to operators' browsers over SSE,
// relaying them between processes through Redis.
package notification

import (
	"context"

	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/internal/notification/sse"
	"engagement_backend/platform/httpkit"
	"engagement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module owns the SSE hub of the API process.
type Module struct {
	hub   *sse.Service
	relay *sse.RedisRelay
	log   *logger.Logger
}

// NewModule projects bus events onto the local SSE hub. relay may be nil when
// Redis is not configured; events from other processes are then not received.
func NewModule(bus events.Bus, relay *sse.RedisRelay, log *logger.Logger) *Module {
	hub := sse.New(log)
	sse.NewProjector(hub).RegisterHandlers(bus)
	return &Module{hub: hub, relay: relay, log: log}
}

// NewRelayPublisher projects bus events onto the relay channel. Processes
// without HTTP clients use it so the API process can deliver their events.
func NewRelayPublisher(bus events.Bus, relay *sse.RedisRelay) {
	sse.NewProjector(relay).RegisterHandlers(bus)
}

func (m *Module) Name() string {
	return "notification"
}

// Start forwards relayed events to local streams until ctx is cancelled.
func (m *Module) Start(ctx context.Context) {
	if m.relay == nil {
		return
	}
	go func() {
		if err := m.relay.Forward(ctx, m.hub); err != nil {
			m.log.Error("realtime relay stopped", "error", err)
		}
	}()
}

// Close disconnects every open stream.
func (m *Module) Close() {
	m.hub.Close()
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", m.hub.Handler(identityUserID))
}

func identityUserID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if identity == nil || !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

var _ apphttp.Module = (*Module)(nil)
