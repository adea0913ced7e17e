package handler

import (
	"net/http"

	"engagement_backend/internal/leads/service"
	"engagement_backend/internal/leads/transport"
	"engagement_backend/platform/httpkit"
	"engagement_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for leads
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the lead routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/followup", h.FollowUpQueue)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.PATCH("/:id/manual-override", h.SetManualOverride)
	rg.POST("/:id/followup", h.SendFollowUp)
	rg.GET("/:id/followup", h.FollowUpHistory)
	rg.POST("/:id/score/recompute", h.Recompute)
}

// bindJSON decodes and validates a request body, writing the error response on failure.
func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return false
	}
	return true
}

// Create handles POST /api/v1/leads
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// List handles GET /api/v1/leads
func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.List(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// FollowUpQueue handles GET /api/v1/leads/followup
func (h *Handler) FollowUpQueue(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ListNeedingFollowUp(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID handles GET /api/v1/leads/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateStatus handles PATCH /api/v1/leads/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.UpdateStatus(c.Request.Context(), identity.UserID(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SetManualOverride handles PATCH /api/v1/leads/:id/manual-override
func (h *Handler) SetManualOverride(c *gin.Context) {
	id, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.ManualOverrideRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.SetManualOverride(c.Request.Context(), identity.UserID(), id, req.Enabled)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SendFollowUp handles POST /api/v1/leads/:id/followup
func (h *Handler) SendFollowUp(c *gin.Context) {
	id, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.FollowUpRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.SendFollowUp(c.Request.Context(), identity.UserID(), id, req.Message)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// FollowUpHistory handles GET /api/v1/leads/:id/followup
func (h *Handler) FollowUpHistory(c *gin.Context) {
	id, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.FollowUpHistory(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

// Recompute handles POST /api/v1/leads/:id/score/recompute
func (h *Handler) Recompute(c *gin.Context) {
	id, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Recompute(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
