package handler

import (
	"net/http"

	"engagement_backend/internal/reminders/domain"
	"engagement_backend/internal/reminders/service"
	"engagement_backend/internal/reminders/transport"
	"engagement_backend/platform/httpkit"
	"engagement_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for reminder templates and settings
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/templates", h.ListTemplates)
	rg.PUT("/templates/:kind", h.SaveTemplate)
	rg.POST("/templates/:kind/preview", h.Preview)
	rg.GET("/settings", h.GetSettings)
	rg.PUT("/settings", h.SaveSettings)
}

// ListTemplates handles GET /api/v1/reminders/templates
func (h *Handler) ListTemplates(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Templates(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SaveTemplate handles PUT /api/v1/reminders/templates/:kind
func (h *Handler) SaveTemplate(c *gin.Context) {
	var req transport.SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
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

	result, err := h.svc.SaveTemplate(c.Request.Context(), identity.UserID(), domain.Kind(c.Param("kind")), req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Preview handles POST /api/v1/reminders/templates/:kind/preview
func (h *Handler) Preview(c *gin.Context) {
	var req transport.PreviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Preview(c.Request.Context(), identity.UserID(), domain.Kind(c.Param("kind")), req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetSettings handles GET /api/v1/reminders/settings
func (h *Handler) GetSettings(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Settings(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SaveSettings handles PUT /api/v1/reminders/settings
func (h *Handler) SaveSettings(c *gin.Context) {
	var req transport.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
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

	result, err := h.svc.SaveSettings(c.Request.Context(), identity.UserID(), domain.Settings{
		AutomaticRemindersEnabled: *req.AutomaticRemindersEnabled,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
