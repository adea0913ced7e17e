package transport

import (
	"engagement_backend/internal/reminders/domain"
)

// TemplateResponse is one reminder template. IsDefault is set when the user
// never saved a template for the kind.
type TemplateResponse struct {
	Kind      domain.Kind `json:"kind"`
	Body      string      `json:"body"`
	IsDefault bool        `json:"isDefault"`
}

type TemplateListResponse struct {
	Items []TemplateResponse `json:"items"`
}

type SaveTemplateRequest struct {
	Body string `json:"body" validate:"required,notblank,max=1000"`
}

// PreviewRequest renders Body, or the stored template when Body is empty.
type PreviewRequest struct {
	Body string `json:"body" validate:"omitempty,max=1000"`
}

type PreviewResponse struct {
	Kind     domain.Kind `json:"kind"`
	Rendered string      `json:"rendered"`
}

type SettingsRequest struct {
	AutomaticRemindersEnabled *bool `json:"automaticRemindersEnabled" validate:"required"`
}

// PassResult summarises one reminder pass.
type PassResult struct {
	Scanned    int `json:"scanned"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	NoResponse int `json:"noResponse"`
	Skipped    int `json:"skipped"`
}
