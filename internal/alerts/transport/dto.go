package transport

import (
	"engagement_backend/internal/alerts/repository"
)

// ListAlertsRequest holds the query parameters for listing alerts.
// The dashboard banner asks for unread=true&limit=3.
type ListAlertsRequest struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit" validate:"omitempty,min=1,max=100"`
}

type AlertListResponse struct {
	Items  []repository.Alert `json:"items"`
	Unread int                `json:"unread"`
}

// UpdatePreferencesRequest replaces the switches that are present in the body.
type UpdatePreferencesRequest struct {
	AlertFrustrated  *bool `json:"alertFrustrated"`
	AlertUnconfident *bool `json:"alertUnconfident"`
	AlertConflict    *bool `json:"alertConflict"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
