package transport

import (
	"engagement_backend/internal/activity/repository"
)

// ListActivityRequest holds the query parameters for the activity log.
type ListActivityRequest struct {
	LeadID     string `form:"leadId" validate:"omitempty,uuid"`
	ActionType string `form:"actionType" validate:"omitempty,max=50"`
	Range      string `form:"range" validate:"omitempty,oneof=24h 48h 7d"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// ActivityListResponse wraps activity entries.
type ActivityListResponse struct {
	Items []repository.Entry `json:"items"`
	Total int                `json:"total"`
}
