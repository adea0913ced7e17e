package transport

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the funnel position of a lead.
type LeadStatus string

const (
	LeadStatusInterested LeadStatus = "interested"
	LeadStatusScheduled  LeadStatus = "scheduled"
	LeadStatusConverted  LeadStatus = "converted"
)

// CreateLeadRequest is the request body for registering a lead.
type CreateLeadRequest struct {
	Name  string `json:"name" validate:"required,notblank,max=200"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// UpdateStatusRequest moves a lead along the funnel. Older display labels are accepted.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,notblank"`
}

// ManualOverrideRequest pins the lead status against automatic changes.
type ManualOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

// FollowUpRequest is the body of a follow-up message.
type FollowUpRequest struct {
	Message string `json:"message" validate:"required,notblank,max=2000"`
}

// ListLeadsRequest holds the query parameters for listing leads.
type ListLeadsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=interested scheduled converted"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// LeadResponse is the response body for a lead.
type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Phone             *string    `json:"phone,omitempty"`
	Email             *string    `json:"email,omitempty"`
	Status            LeadStatus `json:"status"`
	ManualOverride    bool       `json:"manualOverride"`
	LastInteractionAt *time.Time `json:"lastInteractionAt,omitempty"`
	PriorityScore     float64    `json:"priorityScore"`
	NeedsFollowUp     bool       `json:"needsFollowUp"`
	FollowUpSent      bool       `json:"followUpSent"`
	LastFollowUpAt    *time.Time `json:"lastFollowUpAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// LeadListResponse wraps a list of leads.
type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

// ScoreResponse is returned after a recomputation.
type ScoreResponse struct {
	LeadID uuid.UUID `json:"leadId"`
	Score  float64   `json:"score"`
}
