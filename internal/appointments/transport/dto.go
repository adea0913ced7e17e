package transport

import (
	"time"

	"engagement_backend/internal/appointments/domain"

	"github.com/google/uuid"
)

// CreateAppointmentRequest is the request body for booking an appointment.
// Date is YYYY-MM-DD and times are HH:MM in the operator's local zone.
type CreateAppointmentRequest struct {
	LeadID     *uuid.UUID `json:"leadId,omitempty"`
	Date       string     `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string     `json:"startTime" validate:"required,datetime=15:04"`
	EndTime    string     `json:"endTime" validate:"required,datetime=15:04"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
	PriceCents *int64     `json:"priceCents,omitempty" validate:"omitempty,min=0"`
}

// ListAppointmentsRequest holds the query parameters for listing appointments.
type ListAppointmentsRequest struct {
	From               string     `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To                 string     `form:"to" validate:"omitempty,datetime=2006-01-02"`
	ConfirmationStatus string     `form:"confirmationStatus" validate:"omitempty,oneof=pending confirmed cancelled no_response"`
	LeadID             *uuid.UUID `form:"leadId"`
}

// StatsRequest holds the query parameters for confirmation statistics.
type StatsRequest struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// CancelRequest is the body of a manual cancellation.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// AppointmentResponse is the response body for an appointment.
type AppointmentResponse struct {
	ID                     uuid.UUID                 `json:"id"`
	UserID                 uuid.UUID                 `json:"userId"`
	LeadID                 *uuid.UUID                `json:"leadId,omitempty"`
	LeadName               *string                   `json:"leadName,omitempty"`
	StartAt                time.Time                 `json:"startAt"`
	EndAt                  time.Time                 `json:"endAt"`
	Notes                  *string                   `json:"notes,omitempty"`
	PriceCents             *int64                    `json:"priceCents,omitempty"`
	Status                 domain.Status             `json:"status"`
	ConfirmationStatus     domain.ConfirmationStatus `json:"confirmationStatus"`
	ConfirmedByClient      bool                      `json:"confirmedByClient"`
	CancelledByClient      bool                      `json:"cancelledByClient"`
	ConfirmationReceivedAt *time.Time                `json:"confirmationReceivedAt,omitempty"`
	CancellationReason     *string                   `json:"cancellationReason,omitempty"`
	CreatedAt              time.Time                 `json:"createdAt"`
	UpdatedAt              time.Time                 `json:"updatedAt"`
}

// AppointmentListResponse wraps a list of appointments.
type AppointmentListResponse struct {
	Items []AppointmentResponse `json:"items"`
	Total int                   `json:"total"`
}

// StatsResponse summarises confirmation outcomes. Rates are whole percents.
type StatsResponse struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	Confirmed        int `json:"confirmed"`
	Cancelled        int `json:"cancelled"`
	NoResponse       int `json:"noResponse"`
	ConfirmationRate int `json:"confirmationRate"`
	CancellationRate int `json:"cancellationRate"`
}

// TimelineResponse is the audit trail of one appointment.
type TimelineResponse struct {
	AppointmentID uuid.UUID              `json:"appointmentId"`
	Entries       []domain.TimelineEntry `json:"entries"`
}

// DispatchResponse describes a reminder sent for an appointment.
type DispatchResponse struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	Channel     string     `json:"channel"`
	SentAt      time.Time  `json:"sentAt"`
	Response    *string    `json:"response,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}
