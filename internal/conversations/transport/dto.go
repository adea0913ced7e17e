package transport

import (
	"time"

	"engagement_backend/internal/conversations/classifier"

	"github.com/google/uuid"
)

type IngestMessageRequest struct {
	AppointmentID *uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID  `json:"leadId" validate:"required"`
	Text          string     `json:"text" validate:"required,max=4000"`
	Direction     string     `json:"direction" validate:"required,oneof=inbound outbound"`
	ReceivedAt    *time.Time `json:"receivedAt"`
}

// Outcome names what an inbound message did to its appointment.
type Outcome string

const (
	OutcomeNone       Outcome = "none"
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeNotApplied Outcome = "not_applied"
)

type IngestMessageResponse struct {
	Intent     classifier.Intent `json:"intent"`
	Frustrated bool              `json:"frustrated"`
	Outcome    Outcome           `json:"outcome"`
}

type RecordReplyRequest struct {
	LeadID *uuid.UUID `json:"leadId"`
	Text   string     `json:"text" validate:"required,max=4000"`
}

type RecordReplyResponse struct {
	LowConfidence bool `json:"lowConfidence"`
}

type RecordSentimentRequest struct {
	LeadID    *uuid.UUID `json:"leadId"`
	Sentiment string     `json:"sentiment" validate:"required,max=32"`
	Sample    string     `json:"sample" validate:"max=4000"`
}
