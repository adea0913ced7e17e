// Package events defines the domain events exchanged between the engine's
// modules. Infrastructure (Bus, Handler) lives in platform/events.
package events

import (
	"time"

	"engagement_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Appointments
// =============================================================================

// AppointmentCreated is published when an operator books a new appointment.
type AppointmentCreated struct {
	BaseEvent
	AppointmentID uuid.UUID  `json:"appointmentId"`
	UserID        uuid.UUID  `json:"userId"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	StartAt       time.Time  `json:"startAt"`
}

func (e AppointmentCreated) EventName() string { return "appointments.created" }

// AppointmentConfirmationChanged is published after a confirmation transition is persisted.
type AppointmentConfirmationChanged struct {
	BaseEvent
	AppointmentID uuid.UUID  `json:"appointmentId"`
	UserID        uuid.UUID  `json:"userId"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	Actor         string     `json:"actor"`
	Reason        string     `json:"reason,omitempty"`
}

func (e AppointmentConfirmationChanged) EventName() string {
	return "appointments.confirmation.changed"
}

// SchedulingConflict is published when a booking attempt overlaps an occupied slot.
type SchedulingConflict struct {
	BaseEvent
	UserID                   uuid.UUID  `json:"userId"`
	LeadID                   *uuid.UUID `json:"leadId,omitempty"`
	RequestedStart           time.Time  `json:"requestedStart"`
	RequestedEnd             time.Time  `json:"requestedEnd"`
	ConflictingAppointmentID uuid.UUID  `json:"conflictingAppointmentId"`
}

func (e SchedulingConflict) EventName() string { return "appointments.scheduling.conflict" }

// =============================================================================
// Reminders
// =============================================================================

// ReminderDispatched is published once a reminder was delivered and recorded.
type ReminderDispatched struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	UserID        uuid.UUID `json:"userId"`
	Kind          string    `json:"kind"`
	Channel       string    `json:"channel"`
}

func (e ReminderDispatched) EventName() string { return "reminders.dispatched" }

// =============================================================================
// Leads & conversations
// =============================================================================

// LeadMessageRecorded is published whenever a message to or from a lead is stored.
type LeadMessageRecorded struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	UserID    uuid.UUID `json:"userId"`
	Direction string    `json:"direction"`
}

func (e LeadMessageRecorded) EventName() string { return "leads.message.recorded" }

// SentimentEvaluated is published when a sentiment evaluation for a lead completes.
type SentimentEvaluated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	UserID    uuid.UUID `json:"userId"`
	Sentiment string    `json:"sentiment"`
}

func (e SentimentEvaluated) EventName() string { return "leads.sentiment.evaluated" }

// LeadScoreUpdated is published after a lead's priority score is overwritten.
type LeadScoreUpdated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	UserID uuid.UUID `json:"userId"`
	Score  float64   `json:"score"`
}

func (e LeadScoreUpdated) EventName() string { return "leads.score.updated" }

// FrustrationDetected is published when a client message reads as frustrated.
type FrustrationDetected struct {
	BaseEvent
	UserID uuid.UUID  `json:"userId"`
	LeadID *uuid.UUID `json:"leadId,omitempty"`
	Sample string     `json:"sample"`
}

func (e FrustrationDetected) EventName() string { return "conversations.frustration.detected" }

// LowConfidenceReply is published when an automated reply hedges or asks the client to repeat.
type LowConfidenceReply struct {
	BaseEvent
	UserID uuid.UUID  `json:"userId"`
	LeadID *uuid.UUID `json:"leadId,omitempty"`
	Reply  string     `json:"reply"`
}

func (e LowConfidenceReply) EventName() string { return "conversations.reply.low_confidence" }

// =============================================================================
// Alerts
// =============================================================================

// AlertCreated is published after an alert row is stored.
type AlertCreated struct {
	BaseEvent
	AlertID uuid.UUID  `json:"alertId"`
	UserID  uuid.UUID  `json:"userId"`
	Kind    string     `json:"kind"`
	LeadID  *uuid.UUID `json:"leadId,omitempty"`
	Message string     `json:"message"`
}

func (e AlertCreated) EventName() string { return "alerts.created" }
