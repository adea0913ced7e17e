// Package domain holds the appointment confirmation lifecycle. It is pure:
// no I/O, no clock reads; callers pass the time in.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ConfirmationStatus is the fine-grained client confirmation state.
type ConfirmationStatus string

const (
	StatusPending    ConfirmationStatus = "pending"
	StatusConfirmed  ConfirmationStatus = "confirmed"
	StatusCancelled  ConfirmationStatus = "cancelled"
	StatusNoResponse ConfirmationStatus = "no_response"
)

// Valid reports whether s is a known confirmation status.
func (s ConfirmationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusNoResponse:
		return true
	}
	return false
}

// Status is the coarse scheduling status shown on calendars.
type Status string

const (
	CoarseScheduled Status = "scheduled"
	CoarseConfirmed Status = "confirmed"
	CoarseCancelled Status = "cancelled"
)

// Actor identifies who triggered a transition.
type Actor string

const (
	ActorClient    Actor = "client"
	ActorOperator  Actor = "operator"
	ActorScheduler Actor = "scheduler"
)

// Transition names a lifecycle operation.
type Transition string

const (
	TransitionConfirm    Transition = "confirm"
	TransitionCancel     Transition = "cancel"
	TransitionNoResponse Transition = "no_response"
	TransitionReopen     Transition = "reopen"
)

var (
	// ErrInvalidTransition is returned when the current state does not allow the transition.
	ErrInvalidTransition = errors.New("invalid confirmation transition")
	// ErrActorNotAllowed is returned when the actor may not trigger the transition.
	ErrActorNotAllowed = errors.New("actor not allowed for transition")
)

type rule struct {
	target ConfirmationStatus
	from   []ConfirmationStatus
	actors []Actor
}

var rules = map[Transition]rule{
	TransitionConfirm: {
		target: StatusConfirmed,
		from:   []ConfirmationStatus{StatusPending},
		actors: []Actor{ActorClient, ActorOperator},
	},
	TransitionCancel: {
		target: StatusCancelled,
		from:   []ConfirmationStatus{StatusPending, StatusNoResponse},
		actors: []Actor{ActorClient, ActorOperator},
	},
	TransitionNoResponse: {
		target: StatusNoResponse,
		from:   []ConfirmationStatus{StatusPending},
		actors: []Actor{ActorScheduler},
	},
	TransitionReopen: {
		target: StatusPending,
		from:   []ConfirmationStatus{StatusConfirmed, StatusCancelled},
		actors: []Actor{ActorOperator},
	},
}

// Target returns the state a transition leads to.
func (t Transition) Target() ConfirmationStatus {
	return rules[t].target
}

// Confirmation is the mutable confirmation slice of an appointment row.
type Confirmation struct {
	Status                 ConfirmationStatus
	Coarse                 Status
	ConfirmedByClient      bool
	CancelledByClient      bool
	ConfirmationReceivedAt *time.Time
	CancellationReason     *string
}

// Request carries the trigger context of a transition.
type Request struct {
	Actor     Actor
	Reason    string
	ReplyText string
	At        time.Time
}

// Change describes an applied transition; it becomes a timeline entry.
type Change struct {
	Transition Transition
	From       ConfirmationStatus
	To         ConfirmationStatus
	Actor      Actor
	Reason     string
	ReplyText  string
	At         time.Time
}

// Apply computes the result of t on c. When c already sits in the target
// state it returns c unchanged with a nil Change.
func (c Confirmation) Apply(t Transition, req Request) (Confirmation, *Change, error) {
	r, ok := rules[t]
	if !ok {
		return c, nil, fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, t)
	}
	if c.Status == r.target {
		return c, nil, nil
	}
	if !containsActor(r.actors, req.Actor) {
		return c, nil, fmt.Errorf("%w: %s cannot %s", ErrActorNotAllowed, req.Actor, t)
	}
	if !containsStatus(r.from, c.Status) {
		return c, nil, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, c.Status)
	}

	next := c
	next.Status = r.target

	switch t {
	case TransitionConfirm:
		at := req.At
		next.Coarse = CoarseConfirmed
		next.ConfirmedByClient = true
		next.CancelledByClient = false
		next.ConfirmationReceivedAt = &at
	case TransitionCancel:
		next.Coarse = CoarseCancelled
		next.CancelledByClient = true
		next.ConfirmedByClient = false
		next.CancellationReason = nil
		if req.Reason != "" {
			reason := req.Reason
			next.CancellationReason = &reason
		}
	case TransitionNoResponse:
		// coarse status stays as scheduled
	case TransitionReopen:
		next.Coarse = CoarseScheduled
		next.ConfirmedByClient = false
		next.CancelledByClient = false
		next.ConfirmationReceivedAt = nil
		next.CancellationReason = nil
	}

	return next, &Change{
		Transition: t,
		From:       c.Status,
		To:         r.target,
		Actor:      req.Actor,
		Reason:     req.Reason,
		ReplyText:  req.ReplyText,
		At:         req.At,
	}, nil
}

// NewConfirmation is the initial state of every appointment.
func NewConfirmation() Confirmation {
	return Confirmation{Status: StatusPending, Coarse: CoarseScheduled}
}

func containsActor(list []Actor, a Actor) bool {
	for _, item := range list {
		if item == a {
			return true
		}
	}
	return false
}

func containsStatus(list []ConfirmationStatus, s ConfirmationStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
