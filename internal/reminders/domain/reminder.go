// Package domain decides when appointment reminders are due and renders
// their text. It has no I/O.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Kind is a reminder offset before the appointment start.
type Kind string

const (
	Kind24h Kind = "24h"
	Kind2h  Kind = "2h"
)

// Kinds lists every reminder kind, earliest offset first.
var Kinds = []Kind{Kind24h, Kind2h}

const MaxTemplateLength = 1000

func (k Kind) Valid() bool {
	return k == Kind24h || k == Kind2h
}

// Offset is how long before the start the reminder becomes due.
func (k Kind) Offset() time.Duration {
	switch k {
	case Kind24h:
		return 24 * time.Hour
	case Kind2h:
		return 2 * time.Hour
	}
	return 0
}

// Due reports whether now is inside the kind's window: past the threshold and
// before the start.
func Due(now, start time.Time, k Kind) bool {
	return !now.Before(start.Add(-k.Offset())) && now.Before(start)
}

// Decision is what a pass should do for one pending appointment.
type Decision struct {
	NoResponse bool
	Send       Kind
}

// Decide picks the action for a pending appointment given the kinds already
// dispatched. An appointment whose start has passed goes to no_response. When
// the 2h window is open the 24h reminder is never sent late.
func Decide(now, start time.Time, dispatched map[Kind]bool) Decision {
	if !now.Before(start) {
		return Decision{NoResponse: true}
	}
	if Due(now, start, Kind2h) {
		if dispatched[Kind2h] {
			return Decision{}
		}
		return Decision{Send: Kind2h}
	}
	if Due(now, start, Kind24h) && !dispatched[Kind24h] {
		return Decision{Send: Kind24h}
	}
	return Decision{}
}

// DefaultTemplate is used when the user never saved a template for k.
func DefaultTemplate(k Kind) string {
	if k == Kind2h {
		return "Oi [NOME]! Seu horário de [SERVIÇO] é daqui a pouco, às [HORA]."
	}
	return "Olá [NOME], confirmando seu horário de [SERVIÇO] para amanhã às [HORA]."
}

// ValidateTemplate rejects empty and oversized bodies.
func ValidateTemplate(body string) bool {
	body = strings.TrimSpace(body)
	return body != "" && utf8.RuneCountInString(body) <= MaxTemplateLength
}

// TemplateData fills the template tokens.
type TemplateData struct {
	Name    string
	Start   time.Time
	Service string
}

// SampleData is what template previews render against.
func SampleData(loc *time.Location) TemplateData {
	return TemplateData{
		Name:    "Maria Silva",
		Start:   time.Date(2026, 1, 30, 14, 30, 0, 0, loc),
		Service: "Limpeza de Pele",
	}
}

// Render substitutes [NOME], [DATA], [HORA] and [SERVIÇO]. Unknown tokens stay as written.
func Render(body string, d TemplateData, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = "cliente"
	}
	service := strings.TrimSpace(d.Service)
	if service == "" {
		service = "atendimento"
	}
	start := d.Start.In(loc)

	r := strings.NewReplacer(
		"[NOME]", name,
		"[DATA]", start.Format("02/01/2006"),
		"[HORA]", start.Format("15:04"),
		"[SERVIÇO]", service,
	)
	return r.Replace(body)
}

// Settings are the user's reminder switches.
type Settings struct {
	AutomaticRemindersEnabled bool `json:"automaticRemindersEnabled"`
}

// DefaultSettings apply when the user never saved any.
func DefaultSettings() Settings {
	return Settings{AutomaticRemindersEnabled: true}
}
