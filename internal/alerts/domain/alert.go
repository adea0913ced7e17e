// Package domain holds the alert kinds, per-user preferences and message
// composition used by the alert engine.
package domain

import (
	"fmt"

	"engagement_backend/platform/sanitize"
)

// Kind identifies the risk condition an alert reports.
type Kind string

const (
	KindFrustrated  Kind = "frustrated"
	KindUnconfident Kind = "unconfident"
	KindConflict    Kind = "conflict"
)

// ExcerptLimit bounds how much of the triggering text is embedded in a message.
const ExcerptLimit = 50

func (k Kind) Valid() bool {
	switch k {
	case KindFrustrated, KindUnconfident, KindConflict:
		return true
	}
	return false
}

// Preferences are the per-user switches, one per alert kind.
type Preferences struct {
	Frustrated  bool `json:"alertFrustrated"`
	Unconfident bool `json:"alertUnconfident"`
	Conflict    bool `json:"alertConflict"`
}

// DefaultPreferences applies when the user never saved any.
func DefaultPreferences() Preferences {
	return Preferences{Frustrated: true, Unconfident: true, Conflict: true}
}

// Allows reports whether alerts of kind should be raised. Unknown kinds are dropped.
func (p Preferences) Allows(k Kind) bool {
	switch k {
	case KindFrustrated:
		return p.Frustrated
	case KindUnconfident:
		return p.Unconfident
	case KindConflict:
		return p.Conflict
	}
	return false
}

// With returns a copy with the switch for kind set to enabled.
func (p Preferences) With(k Kind, enabled bool) Preferences {
	switch k {
	case KindFrustrated:
		p.Frustrated = enabled
	case KindUnconfident:
		p.Unconfident = enabled
	case KindConflict:
		p.Conflict = enabled
	}
	return p
}

// PreferenceChange names the switches to set; nil fields are left alone.
type PreferenceChange struct {
	Frustrated  *bool
	Unconfident *bool
	Conflict    *bool
}

// Apply returns p with the present switches of c set.
func (c PreferenceChange) Apply(p Preferences) Preferences {
	if c.Frustrated != nil {
		p = p.With(KindFrustrated, *c.Frustrated)
	}
	if c.Unconfident != nil {
		p = p.With(KindUnconfident, *c.Unconfident)
	}
	if c.Conflict != nil {
		p = p.With(KindConflict, *c.Conflict)
	}
	return p
}

// ChangeFor builds a change that sets only the switch of kind.
func ChangeFor(k Kind, enabled bool) PreferenceChange {
	var c PreferenceChange
	switch k {
	case KindFrustrated:
		c.Frustrated = &enabled
	case KindUnconfident:
		c.Unconfident = &enabled
	case KindConflict:
		c.Conflict = &enabled
	}
	return c
}

// Message builds the human-readable alert text for kind. sample is the
// triggering text, or the formatted slot for conflicts.
func Message(k Kind, sample string) string {
	excerpt := sanitize.Excerpt(sample, ExcerptLimit)
	switch k {
	case KindFrustrated:
		return fmt.Sprintf("Cliente frustrado detectado: %q", excerpt)
	case KindUnconfident:
		return fmt.Sprintf("IA insegura na resposta: %q", excerpt)
	case KindConflict:
		return fmt.Sprintf("Conflito de agenda em %s", excerpt)
	}
	return excerpt
}
