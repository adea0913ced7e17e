package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimelineEntryType distinguishes the rows of an appointment's audit trail.
type TimelineEntryType string

const (
	EntryTransition     TimelineEntryType = "transition"
	EntryReminder       TimelineEntryType = "reminder"
	EntryClientResponse TimelineEntryType = "client_response"
)

// TransitionRecord is a persisted transition.
type TransitionRecord struct {
	ID        uuid.UUID
	From      ConfirmationStatus
	To        ConfirmationStatus
	Actor     Actor
	Reason    *string
	ReplyText *string
	CreatedAt time.Time
}

// DispatchRecord is the timeline view of a reminder dispatch.
type DispatchRecord struct {
	ID          uuid.UUID
	Kind        string
	Channel     string
	SentAt      time.Time
	Response    *string
	RespondedAt *time.Time
}

// TimelineEntry is one row of the merged audit trail.
type TimelineEntry struct {
	Type      TimelineEntryType   `json:"type"`
	At        time.Time           `json:"at"`
	From      *ConfirmationStatus `json:"from,omitempty"`
	To        *ConfirmationStatus `json:"to,omitempty"`
	Actor     *Actor              `json:"actor,omitempty"`
	Reason    *string             `json:"reason,omitempty"`
	ReplyText *string             `json:"replyText,omitempty"`
	Kind      *string             `json:"kind,omitempty"`
	Channel   *string             `json:"channel,omitempty"`
}

// BuildTimeline merges transitions and reminder dispatches into one list
// ordered by time. A captured reminder response becomes its own entry at the
// moment it arrived. Entries at the same instant keep reminders before
// responses before transitions, matching causal order.
func BuildTimeline(transitions []TransitionRecord, dispatches []DispatchRecord) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(transitions)+2*len(dispatches))

	for _, d := range dispatches {
		kind, channel := d.Kind, d.Channel
		entries = append(entries, TimelineEntry{
			Type:    EntryReminder,
			At:      d.SentAt,
			Kind:    &kind,
			Channel: &channel,
		})
		if d.Response != nil {
			at := d.SentAt
			if d.RespondedAt != nil {
				at = *d.RespondedAt
			}
			entries = append(entries, TimelineEntry{
				Type:      EntryClientResponse,
				At:        at,
				Kind:      &kind,
				ReplyText: d.Response,
			})
		}
	}

	for _, t := range transitions {
		from, to, actor := t.From, t.To, t.Actor
		entries = append(entries, TimelineEntry{
			Type:      EntryTransition,
			At:        t.CreatedAt,
			From:      &from,
			To:        &to,
			Actor:     &actor,
			Reason:    t.Reason,
			ReplyText: t.ReplyText,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entryRank(entries[i].Type) < entryRank(entries[j].Type)
		}
		return entries[i].At.Before(entries[j].At)
	})
	return entries
}

func entryRank(t TimelineEntryType) int {
	switch t {
	case EntryReminder:
		return 0
	case EntryClientResponse:
		return 1
	default:
		return 2
	}
}
