package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engagement_backend/internal/reminders/domain"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opListPending    = "reminders.repository.list_pending"
	opRecordDispatch = "reminders.repository.record_dispatch"
	opListTemplates  = "reminders.repository.list_templates"
	opSaveTemplate   = "reminders.repository.save_template"
	opGetSettings    = "reminders.repository.get_settings"
	opSaveSettings   = "reminders.repository.save_settings"
)

// PendingAppointment is a pending appointment with the client contact and the
// reminder kinds already dispatched for it.
type PendingAppointment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	LeadID     *uuid.UUID
	StartAt    time.Time
	Notes      *string
	LeadName   *string
	LeadPhone  *string
	LeadEmail  *string
	Dispatched map[domain.Kind]bool
}

// Dispatch is a reminder that was delivered.
type Dispatch struct {
	AppointmentID uuid.UUID
	Kind          domain.Kind
	Channel       string
	RenderedText  string
	SentAt        time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPending returns pending appointments starting before the cutoff,
// soonest first.
func (r *Repository) ListPending(ctx context.Context, before time.Time, limit int) ([]PendingAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.user_id, a.lead_id, a.start_at, a.notes, l.name, l.phone, l.email,
			COALESCE(array_agg(d.kind) FILTER (WHERE d.kind IS NOT NULL), '{}')
		FROM appointments a
		LEFT JOIN leads l ON l.id = a.lead_id
		LEFT JOIN reminder_dispatches d ON d.appointment_id = a.id
		WHERE a.confirmation_status = 'pending' AND a.start_at < $1
		GROUP BY a.id, l.id
		ORDER BY a.start_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list pending appointments failed: %v", err)).WithOp(opListPending)
	}
	defer rows.Close()

	items := make([]PendingAppointment, 0)
	for rows.Next() {
		var (
			p     PendingAppointment
			kinds []string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.LeadID, &p.StartAt, &p.Notes, &p.LeadName, &p.LeadPhone, &p.LeadEmail, &kinds); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan pending appointment failed: %v", err)).WithOp(opListPending)
		}
		p.Dispatched = make(map[domain.Kind]bool, len(kinds))
		for _, k := range kinds {
			p.Dispatched[domain.Kind(k)] = true
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate pending appointments failed: %v", err)).WithOp(opListPending)
	}
	return items, nil
}

// RecordDispatch stores a delivered reminder. It reports false when that kind
// was already recorded for the appointment.
func (r *Repository) RecordDispatch(ctx context.Context, d Dispatch) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_dispatches (appointment_id, kind, channel, rendered_text, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (appointment_id, kind) DO NOTHING
	`, d.AppointmentID, d.Kind, d.Channel, d.RenderedText, d.SentAt)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("record dispatch failed: %v", err)).WithOp(opRecordDispatch)
	}
	return tag.RowsAffected() == 1, nil
}

// ListTemplates returns the templates the user saved, keyed by kind.
func (r *Repository) ListTemplates(ctx context.Context, userID uuid.UUID) (map[domain.Kind]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, body FROM reminder_templates WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list templates failed: %v", err)).WithOp(opListTemplates)
	}
	defer rows.Close()

	out := make(map[domain.Kind]string)
	for rows.Next() {
		var kind, body string
		if err := rows.Scan(&kind, &body); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan template failed: %v", err)).WithOp(opListTemplates)
		}
		out[domain.Kind(kind)] = body
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate templates failed: %v", err)).WithOp(opListTemplates)
	}
	return out, nil
}

func (r *Repository) SaveTemplate(ctx context.Context, userID uuid.UUID, kind domain.Kind, body string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_templates (user_id, kind, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, kind) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, userID, kind, body)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("save template failed: %v", err)).WithOp(opSaveTemplate)
	}
	return nil
}

// GetSettings returns the defaults when the user never saved settings.
func (r *Repository) GetSettings(ctx context.Context, userID uuid.UUID) (domain.Settings, error) {
	var s domain.Settings
	err := r.pool.QueryRow(ctx, `
		SELECT automatic_reminders_enabled FROM reminder_settings WHERE user_id = $1
	`, userID).Scan(&s.AutomaticRemindersEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, apperr.Internal(fmt.Sprintf("get reminder settings failed: %v", err)).WithOp(opGetSettings)
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, userID uuid.UUID, s domain.Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_settings (user_id, automatic_reminders_enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET automatic_reminders_enabled = EXCLUDED.automatic_reminders_enabled, updated_at = now()
	`, userID, s.AutomaticRemindersEnabled)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("save reminder settings failed: %v", err)).WithOp(opSaveSettings)
	}
	return nil
}
