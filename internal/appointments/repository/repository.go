package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"engagement_backend/internal/appointments/domain"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate          = "appointments.repository.create"
	opGet             = "appointments.repository.get"
	opList            = "appointments.repository.list"
	opApplyTransition = "appointments.repository.apply_transition"
	opListTransitions = "appointments.repository.list_transitions"
	opListDispatches  = "appointments.repository.list_dispatches"
	opAttachResponse  = "appointments.repository.attach_response"
	opStats           = "appointments.repository.stats"

	appointmentNotFound = "appointment not found"
)

// Appointment is the appointments row.
type Appointment struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	LeadID                 *uuid.UUID
	LeadName               *string
	StartAt                time.Time
	EndAt                  time.Time
	Notes                  *string
	PriceCents             *int64
	Status                 domain.Status
	ConfirmationStatus     domain.ConfirmationStatus
	ConfirmedByClient      bool
	CancelledByClient      bool
	ConfirmationReceivedAt *time.Time
	CancellationReason     *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Confirmation extracts the state machine view of the row.
func (a Appointment) Confirmation() domain.Confirmation {
	return domain.Confirmation{
		Status:                 a.ConfirmationStatus,
		Coarse:                 a.Status,
		ConfirmedByClient:      a.ConfirmedByClient,
		CancelledByClient:      a.CancelledByClient,
		ConfirmationReceivedAt: a.ConfirmationReceivedAt,
		CancellationReason:     a.CancellationReason,
	}
}

// ListParams filters appointment listings.
type ListParams struct {
	UserID             uuid.UUID
	From               *time.Time
	To                 *time.Time
	ConfirmationStatus *domain.ConfirmationStatus
	LeadID             *uuid.UUID
}

// Stats counts appointments per confirmation status.
type Stats struct {
	Total      int
	Pending    int
	Confirmed  int
	Cancelled  int
	NoResponse int
}

// Repository provides database operations for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `
	a.id, a.user_id, a.lead_id, l.name, a.start_at, a.end_at, a.notes, a.price_cents,
	a.status, a.confirmation_status, a.confirmed_by_client, a.cancelled_by_client,
	a.confirmation_received_at, a.cancellation_reason, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	var status, confirmation string
	err := row.Scan(
		&a.ID, &a.UserID, &a.LeadID, &a.LeadName, &a.StartAt, &a.EndAt, &a.Notes, &a.PriceCents,
		&status, &confirmation, &a.ConfirmedByClient, &a.CancelledByClient,
		&a.ConfirmationReceivedAt, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Status = domain.Status(status)
	a.ConfirmationStatus = domain.ConfirmationStatus(confirmation)
	return a, err
}

// CreateIfFree inserts appt unless it overlaps a non-cancelled appointment of
// the same user. On overlap nothing is written and the id of the blocking
// appointment is returned. Bookings of one user are serialised with an
// advisory lock so two concurrent requests cannot both take the slot.
func (r *Repository) CreateIfFree(ctx context.Context, appt *Appointment) (*uuid.UUID, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Unavailable("begin create appointment", err).WithOp(opCreate)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, appt.UserID); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("lock user calendar failed: %v", err)).WithOp(opCreate)
	}

	var conflicting uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM appointments
		WHERE user_id = $1 AND status <> 'cancelled' AND start_at < $3 AND end_at > $2
		ORDER BY start_at
		LIMIT 1
	`, appt.UserID, appt.StartAt, appt.EndAt).Scan(&conflicting)
	switch {
	case err == nil:
		return &conflicting, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, apperr.Internal(fmt.Sprintf("overlap check failed: %v", err)).WithOp(opCreate)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, lead_id, start_at, end_at, notes, price_cents, status, confirmation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, appt.ID, appt.UserID, appt.LeadID, appt.StartAt, appt.EndAt, appt.Notes, appt.PriceCents,
		string(appt.Status), string(appt.ConfirmationStatus),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, apperr.Validation("invalid leadId").WithOp(opCreate)
		}
		return nil, apperr.Internal(fmt.Sprintf("create appointment failed: %v", err)).WithOp(opCreate)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("commit appointment failed: %v", err)).WithOp(opCreate)
	}
	return nil, nil
}

// GetByID loads an appointment owned by userID.
func (r *Repository) GetByID(ctx context.Context, id, userID uuid.UUID) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM appointments a
		LEFT JOIN leads l ON l.id = a.lead_id
		WHERE a.id = $1 AND a.user_id = $2
	`, id, userID)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, apperr.NotFound(appointmentNotFound).WithOp(opGet)
		}
		return Appointment{}, apperr.Internal(fmt.Sprintf("get appointment failed: %v", err)).WithOp(opGet)
	}
	return appt, nil
}

// List returns appointments ordered by start time.
func (r *Repository) List(ctx context.Context, p ListParams) ([]Appointment, error) {
	where := []string{"a.user_id = $1"}
	args := []interface{}{p.UserID}

	if p.From != nil {
		args = append(args, *p.From)
		where = append(where, fmt.Sprintf("a.start_at >= $%d", len(args)))
	}
	if p.To != nil {
		args = append(args, *p.To)
		where = append(where, fmt.Sprintf("a.start_at < $%d", len(args)))
	}
	if p.ConfirmationStatus != nil {
		args = append(args, string(*p.ConfirmationStatus))
		where = append(where, fmt.Sprintf("a.confirmation_status = $%d", len(args)))
	}
	if p.LeadID != nil {
		args = append(args, *p.LeadID)
		where = append(where, fmt.Sprintf("a.lead_id = $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM appointments a
		LEFT JOIN leads l ON l.id = a.lead_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY a.start_at ASC
	`, args...)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list appointments query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan appointment failed: %v", err)).WithOp(opList)
		}
		items = append(items, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate appointments failed: %v", err)).WithOp(opList)
	}
	return items, nil
}

// ApplyTransition writes next over the row only while it still holds the
// expected confirmation status, and appends the transition record in the same
// transaction. It reports false when another writer changed the row first.
func (r *Repository) ApplyTransition(ctx context.Context, id, userID uuid.UUID, expected domain.ConfirmationStatus, next domain.Confirmation, change domain.Change) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, apperr.Unavailable("begin transition", err).WithOp(opApplyTransition)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET
			confirmation_status = $4,
			status = $5,
			confirmed_by_client = $6,
			cancelled_by_client = $7,
			confirmation_received_at = $8,
			cancellation_reason = $9,
			updated_at = $10
		WHERE id = $1 AND user_id = $2 AND confirmation_status = $3
	`, id, userID, string(expected), string(next.Status), string(next.Coarse),
		next.ConfirmedByClient, next.CancelledByClient, next.ConfirmationReceivedAt,
		next.CancellationReason, change.At)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("update confirmation failed: %v", err)).WithOp(opApplyTransition)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO appointment_transitions (appointment_id, from_status, to_status, actor, reason, reply_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, string(change.From), string(change.To), string(change.Actor),
		nullIfEmpty(change.Reason), nullIfEmpty(change.ReplyText), change.At); err != nil {
		return false, apperr.Internal(fmt.Sprintf("insert transition failed: %v", err)).WithOp(opApplyTransition)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, apperr.Internal(fmt.Sprintf("commit transition failed: %v", err)).WithOp(opApplyTransition)
	}
	return true, nil
}

// ListTransitions returns the transition history of an appointment, oldest first.
func (r *Repository) ListTransitions(ctx context.Context, appointmentID uuid.UUID) ([]domain.TransitionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, from_status, to_status, actor, reason, reply_text, created_at
		FROM appointment_transitions
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list transitions query failed: %v", err)).WithOp(opListTransitions)
	}
	defer rows.Close()

	items := make([]domain.TransitionRecord, 0)
	for rows.Next() {
		var t domain.TransitionRecord
		var from, to, actor string
		if err := rows.Scan(&t.ID, &from, &to, &actor, &t.Reason, &t.ReplyText, &t.CreatedAt); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan transition failed: %v", err)).WithOp(opListTransitions)
		}
		t.From = domain.ConfirmationStatus(from)
		t.To = domain.ConfirmationStatus(to)
		t.Actor = domain.Actor(actor)
		items = append(items, t)
	}
	return items, rows.Err()
}

// ListDispatches returns the reminders sent for an appointment, oldest first.
func (r *Repository) ListDispatches(ctx context.Context, appointmentID uuid.UUID) ([]domain.DispatchRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, channel, sent_at, response, responded_at
		FROM reminder_dispatches
		WHERE appointment_id = $1
		ORDER BY sent_at ASC
	`, appointmentID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list dispatches query failed: %v", err)).WithOp(opListDispatches)
	}
	defer rows.Close()

	items := make([]domain.DispatchRecord, 0)
	for rows.Next() {
		var d domain.DispatchRecord
		if err := rows.Scan(&d.ID, &d.Kind, &d.Channel, &d.SentAt, &d.Response, &d.RespondedAt); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan dispatch failed: %v", err)).WithOp(opListDispatches)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// AttachResponse stores a client reply on the latest reminder of the
// appointment unless that reminder already has one.
func (r *Repository) AttachResponse(ctx context.Context, appointmentID uuid.UUID, text string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminder_dispatches SET response = $2, responded_at = $3
		WHERE id = (
			SELECT id FROM reminder_dispatches
			WHERE appointment_id = $1
			ORDER BY sent_at DESC
			LIMIT 1
		) AND response IS NULL
	`, appointmentID, text, at)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("attach response failed: %v", err)).WithOp(opAttachResponse)
	}
	return nil
}

// Stats counts the user's appointments starting in [from, to).
func (r *Repository) Stats(ctx context.Context, userID uuid.UUID, from, to *time.Time) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE confirmation_status = 'pending'),
			COUNT(*) FILTER (WHERE confirmation_status = 'confirmed'),
			COUNT(*) FILTER (WHERE confirmation_status = 'cancelled'),
			COUNT(*) FILTER (WHERE confirmation_status = 'no_response')
		FROM appointments
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR start_at >= $2)
		  AND ($3::timestamptz IS NULL OR start_at < $3)
	`, userID, from, to).Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Cancelled, &s.NoResponse)
	if err != nil {
		return Stats{}, apperr.Internal(fmt.Sprintf("appointment stats failed: %v", err)).WithOp(opStats)
	}
	return s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
