package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engagement_backend/internal/alerts/domain"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate          = "alerts.repository.create"
	opList            = "alerts.repository.list"
	opCountUnread     = "alerts.repository.count_unread"
	opMarkRead        = "alerts.repository.mark_read"
	opMarkAllRead     = "alerts.repository.mark_all_read"
	opGetPreferences  = "alerts.repository.get_preferences"
	opSavePreferences = "alerts.repository.save_preferences"

	errUserIDRequired = "userId is required"
)

type Alert struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"userId"`
	Kind      domain.Kind `json:"kind"`
	LeadID    *uuid.UUID  `json:"leadId,omitempty"`
	Message   string      `json:"message"`
	IsRead    bool        `json:"isRead"`
	ReadAt    *time.Time  `json:"readAt,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type CreateParams struct {
	UserID  uuid.UUID
	Kind    domain.Kind
	LeadID  *uuid.UUID
	Message string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Alert, error) {
	if p.UserID == uuid.Nil {
		return Alert{}, apperr.Validation(errUserIDRequired).WithOp(opCreate)
	}

	var a Alert
	err := r.pool.QueryRow(ctx, `
		INSERT INTO alerts (user_id, kind, lead_id, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, kind, lead_id, message, is_read, read_at, created_at
	`, p.UserID, p.Kind, p.LeadID, p.Message).Scan(
		&a.ID, &a.UserID, &a.Kind, &a.LeadID, &a.Message, &a.IsRead, &a.ReadAt, &a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Alert{}, apperr.Validation("invalid leadId").WithOp(opCreate)
		}
		return Alert{}, apperr.Internal(fmt.Sprintf("create alert failed: %v", err)).WithOp(opCreate)
	}

	return a, nil
}

// List returns the most recent alerts first, optionally only the unread ones.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Alert, error) {
	if userID == uuid.Nil {
		return nil, apperr.Validation(errUserIDRequired).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, kind, lead_id, message, is_read, read_at, created_at
		FROM alerts
		WHERE user_id = $1 AND (NOT $2 OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list alerts query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Alert, 0, limit)
	for rows.Next() {
		var a Alert
		if scanErr := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.LeadID, &a.Message, &a.IsRead, &a.ReadAt, &a.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan alerts failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate alerts failed: %v", rowsErr)).WithOp(opList)
	}

	return items, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM alerts
		WHERE user_id = $1 AND is_read = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread alerts failed: %v", err)).WithOp(opCountUnread)
	}

	return count, nil
}

// MarkRead flags one alert as read. The first read time is kept on repeats.
func (r *Repository) MarkRead(ctx context.Context, userID, alertID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE alerts
		SET is_read = TRUE, read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2
	`, alertID, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark alert read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert not found").WithOp(opMarkRead)
	}

	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE alerts
		SET is_read = TRUE, read_at = now()
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("mark all alerts read failed: %v", err)).WithOp(opMarkAllRead)
	}

	return tag.RowsAffected(), nil
}

// GetPreferences returns the user's switches, or the defaults when none were saved.
func (r *Repository) GetPreferences(ctx context.Context, userID uuid.UUID) (domain.Preferences, error) {
	var p domain.Preferences
	err := r.pool.QueryRow(ctx, `
		SELECT alert_frustrated, alert_unconfident, alert_conflict
		FROM alert_preferences
		WHERE user_id = $1
	`, userID).Scan(&p.Frustrated, &p.Unconfident, &p.Conflict)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultPreferences(), nil
	}
	if err != nil {
		return domain.Preferences{}, apperr.Internal(fmt.Sprintf("get alert preferences failed: %v", err)).WithOp(opGetPreferences)
	}

	return p, nil
}

// ChangePreferences sets the switches present in c in one upsert and
// returns the stored row. Switches absent from c keep their stored value, or
// the default when the row is new, so concurrent changes to different kinds
// do not overwrite each other.
func (r *Repository) ChangePreferences(ctx context.Context, userID uuid.UUID, c domain.PreferenceChange) (domain.Preferences, error) {
	var p domain.Preferences
	err := r.pool.QueryRow(ctx, `
		INSERT INTO alert_preferences (user_id, alert_frustrated, alert_unconfident, alert_conflict, updated_at)
		VALUES ($1, COALESCE($2, TRUE), COALESCE($3, TRUE), COALESCE($4, TRUE), now())
		ON CONFLICT (user_id) DO UPDATE
		SET alert_frustrated = COALESCE($2, alert_preferences.alert_frustrated),
			alert_unconfident = COALESCE($3, alert_preferences.alert_unconfident),
			alert_conflict = COALESCE($4, alert_preferences.alert_conflict),
			updated_at = now()
		RETURNING alert_frustrated, alert_unconfident, alert_conflict
	`, userID, c.Frustrated, c.Unconfident, c.Conflict).Scan(&p.Frustrated, &p.Unconfident, &p.Conflict)
	if err != nil {
		return domain.Preferences{}, apperr.Internal(fmt.Sprintf("save alert preferences failed: %v", err)).WithOp(opSavePreferences)
	}

	return p, nil
}
