package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opInsert = "activity.repository.insert"
	opList   = "activity.repository.list"
)

// Entry is one row of the operator activity log.
type Entry struct {
	ID          uuid.UUID              `json:"id"`
	UserID      uuid.UUID              `json:"userId"`
	LeadID      *uuid.UUID             `json:"leadId,omitempty"`
	ActionType  string                 `json:"actionType"`
	Description string                 `json:"description"`
	ExecutedBy  string                 `json:"executedBy"`
	Details     map[string]interface{} `json:"details"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// ListParams filters the activity log. Zero values mean no filter.
type ListParams struct {
	UserID     uuid.UUID
	LeadID     *uuid.UUID
	ActionType string
	Since      *time.Time
	Limit      int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an entry and fills its ID and CreatedAt.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("encode activity details failed: %v", err)).WithOp(opInsert)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, lead_id, action_type, description, executed_by, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.UserID, e.LeadID, e.ActionType, e.Description, e.ExecutedBy, raw).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperr.Validation("invalid leadId").WithOp(opInsert)
		}
		return apperr.Internal(fmt.Sprintf("insert activity failed: %v", err)).WithOp(opInsert)
	}
	return nil
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, p ListParams) ([]Entry, error) {
	query := `
		SELECT id, user_id, lead_id, action_type, description, executed_by, details, created_at
		FROM activity_logs
		WHERE user_id = $1`
	args := []interface{}{p.UserID}

	if p.LeadID != nil {
		args = append(args, *p.LeadID)
		query += fmt.Sprintf(" AND lead_id = $%d", len(args))
	}
	if p.ActionType != "" {
		args = append(args, p.ActionType)
		query += fmt.Sprintf(" AND action_type = $%d", len(args))
	}
	if p.Since != nil {
		args = append(args, *p.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	args = append(args, p.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list activity query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Entry, 0)
	for rows.Next() {
		var (
			e   Entry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.LeadID, &e.ActionType, &e.Description, &e.ExecutedBy, &raw, &e.CreatedAt); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan activity failed: %v", err)).WithOp(opList)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return nil, apperr.Internal(fmt.Sprintf("decode activity details failed: %v", err)).WithOp(opList)
			}
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate activity failed: %v", err)).WithOp(opList)
	}
	return items, nil
}
