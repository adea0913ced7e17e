package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engagement_backend/internal/leads/scoring"
	"engagement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate          = "leads.repository.create"
	opGet             = "leads.repository.get"
	opList            = "leads.repository.list"
	opUpdateStatus    = "leads.repository.update_status"
	opOverride        = "leads.repository.manual_override"
	opRecordMessage   = "leads.repository.record_message"
	opRecordSentiment = "leads.repository.record_sentiment"
	opSignals         = "leads.repository.signals"
	opUpdateScore     = "leads.repository.update_score"
	opFollowUp        = "leads.repository.followup"
	opStaleScores     = "leads.repository.stale_scores"

	leadNotFound = "lead not found"
)

// Lead is the leads row.
type Lead struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Name              string
	Phone             *string
	Email             *string
	Status            string
	ManualOverride    bool
	LastInteractionAt *time.Time
	PriorityScore     float64
	ScoreVersion      int64
	NeedsFollowUp     bool
	FollowUpSent      bool
	LastFollowUpAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Message is a stored message exchanged with a lead.
type Message struct {
	LeadID     uuid.UUID
	UserID     uuid.UUID
	Direction  string
	Body       string
	ReceivedAt time.Time
}

// FollowUp is a stored follow-up message.
type FollowUp struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

// Repository provides database operations for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, user_id, name, phone, email, status, manual_override, last_interaction_at,
	priority_score::float8, score_version, needs_followup, followup_sent, last_followup_at,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.UserID, &l.Name, &l.Phone, &l.Email, &l.Status, &l.ManualOverride, &l.LastInteractionAt,
		&l.PriorityScore, &l.ScoreVersion, &l.NeedsFollowUp, &l.FollowUpSent, &l.LastFollowUpAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, l *Lead) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, user_id, name, phone, email, status, priority_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, l.ID, l.UserID, l.Name, l.Phone, l.Email, l.Status, l.PriorityScore).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("lead already exists").WithOp(opCreate)
		}
		return apperr.Internal(fmt.Sprintf("create lead failed: %v", err)).WithOp(opCreate)
	}
	return nil
}

// GetByID loads a lead owned by userID.
func (r *Repository) GetByID(ctx context.Context, id, userID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFound).WithOp(opGet)
		}
		return Lead{}, apperr.Internal(fmt.Sprintf("get lead failed: %v", err)).WithOp(opGet)
	}
	return lead, nil
}

// List returns the user's leads, highest priority first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, status *string, needsFollowUp bool, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE user_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND (NOT $3 OR needs_followup)
		ORDER BY priority_score DESC, last_interaction_at ASC NULLS FIRST, created_at ASC
		LIMIT $4
	`, userID, status, needsFollowUp, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list leads query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan lead failed: %v", err)).WithOp(opList)
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate leads failed: %v", err)).WithOp(opList)
	}
	return items, nil
}

// UpdateStatus sets the funnel status. When onlyAutomatic is true a lead
// pinned by manual override is left alone and false is returned.
func (r *Repository) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string, onlyAutomatic bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND (NOT $4 OR NOT manual_override)
	`, id, userID, status, onlyAutomatic)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("update lead status failed: %v", err)).WithOp(opUpdateStatus)
	}
	return tag.RowsAffected() > 0, nil
}

// SetManualOverride pins or unpins the lead status.
func (r *Repository) SetManualOverride(ctx context.Context, id, userID uuid.UUID, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET manual_override = $3, updated_at = now() WHERE id = $1 AND user_id = $2
	`, id, userID, enabled)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("update manual override failed: %v", err)).WithOp(opOverride)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFound).WithOp(opOverride)
	}
	return nil
}

// MarkNeedsFollowUp flags a lead for the follow-up queue.
func (r *Repository) MarkNeedsFollowUp(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET needs_followup = TRUE, updated_at = now() WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("flag follow-up failed: %v", err)).WithOp(opFollowUp)
	}
	return nil
}

// RecordMessage stores a message and moves last_interaction_at forward.
func (r *Repository) RecordMessage(ctx context.Context, m Message) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Unavailable("begin record message", err).WithOp(opRecordMessage)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET last_interaction_at = GREATEST(COALESCE(last_interaction_at, $3), $3), updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, m.LeadID, m.UserID, m.ReceivedAt)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("touch lead failed: %v", err)).WithOp(opRecordMessage)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFound).WithOp(opRecordMessage)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_messages (lead_id, user_id, direction, body, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.LeadID, m.UserID, m.Direction, m.Body, m.ReceivedAt); err != nil {
		return apperr.Internal(fmt.Sprintf("insert lead message failed: %v", err)).WithOp(opRecordMessage)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal(fmt.Sprintf("commit lead message failed: %v", err)).WithOp(opRecordMessage)
	}
	return nil
}

// RecordSentiment stores a sentiment evaluation for a lead.
func (r *Repository) RecordSentiment(ctx context.Context, leadID, userID uuid.UUID, sentiment, sample string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_sentiments (lead_id, user_id, sentiment, sample)
		SELECT id, user_id, $3, NULLIF($4, '') FROM leads WHERE id = $1 AND user_id = $2
	`, leadID, userID, sentiment, sample)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("insert sentiment failed: %v", err)).WithOp(opRecordSentiment)
	}
	return nil
}

// Signals loads the scoring inputs of a lead together with its score version.
func (r *Repository) Signals(ctx context.Context, leadID, userID uuid.UUID) (scoring.Signals, int64, error) {
	var s scoring.Signals
	var sentiment *string
	var version int64
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT sentiment FROM lead_sentiments ls WHERE ls.lead_id = l.id ORDER BY created_at DESC LIMIT 1),
			l.last_interaction_at,
			(SELECT COUNT(*) FROM lead_messages lm WHERE lm.lead_id = l.id),
			l.score_version
		FROM leads l
		WHERE l.id = $1 AND l.user_id = $2
	`, leadID, userID).Scan(&sentiment, &s.LastInteraction, &s.MessageCount, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scoring.Signals{}, 0, apperr.NotFound(leadNotFound).WithOp(opSignals)
		}
		return scoring.Signals{}, 0, apperr.Internal(fmt.Sprintf("load signals failed: %v", err)).WithOp(opSignals)
	}
	if sentiment != nil {
		s.Sentiment = *sentiment
	}
	return s, version, nil
}

// score_updated_at only moves when the score is written, so status or
// follow-up edits do not hold back the periodic refresh.
const (
	updateScoreSQL = `
		UPDATE leads SET priority_score = $3, score_version = score_version + 1,
			score_updated_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND score_version = $4`

	listStaleScoresSQL = `
		SELECT id, user_id FROM leads
		WHERE score_updated_at IS NULL OR score_updated_at < $1
		ORDER BY score_updated_at ASC NULLS FIRST
		LIMIT $2`
)

// UpdateScore overwrites the score if nobody else did since version was read.
func (r *Repository) UpdateScore(ctx context.Context, leadID, userID uuid.UUID, score float64, version int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateScoreSQL, leadID, userID, score, version)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("update score failed: %v", err)).WithOp(opUpdateScore)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordFollowUp stores a follow-up and the outbound message it represents,
// clearing the lead's follow-up flag.
func (r *Repository) RecordFollowUp(ctx context.Context, leadID, userID uuid.UUID, message string, at time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Unavailable("begin follow-up", err).WithOp(opFollowUp)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET
			needs_followup = FALSE,
			followup_sent = TRUE,
			last_followup_at = $3,
			last_interaction_at = $3,
			updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, leadID, userID, at)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("update follow-up flags failed: %v", err)).WithOp(opFollowUp)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFound).WithOp(opFollowUp)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO followup_messages (lead_id, user_id, message, sent_at) VALUES ($1, $2, $3, $4)
	`, leadID, userID, message, at); err != nil {
		return apperr.Internal(fmt.Sprintf("insert follow-up failed: %v", err)).WithOp(opFollowUp)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_messages (lead_id, user_id, direction, body, received_at) VALUES ($1, $2, 'outbound', $3, $4)
	`, leadID, userID, message, at); err != nil {
		return apperr.Internal(fmt.Sprintf("insert follow-up message failed: %v", err)).WithOp(opFollowUp)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal(fmt.Sprintf("commit follow-up failed: %v", err)).WithOp(opFollowUp)
	}
	return nil
}

// ListFollowUps returns the follow-up history of a lead, newest first.
func (r *Repository) ListFollowUps(ctx context.Context, leadID, userID uuid.UUID) ([]FollowUp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, message, sent_at FROM followup_messages
		WHERE lead_id = $1 AND user_id = $2
		ORDER BY sent_at DESC
	`, leadID, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list follow-ups failed: %v", err)).WithOp(opFollowUp)
	}
	defer rows.Close()

	items := make([]FollowUp, 0)
	for rows.Next() {
		var f FollowUp
		if err := rows.Scan(&f.ID, &f.Message, &f.SentAt); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan follow-up failed: %v", err)).WithOp(opFollowUp)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// ListStaleScores returns leads whose score was last computed before
// olderThan, never-scored leads first. The periodic refresh uses it because
// the recency term grows without any new event.
func (r *Repository) ListStaleScores(ctx context.Context, olderThan time.Time, limit int) ([]LeadRef, error) {
	rows, err := r.pool.Query(ctx, listStaleScoresSQL, olderThan, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list stale scores failed: %v", err)).WithOp(opStaleScores)
	}
	defer rows.Close()

	items := make([]LeadRef, 0)
	for rows.Next() {
		var ref LeadRef
		if err := rows.Scan(&ref.LeadID, &ref.UserID); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan lead ref failed: %v", err)).WithOp(opStaleScores)
		}
		items = append(items, ref)
	}
	return items, rows.Err()
}

// LeadRef identifies a lead and its owner.
type LeadRef struct {
	LeadID uuid.UUID
	UserID uuid.UUID
}
