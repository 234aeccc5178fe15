package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// PanelActionRepository persists panel votes and their submission log.
type PanelActionRepository struct {
	db *sqlx.DB
}

// NewPanelActionRepository constructs the repository.
func NewPanelActionRepository(db *sqlx.DB) *PanelActionRepository {
	return &PanelActionRepository{db: db}
}

func (r *PanelActionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert records the member's current decision; the latest submission wins.
func (r *PanelActionRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, action *models.PanelAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.SubmittedAt.IsZero() {
		action.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO panel_actions (id, schedule_id, panel_member_id, decision, comments, submitted_at)
VALUES (:id, :schedule_id, :panel_member_id, :decision, :comments, :submitted_at)
ON CONFLICT (schedule_id, panel_member_id) DO UPDATE
SET decision = EXCLUDED.decision,
    comments = EXCLUDED.comments,
    submitted_at = EXCLUDED.submitted_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, action); err != nil {
		return fmt.Errorf("upsert panel action: %w", err)
	}
	return nil
}

// AppendHistory writes an immutable record of a submission.
func (r *PanelActionRepository) AppendHistory(ctx context.Context, exec sqlx.ExtContext, action models.PanelAction) error {
	entry := action
	entry.ID = uuid.NewString()
	const query = `INSERT INTO panel_action_history (id, schedule_id, panel_member_id, decision, comments, submitted_at)
VALUES (:id, :schedule_id, :panel_member_id, :decision, :comments, :submitted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("append panel action history: %w", err)
	}
	return nil
}

// ListBySchedule returns the current decisions for a schedule.
func (r *PanelActionRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.PanelAction, error) {
	const query = `SELECT id, schedule_id, panel_member_id, decision, comments, submitted_at
FROM panel_actions WHERE schedule_id = $1 ORDER BY submitted_at ASC`
	var actions []models.PanelAction
	if err := r.db.SelectContext(ctx, &actions, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list panel actions: %w", err)
	}
	return actions, nil
}

// ListHistory returns every submission for a schedule oldest first.
func (r *PanelActionRepository) ListHistory(ctx context.Context, scheduleID string) ([]models.PanelAction, error) {
	const query = `SELECT id, schedule_id, panel_member_id, decision, comments, submitted_at
FROM panel_action_history WHERE schedule_id = $1 ORDER BY submitted_at ASC`
	var history []models.PanelAction
	if err := r.db.SelectContext(ctx, &history, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list panel action history: %w", err)
	}
	return history, nil
}
