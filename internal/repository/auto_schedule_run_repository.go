package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// AutoScheduleRunRepository persists auto-schedule executions.
type AutoScheduleRunRepository struct {
	db *sqlx.DB
}

// NewAutoScheduleRunRepository constructs the repository.
func NewAutoScheduleRunRepository(db *sqlx.DB) *AutoScheduleRunRepository {
	return &AutoScheduleRunRepository{db: db}
}

// Create stores a run in the running state.
func (r *AutoScheduleRunRepository) Create(ctx context.Context, run *models.AutoScheduleRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.AutoScheduleRunning
	}
	if run.AttemptedDates == nil {
		run.AttemptedDates = pq.StringArray{}
	}
	run.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO auto_schedule_runs (id, thesis_id, status, reason, schedule_id, requested_by, preferred_date, duration_minutes, attempted_dates, created_at, completed_at)
VALUES (:id, :thesis_id, :status, :reason, :schedule_id, :requested_by, :preferred_date, :duration_minutes, :attempted_dates, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert auto schedule run: %w", err)
	}
	return nil
}

// Finish stores the terminal state of a run.
func (r *AutoScheduleRunRepository) Finish(ctx context.Context, run *models.AutoScheduleRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	const query = `UPDATE auto_schedule_runs SET status = $1, reason = $2, schedule_id = $3, attempted_dates = $4, completed_at = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, run.Status, run.Reason, run.ScheduleID, run.AttemptedDates, now, run.ID)
	if err != nil {
		return fmt.Errorf("finish auto schedule run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("auto schedule run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads a run by id.
func (r *AutoScheduleRunRepository) FindByID(ctx context.Context, id string) (*models.AutoScheduleRun, error) {
	const query = `SELECT id, thesis_id, status, reason, schedule_id, requested_by, preferred_date, duration_minutes, attempted_dates, created_at, completed_at
FROM auto_schedule_runs WHERE id = $1`
	var run models.AutoScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}
