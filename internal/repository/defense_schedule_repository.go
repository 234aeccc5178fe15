package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

const defenseScheduleColumns = `id, thesis_id, stage, start_at, end_at, location, status, organizer_id, adviser_id, panel_member_ids, cancel_reason, rescheduled_from, created_at, updated_at`

// DefenseScheduleRepository persists defense sessions.
type DefenseScheduleRepository struct {
	db *sqlx.DB
}

// NewDefenseScheduleRepository constructs the repository.
func NewDefenseScheduleRepository(db *sqlx.DB) *DefenseScheduleRepository {
	return &DefenseScheduleRepository{db: db}
}

func (r *DefenseScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func activeStatusArgs() pq.StringArray {
	out := make(pq.StringArray, 0, len(models.ActiveScheduleStatuses))
	for _, status := range models.ActiveScheduleStatuses {
		out = append(out, string(status))
	}
	return out
}

// Create inserts a schedule row.
func (r *DefenseScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.DefenseSchedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusScheduled
	}
	if schedule.PanelMemberIDs == nil {
		schedule.PanelMemberIDs = pq.StringArray{}
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	const query = `INSERT INTO defense_schedules (` + defenseScheduleColumns + `)
VALUES (:id, :thesis_id, :stage, :start_at, :end_at, :location, :status, :organizer_id, :adviser_id, :panel_member_ids, :cancel_reason, :rescheduled_from, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, schedule); err != nil {
		return fmt.Errorf("insert defense schedule: %w", err)
	}
	return nil
}

// FindByID loads a schedule by id.
func (r *DefenseScheduleRepository) FindByID(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	const query = `SELECT ` + defenseScheduleColumns + ` FROM defense_schedules WHERE id = $1`
	var schedule models.DefenseSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindOverlapping returns active schedules sharing a participant and overlapping the half-open window.
func (r *DefenseScheduleRepository) FindOverlapping(ctx context.Context, exec sqlx.ExtContext, participants []string, window models.TimeRange, excludeID string) ([]models.DefenseSchedule, error) {
	if len(participants) == 0 {
		return nil, nil
	}
	query := `SELECT ` + defenseScheduleColumns + ` FROM defense_schedules
WHERE status = ANY($1) AND start_at < $2 AND end_at > $3 AND (adviser_id = ANY($4) OR panel_member_ids && $4)`
	args := []interface{}{activeStatusArgs(), window.End, window.Start, pq.StringArray(participants)}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_at ASC"

	var schedules []models.DefenseSchedule
	if err := sqlx.SelectContext(ctx, r.exec(exec), &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping defense schedules: %w", err)
	}
	return schedules, nil
}

// HasActiveForStage reports whether the thesis already holds an active schedule for the stage.
func (r *DefenseScheduleRepository) HasActiveForStage(ctx context.Context, exec sqlx.ExtContext, thesisID string, stage models.DefenseStage, excludeID string) (bool, error) {
	query := `SELECT 1 FROM defense_schedules WHERE thesis_id = $1 AND stage = $2 AND status = ANY($3)`
	args := []interface{}{thesisID, stage, activeStatusArgs()}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var one int
	if err := sqlx.GetContext(ctx, r.exec(exec), &one, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active defense schedule: %w", err)
	}
	return true, nil
}

// AcquireLocks takes transaction-scoped advisory locks in sorted key order.
// exec must be a transaction; the locks are released on commit or rollback.
func (r *DefenseScheduleRepository) AcquireLocks(ctx context.Context, exec sqlx.ExtContext, keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	var last string
	for i, key := range sorted {
		if i > 0 && key == last {
			continue
		}
		last = key
		if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("acquire advisory lock %s: %w", key, err)
		}
	}
	return nil
}

// UpdateStatus flips a schedule's status, optionally recording a cancellation reason.
func (r *DefenseScheduleRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus, reason *string) error {
	now := time.Now().UTC()
	var (
		query string
		args  []interface{}
	)
	if reason != nil {
		query = `UPDATE defense_schedules SET status = $1, cancel_reason = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, *reason, now, id}
	} else {
		query = `UPDATE defense_schedules SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update defense schedule status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("defense schedule status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns schedules matching the filter ordered by start time.
func (r *DefenseScheduleRepository) List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseSchedule, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ThesisID != "" {
		conditions = append(conditions, fmt.Sprintf("thesis_id = $%d", len(args)+1))
		args = append(args, filter.ThesisID)
	}
	if filter.ParticipantID != "" {
		conditions = append(conditions, fmt.Sprintf("(adviser_id = $%d OR $%d = ANY(panel_member_ids))", len(args)+1, len(args)+1))
		args = append(args, filter.ParticipantID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.StringArray, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, statuses)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("end_at > $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT %s FROM defense_schedules WHERE %s ORDER BY start_at ASC LIMIT %d`,
		defenseScheduleColumns, strings.Join(conditions, " AND "), limit)

	var schedules []models.DefenseSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("list defense schedules: %w", err)
	}
	return schedules, nil
}
