package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// AvailabilityRepository stores declared weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByUsers returns windows for the given users ordered by user, weekday and start time.
func (r *AvailabilityRepository) ListByUsers(ctx context.Context, exec sqlx.ExtContext, userIDs []string) ([]models.Availability, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, user_id, day_of_week, start_time, end_time, created_at
FROM availabilities WHERE user_id = ANY($1) ORDER BY user_id, day_of_week, start_time`
	var windows []models.Availability
	if err := sqlx.SelectContext(ctx, r.exec(exec), &windows, query, pq.StringArray(userIDs)); err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	return windows, nil
}

// Replace swaps a user's full set of windows inside the supplied transaction.
func (r *AvailabilityRepository) Replace(ctx context.Context, exec sqlx.ExtContext, userID string, windows []models.Availability) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM availabilities WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear availabilities: %w", err)
	}

	const insert = `INSERT INTO availabilities (id, user_id, day_of_week, start_time, end_time, created_at)
VALUES (:id, :user_id, :day_of_week, :start_time, :end_time, :created_at)`
	now := time.Now().UTC()
	for i := range windows {
		window := &windows[i]
		if window.ID == "" {
			window.ID = uuid.NewString()
		}
		window.UserID = userID
		window.CreatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, insert, window); err != nil {
			return fmt.Errorf("insert availability: %w", err)
		}
	}
	return nil
}
