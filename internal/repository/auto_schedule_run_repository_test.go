package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

func TestAutoScheduleRunRepositoryLifecycle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAutoScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auto_schedule_runs")).
		WithArgs(sqlmock.AnyArg(), "thesis-1", "running", nil, nil, "coord-1", nil, 60, sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.AutoScheduleRun{ThesisID: "thesis-1", RequestedBy: "coord-1", DurationMinutes: 60}
	require.NoError(t, repo.Create(context.Background(), run))

	reason := models.AutoScheduleReasonNoSlots
	run.Status = models.AutoScheduleFailed
	run.Reason = &reason
	run.AttemptedDates = pq.StringArray{"2024-06-03"}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE auto_schedule_runs SET status = $1, reason = $2, schedule_id = $3, attempted_dates = $4, completed_at = $5 WHERE id = $6")).
		WithArgs("failed", reason, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), run.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finish(context.Background(), run))
	assert.NotNil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoScheduleRunRepositoryFinishMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAutoScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE auto_schedule_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finish(context.Background(), &models.AutoScheduleRun{ID: "missing", Status: models.AutoScheduleCompleted})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
