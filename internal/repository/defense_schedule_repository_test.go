package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

var scheduleRowColumns = []string{"id", "thesis_id", "stage", "start_at", "end_at", "location", "status", "organizer_id", "adviser_id", "panel_member_ids", "cancel_reason", "rescheduled_from", "created_at", "updated_at"}

func TestDefenseScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO defense_schedules")).
		WithArgs(sqlmock.AnyArg(), "thesis-1", "concept", start, start.Add(time.Hour), "Room A", "scheduled", "coord-1", "adv-1", sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.DefenseSchedule{
		ThesisID:       "thesis-1",
		Stage:          models.StageConcept,
		Start:          start,
		End:            start.Add(time.Hour),
		Location:       "Room A",
		OrganizerID:    "coord-1",
		AdviserID:      "adv-1",
		PanelMemberIDs: pq.StringArray{"p1", "p2"},
	}
	require.NoError(t, repo.Create(context.Background(), nil, schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, models.ScheduleStatusScheduled, schedule.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleRepositoryFindOverlappingExcludes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	window := models.TimeRange{Start: start, End: start.Add(time.Hour)}
	rows := sqlmock.NewRows(scheduleRowColumns).
		AddRow("sched-2", "thesis-2", "proposal", start.Add(-30*time.Minute), start.Add(30*time.Minute), "", "scheduled", "coord", "adv-2", "{p1,p3}", nil, nil, start, start)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ANY($1) AND start_at < $2 AND end_at > $3 AND (adviser_id = ANY($4) OR panel_member_ids && $4) AND id <> $5 ORDER BY start_at ASC")).
		WithArgs(sqlmock.AnyArg(), window.End, window.Start, sqlmock.AnyArg(), "sched-1").
		WillReturnRows(rows)

	found, err := repo.FindOverlapping(context.Background(), nil, []string{"adv-1", "p1"}, window, "sched-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"p1", "p3"}, []string(found[0].PanelMemberIDs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleRepositoryFindOverlappingNoParticipants(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	found, err := repo.FindOverlapping(context.Background(), nil, nil, models.TimeRange{}, "")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleRepositoryHasActiveForStage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM defense_schedules WHERE thesis_id = $1 AND stage = $2 AND status = ANY($3) LIMIT 1")).
		WithArgs("thesis-1", "concept", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM defense_schedules WHERE thesis_id = $1 AND stage = $2 AND status = ANY($3) AND id <> $4 LIMIT 1")).
		WithArgs("thesis-1", "final", sqlmock.AnyArg(), "sched-9").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.HasActiveForStage(context.Background(), nil, "thesis-1", models.StageConcept, "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasActiveForStage(context.Background(), nil, "thesis-1", models.StageFinal, "sched-9")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleRepositoryAcquireLocksSortedAndDeduplicated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	lock := regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")
	mock.ExpectExec(lock).WithArgs("participant:a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(lock).WithArgs("participant:b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(lock).WithArgs("thesis:t1:concept").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AcquireLocks(context.Background(), nil, []string{"thesis:t1:concept", "participant:b", "participant:a", "participant:b"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	reason := "panel unavailable"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE defense_schedules SET status = $1, cancel_reason = $2, updated_at = $3 WHERE id = $4")).
		WithArgs("cancelled", reason, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "missing", models.ScheduleStatusCancelled, &reason)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleRepositoryListByParticipant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseScheduleRepository(db)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND (adviser_id = $1 OR $1 = ANY(panel_member_ids)) AND end_at > $2 AND start_at < $3 ORDER BY start_at ASC LIMIT 200")).
		WithArgs("p1", from, to).
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns))

	list, err := repo.List(context.Background(), models.DefenseScheduleFilter{ParticipantID: "p1", From: &from, To: &to})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
