//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/pkg/database"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("thesis_test"),
		postgres.WithUsername("thesis_test"),
		postgres.WithPassword("thesis_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, database.RunMigrations(db.DB, nil))
	return db
}

func TestPostgresThesisAndScheduleRoundTrip(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	theses := NewThesisRepository(db)
	schedules := NewDefenseScheduleRepository(db)

	thesis := &models.Thesis{Title: "Graph search", GroupID: "group-1", AdviserID: "adv-1"}
	require.NoError(t, theses.Create(ctx, thesis))

	thesis.Status = models.ThesisStatusConceptSubmitted
	require.NoError(t, theses.UpdateStatus(ctx, nil, thesis, 1))
	assert.Equal(t, 2, thesis.Version)
	assert.True(t, errors.Is(theses.UpdateStatus(ctx, nil, thesis, 1), ErrStaleVersion))

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	schedule := &models.DefenseSchedule{
		ThesisID:       thesis.ID,
		Stage:          models.StageConcept,
		Start:          start,
		End:            start.Add(time.Hour),
		AdviserID:      "adv-1",
		OrganizerID:    "admin-1",
		PanelMemberIDs: pq.StringArray{"p-1", "p-2"},
	}
	require.NoError(t, schedules.Create(ctx, nil, schedule))

	overlapping, err := schedules.FindOverlapping(ctx, nil, []string{"p-2"}, models.TimeRange{Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute)}, "")
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, schedule.ID, overlapping[0].ID)

	touching, err := schedules.FindOverlapping(ctx, nil, []string{"p-2"}, models.TimeRange{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)}, "")
	require.NoError(t, err)
	assert.Empty(t, touching)

	duplicate := *schedule
	duplicate.ID = ""
	err = schedules.Create(ctx, nil, &duplicate)
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	assert.Equal(t, pq.ErrorCode("23505"), pqErr.Code, "one active schedule per thesis stage")

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, schedules.AcquireLocks(ctx, tx, []string{"adv-1", "p-1"}))
	require.NoError(t, tx.Commit())
}
