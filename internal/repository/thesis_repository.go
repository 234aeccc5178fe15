package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

const thesisColumns = `id, title, group_id, adviser_id, status, previous_status, feedback, version, created_at, updated_at`

// ThesisRepository persists theses and their status history.
type ThesisRepository struct {
	db *sqlx.DB
}

// NewThesisRepository constructs the repository.
func NewThesisRepository(db *sqlx.DB) *ThesisRepository {
	return &ThesisRepository{db: db}
}

func (r *ThesisRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new thesis at version 1.
func (r *ThesisRepository) Create(ctx context.Context, thesis *models.Thesis) error {
	if thesis == nil {
		return fmt.Errorf("thesis payload is nil")
	}
	if thesis.ID == "" {
		thesis.ID = uuid.NewString()
	}
	if thesis.Status == "" {
		thesis.Status = models.ThesisStatusDraft
	}
	thesis.Version = 1
	now := time.Now().UTC()
	thesis.CreatedAt = now
	thesis.UpdatedAt = now

	const query = `INSERT INTO theses (` + thesisColumns + `)
VALUES (:id, :title, :group_id, :adviser_id, :status, :previous_status, :feedback, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, thesis); err != nil {
		return fmt.Errorf("insert thesis: %w", err)
	}
	return nil
}

// FindByID loads a thesis by id.
func (r *ThesisRepository) FindByID(ctx context.Context, id string) (*models.Thesis, error) {
	const query = `SELECT ` + thesisColumns + ` FROM theses WHERE id = $1`
	var thesis models.Thesis
	if err := r.db.GetContext(ctx, &thesis, query, id); err != nil {
		return nil, err
	}
	return &thesis, nil
}

// FindByGroupID loads the thesis owned by a group.
func (r *ThesisRepository) FindByGroupID(ctx context.Context, groupID string) (*models.Thesis, error) {
	const query = `SELECT ` + thesisColumns + ` FROM theses WHERE group_id = $1`
	var thesis models.Thesis
	if err := r.db.GetContext(ctx, &thesis, query, groupID); err != nil {
		return nil, err
	}
	return &thesis, nil
}

// UpdateStatus persists a status change guarded by the expected version.
// On success thesis.Version is advanced; ErrStaleVersion means another writer won.
func (r *ThesisRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, thesis *models.Thesis, expectedVersion int) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `UPDATE theses SET status = $1, previous_status = $2, feedback = $3, version = version + 1, updated_at = $4
WHERE id = $5 AND version = $6`
	result, err := target.ExecContext(ctx, query, thesis.Status, thesis.PreviousStatus, thesis.Feedback, now, thesis.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update thesis status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("thesis status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleVersion
	}
	thesis.Version = expectedVersion + 1
	thesis.UpdatedAt = now
	return nil
}

// InsertHistory appends a status history row.
func (r *ThesisRepository) InsertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.ThesisStatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO thesis_status_history (id, thesis_id, from_status, to_status, trigger, actor_id, created_at)
VALUES (:id, :thesis_id, :from_status, :to_status, :trigger, :actor_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("insert thesis status history: %w", err)
	}
	return nil
}

// ListHistory returns status history for a thesis oldest first.
func (r *ThesisRepository) ListHistory(ctx context.Context, thesisID string) ([]models.ThesisStatusHistory, error) {
	const query = `SELECT id, thesis_id, from_status, to_status, trigger, actor_id, created_at
FROM thesis_status_history WHERE thesis_id = $1 ORDER BY created_at ASC`
	var history []models.ThesisStatusHistory
	if err := r.db.SelectContext(ctx, &history, query, thesisID); err != nil {
		return nil, fmt.Errorf("list thesis status history: %w", err)
	}
	return history, nil
}
