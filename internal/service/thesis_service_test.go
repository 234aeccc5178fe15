package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type thesisRepoStub struct {
	mu        sync.Mutex
	theses    map[string]*models.Thesis
	history   []models.ThesisStatusHistory
	staleHits int
	created   int
	createErr error
}

func newThesisRepoStub(theses ...models.Thesis) *thesisRepoStub {
	stub := &thesisRepoStub{theses: make(map[string]*models.Thesis)}
	for i := range theses {
		t := theses[i]
		stub.theses[t.ID] = &t
	}
	return stub
}

func (s *thesisRepoStub) Create(ctx context.Context, thesis *models.Thesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created++
	if thesis.ID == "" {
		thesis.ID = "thesis-new"
	}
	thesis.Version = 1
	clone := *thesis
	s.theses[thesis.ID] = &clone
	return nil
}

func (s *thesisRepoStub) FindByID(ctx context.Context, id string) (*models.Thesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.theses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (s *thesisRepoStub) FindByGroupID(ctx context.Context, groupID string) (*models.Thesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.theses {
		if t.GroupID == groupID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *thesisRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, thesis *models.Thesis, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleHits > 0 {
		s.staleHits--
		return repository.ErrStaleVersion
	}
	current, ok := s.theses[thesis.ID]
	if !ok || current.Version != expectedVersion {
		return repository.ErrStaleVersion
	}
	thesis.Version = expectedVersion + 1
	clone := *thesis
	s.theses[thesis.ID] = &clone
	return nil
}

func (s *thesisRepoStub) InsertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.ThesisStatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *entry)
	return nil
}

func (s *thesisRepoStub) ListHistory(ctx context.Context, thesisID string) ([]models.ThesisStatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ThesisStatusHistory
	for _, h := range s.history {
		if h.ThesisID == thesisID {
			out = append(out, h)
		}
	}
	return out, nil
}

var testActor = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}

func TestThesisServiceCreate(t *testing.T) {
	repo := newThesisRepoStub()
	svc := NewThesisService(repo, nil, nil, nil, zap.NewNop())

	thesis, err := svc.Create(context.Background(), dto.CreateThesisRequest{Title: "  Graph Scheduling  ", GroupID: "group-1", AdviserID: "adv-1"})
	require.NoError(t, err)
	assert.Equal(t, "Graph Scheduling", thesis.Title)
	assert.Equal(t, models.ThesisStatusDraft, thesis.Status)

	_, err = svc.Create(context.Background(), dto.CreateThesisRequest{Title: "Second", GroupID: "group-1", AdviserID: "adv-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), dto.CreateThesisRequest{GroupID: "group-2"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 1, repo.created)
}

func TestThesisServiceCreateRacingGroupIsConflict(t *testing.T) {
	repo := newThesisRepoStub()
	repo.createErr = &pq.Error{Code: "23505", Constraint: "theses_group_id_key"}
	svc := NewThesisService(repo, nil, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateThesisRequest{Title: "Racing", GroupID: "group-1", AdviserID: "adv-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	repo.createErr = errors.New("connection reset")
	_, err = svc.Create(context.Background(), dto.CreateThesisRequest{Title: "Racing", GroupID: "group-1", AdviserID: "adv-1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestThesisServiceApplyDocumentEvent(t *testing.T) {
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", GroupID: "group-1", AdviserID: "adv-1", Status: models.ThesisStatusDraft, Version: 1})
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewThesisService(repo, tx, nil, nil, zap.NewNop())

	thesis, transition, err := svc.ApplyDocumentEvent(context.Background(), "thesis-1", dto.DocumentEventRequest{DocumentType: "concept", Action: "submitted"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusConceptSubmitted, thesis.Status)
	require.NotNil(t, thesis.PreviousStatus)
	assert.Equal(t, models.ThesisStatusDraft, *thesis.PreviousStatus)
	assert.Equal(t, 2, thesis.Version)
	assert.Equal(t, "document_submitted:concept", transition.Trigger)
	require.Len(t, repo.history, 1)
	assert.Equal(t, "admin-1", repo.history[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisServiceRejectStoresFeedback(t *testing.T) {
	previous := models.ThesisStatusConceptApproved
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", Status: models.ThesisStatusProposalSubmitted, PreviousStatus: &previous, Version: 4})
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewThesisService(repo, tx, nil, nil, zap.NewNop())

	thesis, _, err := svc.ApplyDocumentEvent(context.Background(), "thesis-1", dto.DocumentEventRequest{DocumentType: "proposal", Action: "rejected", Feedback: "scope too wide"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusConceptApproved, thesis.Status)
	assert.Equal(t, "scope too wide", thesis.Feedback)
}

func TestThesisServiceInvalidTransition(t *testing.T) {
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", Status: models.ThesisStatusDraft, Version: 1})
	svc := NewThesisService(repo, nil, nil, nil, zap.NewNop())

	_, _, err := svc.ApplyDocumentEvent(context.Background(), "thesis-1", dto.DocumentEventRequest{DocumentType: "final", Action: "submitted"}, testActor)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	appErr := appErrors.FromError(err)
	_, ok := appErr.Details.(*models.InvalidTransitionError)
	assert.True(t, ok)
	assert.Empty(t, repo.history)
}

func TestThesisServiceRetriesStaleVersionOnce(t *testing.T) {
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", Status: models.ThesisStatusReadyForConceptDefense, Version: 3})
	repo.staleHits = 1
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewThesisService(repo, tx, nil, nil, zap.NewNop())

	thesis, _, err := svc.ApplyScheduleCreated(context.Background(), "thesis-1", models.StageConcept, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusConceptScheduled, thesis.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisServiceConcurrencyConflictAfterRetry(t *testing.T) {
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", Status: models.ThesisStatusReadyForConceptDefense, Version: 3})
	repo.staleHits = transitionAttempts
	tx, mock := newTxProviderMock(t)
	for i := 0; i < transitionAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
	svc := NewThesisService(repo, tx, nil, nil, zap.NewNop())

	_, _, err := svc.ApplyScheduleCreated(context.Background(), "thesis-1", models.StageConcept, testActor)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConcurrencyConflict))
	assert.Empty(t, repo.history)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisServiceArchiveIsIdempotent(t *testing.T) {
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", Status: models.ThesisStatusArchived, Version: 9})
	svc := NewThesisService(repo, nil, nil, nil, zap.NewNop())

	thesis, transition, err := svc.Archive(context.Background(), "thesis-1", testActor)
	require.NoError(t, err)
	assert.True(t, transition.NoOp)
	assert.Equal(t, 9, thesis.Version)
	assert.Empty(t, repo.history)
}

func TestThesisServiceNotFound(t *testing.T) {
	svc := NewThesisService(newThesisRepoStub(), nil, nil, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, _, err = svc.Archive(context.Background(), "missing", testActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestThesisServiceHistory(t *testing.T) {
	repo := newThesisRepoStub(models.Thesis{ID: "thesis-1", Status: models.ThesisStatusFinalApproved, Version: 1})
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewThesisService(repo, tx, nil, nil, zap.NewNop())

	_, _, err := svc.Archive(context.Background(), "thesis-1", testActor)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), "thesis-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ThesisStatusFinalApproved, history[0].FromStatus)
	assert.Equal(t, models.ThesisStatusArchived, history[0].ToStatus)
	assert.Equal(t, TriggerArchive, history[0].Trigger)
}
