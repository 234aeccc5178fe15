package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type thesisRepository interface {
	Create(ctx context.Context, thesis *models.Thesis) error
	FindByID(ctx context.Context, id string) (*models.Thesis, error)
	FindByGroupID(ctx context.Context, groupID string) (*models.Thesis, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, thesis *models.Thesis, expectedVersion int) error
	InsertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.ThesisStatusHistory) error
	ListHistory(ctx context.Context, thesisID string) ([]models.ThesisStatusHistory, error)
}

// transitionAttempts bounds the optimistic re-read loop: the first try plus one retry.
const transitionAttempts = 2

// TransitionPlan derives a transition from the freshly read thesis.
type TransitionPlan func(models.Thesis) (Transition, error)

// ThesisService applies lifecycle transitions with optimistic concurrency.
type ThesisService struct {
	repo      thesisRepository
	tx        txProvider
	lifecycle ThesisLifecycle
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewThesisService constructs the service.
func NewThesisService(repo thesisRepository, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ThesisService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThesisService{repo: repo, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// Lifecycle exposes the transition graph used by the service.
func (s *ThesisService) Lifecycle() ThesisLifecycle {
	return s.lifecycle
}

// Create registers a new thesis in DRAFT for an approved group.
func (s *ThesisService) Create(ctx context.Context, req dto.CreateThesisRequest) (*models.Thesis, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid thesis payload")
	}
	if _, err := s.repo.FindByGroupID(ctx, req.GroupID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "group already has a thesis")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group thesis")
	}

	thesis := &models.Thesis{
		Title:     strings.TrimSpace(req.Title),
		GroupID:   req.GroupID,
		AdviserID: req.AdviserID,
		Status:    models.ThesisStatusDraft,
	}
	if err := s.repo.Create(ctx, thesis); err != nil {
		// theses.group_id is unique; a concurrent create for the same group lands here.
		if isUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "group already has a thesis")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create thesis")
	}
	return thesis, nil
}

// Get returns a thesis by id.
func (s *ThesisService) Get(ctx context.Context, id string) (*models.Thesis, error) {
	thesis, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	return thesis, nil
}

// History returns applied transitions for a thesis.
func (s *ThesisService) History(ctx context.Context, id string) ([]models.ThesisStatusHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis history")
	}
	return history, nil
}

// ApplyDocumentEvent routes a document submission, approval or rejection through the graph.
func (s *ThesisService) ApplyDocumentEvent(ctx context.Context, id string, req dto.DocumentEventRequest, actor models.Actor) (*models.Thesis, Transition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, Transition{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document event payload")
	}
	doc := models.DocumentType(req.DocumentType)
	action := models.DocumentAction(req.Action)
	var feedback *string
	if action != models.DocumentSubmitted {
		feedback = &req.Feedback
	}
	return s.Apply(ctx, id, actor, feedback, func(t models.Thesis) (Transition, error) {
		return s.lifecycle.DocumentEvent(t, doc, action)
	})
}

// ApplyScheduleCreated moves the thesis into the stage's scheduled status.
func (s *ThesisService) ApplyScheduleCreated(ctx context.Context, id string, stage models.DefenseStage, actor models.Actor) (*models.Thesis, Transition, error) {
	return s.Apply(ctx, id, actor, nil, func(t models.Thesis) (Transition, error) {
		return s.lifecycle.ScheduleCreated(t, stage)
	})
}

// ApplyDefenseCompleted records that the oral defense took place.
func (s *ThesisService) ApplyDefenseCompleted(ctx context.Context, id string, stage models.DefenseStage, actor models.Actor) (*models.Thesis, Transition, error) {
	return s.Apply(ctx, id, actor, nil, func(t models.Thesis) (Transition, error) {
		return s.lifecycle.DefenseCompleted(t, stage)
	})
}

// ApplyScheduleCancelled returns the thesis to the ready status after a cancellation.
func (s *ThesisService) ApplyScheduleCancelled(ctx context.Context, id string, stage models.DefenseStage, actor models.Actor) (*models.Thesis, Transition, error) {
	return s.Apply(ctx, id, actor, nil, func(t models.Thesis) (Transition, error) {
		return s.lifecycle.ScheduleCancelled(t, stage)
	})
}

// ApplyPanelOutcome applies a non-pending panel outcome.
func (s *ThesisService) ApplyPanelOutcome(ctx context.Context, id string, outcome models.PanelOutcome, actor models.Actor) (*models.Thesis, Transition, error) {
	return s.Apply(ctx, id, actor, nil, func(t models.Thesis) (Transition, error) {
		return s.lifecycle.PanelOutcome(t, outcome)
	})
}

// Archive closes out a finally approved thesis. Archiving twice is a no-op.
func (s *ThesisService) Archive(ctx context.Context, id string, actor models.Actor) (*models.Thesis, Transition, error) {
	return s.Apply(ctx, id, actor, nil, s.lifecycle.Archive)
}

// Apply reads the thesis, plans a transition and persists it guarded by the read version.
// A stale write is retried once against a fresh read before surfacing a concurrency conflict.
func (s *ThesisService) Apply(ctx context.Context, id string, actor models.Actor, feedback *string, plan TransitionPlan) (*models.Thesis, Transition, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, Transition{}, err
		}

		transition, err := plan(*current)
		if err != nil {
			var invalid *models.InvalidTransitionError
			if errors.As(err, &invalid) {
				return nil, Transition{}, appErrors.WithDetails(appErrors.ErrInvalidTransition, invalid.Error(), invalid)
			}
			return nil, Transition{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to plan transition")
		}
		if transition.NoOp {
			return current, transition, nil
		}

		updated := *current
		from := current.Status
		updated.PreviousStatus = &from
		updated.Status = transition.To
		if feedback != nil {
			updated.Feedback = *feedback
		}

		err = s.persist(ctx, &updated, current.Version, transition, actor)
		if errors.Is(err, repository.ErrStaleVersion) {
			s.logger.Info("stale thesis version, retrying transition",
				zap.String("thesis_id", id),
				zap.Int("version", current.Version),
				zap.String("trigger", transition.Trigger),
			)
			continue
		}
		if err != nil {
			return nil, Transition{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist thesis transition")
		}

		s.metrics.ThesisTransition(transition.From, transition.To)
		return &updated, transition, nil
	}
	return nil, Transition{}, appErrors.Clone(appErrors.ErrConcurrencyConflict, "thesis was modified concurrently")
}

func (s *ThesisService) persist(ctx context.Context, thesis *models.Thesis, expectedVersion int, transition Transition, actor models.Actor) (err error) {
	if s.tx == nil {
		return errors.New("transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.UpdateStatus(ctx, tx, thesis, expectedVersion); err != nil {
		return err
	}
	if err = s.repo.InsertHistory(ctx, tx, &models.ThesisStatusHistory{
		ThesisID:   thesis.ID,
		FromStatus: transition.From,
		ToStatus:   transition.To,
		Trigger:    transition.Trigger,
		ActorID:    actor.UserID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
