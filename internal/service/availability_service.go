package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type availabilityRepository interface {
	ListByUsers(ctx context.Context, exec sqlx.ExtContext, userIDs []string) ([]models.Availability, error)
	Replace(ctx context.Context, exec sqlx.ExtContext, userID string, windows []models.Availability) error
}

// AvailabilityService manages declared weekly availability.
type AvailabilityService struct {
	repo      availabilityRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(repo availabilityRepository, tx txProvider, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, tx: tx, validator: validate, logger: logger}
}

// List returns a user's declared windows. An empty list means the user is assumed available.
func (s *AvailabilityService) List(ctx context.Context, userID string) ([]models.Availability, error) {
	windows, err := s.repo.ListByUsers(ctx, nil, []string{userID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if windows == nil {
		windows = []models.Availability{}
	}
	return windows, nil
}

// Replace swaps the user's windows atomically. An empty request clears them.
func (s *AvailabilityService) Replace(ctx context.Context, userID string, req dto.ReplaceAvailabilityRequest) (result []models.Availability, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	windows := make([]models.Availability, 0, len(req.Windows))
	for i, w := range req.Windows {
		candidate := models.Availability{UserID: userID, DayOfWeek: w.DayOfWeek, StartTime: w.StartTime, EndTime: w.EndTime}
		if _, _, parseErr := candidate.Minutes(); parseErr != nil {
			return nil, appErrors.Wrap(parseErr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid availability window %d", i))
		}
		windows = append(windows, candidate)
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Replace(ctx, tx, userID, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit availability")
	}
	s.logger.Info("availability replaced", zap.String("user_id", userID), zap.Int("windows", len(windows)))
	return windows, nil
}
