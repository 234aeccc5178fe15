package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type panelActionRepository interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, action *models.PanelAction) error
	AppendHistory(ctx context.Context, exec sqlx.ExtContext, action models.PanelAction) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.PanelAction, error)
	ListHistory(ctx context.Context, scheduleID string) ([]models.PanelAction, error)
}

type scheduleLookup interface {
	Get(ctx context.Context, id string) (*models.DefenseSchedule, error)
}

// PanelAggregator records panel votes and derives the collective outcome.
type PanelAggregator struct {
	actions   panelActionRepository
	schedules scheduleLookup
	tx        txProvider
	cache     *CacheService
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPanelAggregator constructs the aggregator. cache may be nil.
func NewPanelAggregator(actions panelActionRepository, schedules scheduleLookup, tx txProvider, cache *CacheService, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PanelAggregator {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PanelAggregator{
		actions:   actions,
		schedules: schedules,
		tx:        tx,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// outcomeGenerationTTL outlives any outcome snapshot so an expired generation
// cannot resurrect entries written under it.
const outcomeGenerationTTL = 24 * time.Hour

// Snapshots are keyed by the vote generation current when their read began;
// every recorded vote rotates the generation.
func outcomeCacheKey(scheduleID, generation string) string {
	return fmt.Sprintf("panel:outcome:%s:%s", scheduleID, generation)
}

func outcomeGenerationKey(scheduleID string) string {
	return fmt.Sprintf("panel:outcome:%s:gen", scheduleID)
}

// Submit records a panel member's decision. The latest submission replaces the
// member's current vote and every submission is appended to the history log.
func (a *PanelAggregator) Submit(ctx context.Context, scheduleID, memberID string, req dto.PanelDecisionRequest) (*models.PanelAction, error) {
	schedule, err := a.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !schedule.HasPanelMember(memberID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user is not a panel member for this defense")
	}
	if err := a.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid panel decision payload")
	}
	decision := models.PanelDecision(strings.ToLower(strings.TrimSpace(req.Decision)))
	if !decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown decision %q", req.Decision))
	}
	if schedule.Status == models.ScheduleStatusCancelled || schedule.Status == models.ScheduleStatusRescheduled {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot vote on a %s defense", schedule.Status))
	}

	action := &models.PanelAction{
		ScheduleID:    scheduleID,
		PanelMemberID: memberID,
		Decision:      decision,
		Comments:      strings.TrimSpace(req.Comments),
		SubmittedAt:   a.now().UTC(),
	}
	if err := a.persist(ctx, action); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record panel decision")
	}

	a.rotateGeneration(ctx, scheduleID)
	a.metrics.PanelAction(decision)
	return action, nil
}

func (a *PanelAggregator) persist(ctx context.Context, action *models.PanelAction) (err error) {
	if a.tx == nil {
		return fmt.Errorf("transaction provider missing")
	}
	tx, err := a.tx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = a.actions.Upsert(ctx, tx, action); err != nil {
		return err
	}
	if err = a.actions.AppendHistory(ctx, tx, *action); err != nil {
		return err
	}
	return tx.Commit()
}

// ComputeOutcome derives the panel outcome from the current votes of assigned members.
func (a *PanelAggregator) ComputeOutcome(ctx context.Context, scheduleID string) (*models.PanelOutcomeSummary, error) {
	summary, _, err := a.computeOutcome(ctx, scheduleID, true)
	return summary, err
}

// ComputeOutcomeCached is ComputeOutcome that also reports whether the snapshot came from cache.
func (a *PanelAggregator) ComputeOutcomeCached(ctx context.Context, scheduleID string) (*models.PanelOutcomeSummary, bool, error) {
	return a.computeOutcome(ctx, scheduleID, true)
}

// ComputeOutcomeFresh always reads the votes from storage. Decisions that move
// the thesis use it so a snapshot cached by a concurrent reader is never trusted.
func (a *PanelAggregator) ComputeOutcomeFresh(ctx context.Context, scheduleID string) (*models.PanelOutcomeSummary, error) {
	summary, _, err := a.computeOutcome(ctx, scheduleID, false)
	return summary, err
}

func (a *PanelAggregator) computeOutcome(ctx context.Context, scheduleID string, useCache bool) (*models.PanelOutcomeSummary, bool, error) {
	generation := a.generation(ctx, scheduleID)
	if useCache && a.cache != nil {
		var cached models.PanelOutcomeSummary
		if hit, _ := a.cache.Get(ctx, outcomeCacheKey(scheduleID, generation), &cached); hit {
			return &cached, true, nil
		}
	}

	schedule, err := a.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, false, err
	}
	actions, err := a.actions.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load panel actions")
	}

	outcome, votes, missing := aggregateDecisions(schedule.PanelMemberIDs, actions)
	summary := &models.PanelOutcomeSummary{
		ScheduleID: scheduleID,
		Outcome:    outcome,
		Votes:      votes,
		Missing:    missing,
		ComputedAt: a.now().UTC(),
	}
	if a.cache != nil {
		_ = a.cache.Set(ctx, outcomeCacheKey(scheduleID, generation), summary, a.cacheTTL)
	}
	return summary, false, nil
}

func (a *PanelAggregator) generation(ctx context.Context, scheduleID string) string {
	var generation string
	if a.cache == nil {
		return "0"
	}
	if hit, _ := a.cache.Get(ctx, outcomeGenerationKey(scheduleID), &generation); !hit || generation == "" {
		return "0"
	}
	return generation
}

// rotateGeneration retires every snapshot taken before the latest vote,
// including ones a slow reader has yet to write.
func (a *PanelAggregator) rotateGeneration(ctx context.Context, scheduleID string) {
	if a.cache == nil {
		return
	}
	previous := a.generation(ctx, scheduleID)
	if err := a.cache.Set(ctx, outcomeGenerationKey(scheduleID), uuid.NewString(), outcomeGenerationTTL); err != nil {
		_ = a.cache.Invalidate(ctx, outcomeCacheKey(scheduleID, previous))
	}
}

// ListActions returns the current vote of each member who has voted.
func (a *PanelAggregator) ListActions(ctx context.Context, scheduleID string) ([]models.PanelAction, error) {
	if _, err := a.schedules.Get(ctx, scheduleID); err != nil {
		return nil, err
	}
	actions, err := a.actions.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load panel actions")
	}
	return actions, nil
}

// History returns every submission for the schedule in order.
func (a *PanelAggregator) History(ctx context.Context, scheduleID string) ([]models.PanelAction, error) {
	if _, err := a.schedules.Get(ctx, scheduleID); err != nil {
		return nil, err
	}
	history, err := a.actions.ListHistory(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load panel history")
	}
	return history, nil
}

// aggregateDecisions applies reject > revise > approve; approve needs every
// assigned member to have approved. Votes from non-members are ignored.
func aggregateDecisions(panel []string, actions []models.PanelAction) (models.PanelOutcome, map[string]models.PanelDecision, []string) {
	members := make(map[string]struct{}, len(panel))
	for _, id := range panel {
		members[id] = struct{}{}
	}
	votes := make(map[string]models.PanelDecision, len(panel))
	for _, action := range actions {
		if _, ok := members[action.PanelMemberID]; ok {
			votes[action.PanelMemberID] = action.Decision
		}
	}

	var rejected, revise bool
	approvals := 0
	for _, decision := range votes {
		switch decision {
		case models.DecisionRejected:
			rejected = true
		case models.DecisionNeedsRevision:
			revise = true
		case models.DecisionApproved:
			approvals++
		}
	}

	missing := make([]string, 0)
	for id := range members {
		if _, ok := votes[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)

	switch {
	case rejected:
		return models.OutcomeReject, votes, missing
	case revise:
		return models.OutcomeRevise, votes, missing
	case len(members) > 0 && approvals == len(members):
		return models.OutcomeApprove, votes, missing
	}
	return models.OutcomePending, votes, missing
}
