package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type defenseScheduleRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.DefenseSchedule) error
	FindByID(ctx context.Context, id string) (*models.DefenseSchedule, error)
	HasActiveForStage(ctx context.Context, exec sqlx.ExtContext, thesisID string, stage models.DefenseStage, excludeID string) (bool, error)
	AcquireLocks(ctx context.Context, exec sqlx.ExtContext, keys []string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus, reason *string) error
	List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseSchedule, error)
}

type autoScheduleRunRepository interface {
	Create(ctx context.Context, run *models.AutoScheduleRun) error
	Finish(ctx context.Context, run *models.AutoScheduleRun) error
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, exec sqlx.ExtContext, participants []string, window models.TimeRange, excludeID string) ([]string, error)
	FilterFree(ctx context.Context, exec sqlx.ExtContext, participants []string, candidates []models.TimeRange) ([]models.TimeRange, error)
}

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// DefenseSchedulerConfig governs slot search.
type DefenseSchedulerConfig struct {
	Location               *time.Location
	WorkStartHour          int
	WorkEndHour            int
	SearchHorizonDays      int
	DefaultDurationMinutes int
	Now                    func() time.Time
}

// DefenseScheduler creates defense sessions without double-booking participants.
type DefenseScheduler struct {
	schedules defenseScheduleRepository
	runs      autoScheduleRunRepository
	conflicts availabilityChecker
	tx        txProvider
	locker    *keyedLocker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DefenseSchedulerConfig
}

// NewDefenseScheduler wires scheduler dependencies.
func NewDefenseScheduler(
	schedules defenseScheduleRepository,
	runs autoScheduleRunRepository,
	conflicts availabilityChecker,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg DefenseSchedulerConfig,
) *DefenseScheduler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WorkEndHour <= cfg.WorkStartHour {
		cfg.WorkStartHour, cfg.WorkEndHour = 9, 17
	}
	if cfg.SearchHorizonDays <= 0 {
		cfg.SearchHorizonDays = 7
	}
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = 60
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &DefenseScheduler{
		schedules: schedules,
		runs:      runs,
		conflicts: conflicts,
		tx:        tx,
		locker:    newKeyedLocker(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create validates and books a defense session.
func (s *DefenseScheduler) Create(ctx context.Context, req dto.CreateDefenseRequest) (*models.DefenseSchedule, error) {
	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	if err := s.book(ctx, schedule, ""); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *DefenseScheduler) buildSchedule(req dto.CreateDefenseRequest) (*models.DefenseSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid defense schedule payload")
	}
	window := models.TimeRange{Start: req.Start, End: req.End}
	if !window.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start must be before end")
	}
	stage, ok := models.ParseDefenseStage(req.Stage)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown defense stage")
	}
	panel := uniqueSorted(req.PanelMemberIDs)
	if len(panel) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "panel must not be empty")
	}
	return &models.DefenseSchedule{
		ThesisID:       req.ThesisID,
		Stage:          stage,
		Start:          window.Start.UTC(),
		End:            window.End.UTC(),
		Location:       strings.TrimSpace(req.Location),
		Status:         models.ScheduleStatusScheduled,
		OrganizerID:    req.OrganizerID,
		AdviserID:      req.AdviserID,
		PanelMemberIDs: pq.StringArray(panel),
	}, nil
}

// book runs the locked check-then-insert. When schedule.RescheduledFrom is set the
// previous schedule is excluded from checks and flipped to rescheduled in the same transaction.
func (s *DefenseScheduler) book(ctx context.Context, schedule *models.DefenseSchedule, excludeID string) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	participants := schedule.Participants()
	keys := make([]string, 0, len(participants)+1)
	for _, p := range participants {
		keys = append(keys, "participant:"+p)
	}
	keys = append(keys, fmt.Sprintf("thesis:%s:%s", schedule.ThesisID, schedule.Stage))

	release := s.locker.Lock(keys)
	defer release()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.schedules.AcquireLocks(ctx, tx, keys); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock participants")
	}

	active, err := s.schedules.HasActiveForStage(ctx, tx, schedule.ThesisID, schedule.Stage, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active defense")
	}
	if active {
		err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("thesis already has an active %s defense", schedule.Stage))
		return err
	}

	conflicting, err := s.conflicts.CheckAvailability(ctx, tx, participants, schedule.Window(), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check participant availability")
	}
	if len(conflicting) > 0 {
		s.metrics.ScheduleConflict()
		detail := &models.ParticipantConflictError{
			Participants: conflicting,
			Start:        schedule.Start.Format(time.RFC3339),
			End:          schedule.End.Format(time.RFC3339),
		}
		err = appErrors.WithDetails(appErrors.ErrConflict, "participants unavailable for the requested window", detail)
		return err
	}

	if err = s.schedules.Create(ctx, tx, schedule); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "thesis already has an active defense for this stage")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create defense schedule")
	}
	if schedule.RescheduledFrom != nil {
		if err = s.schedules.UpdateStatus(ctx, tx, *schedule.RescheduledFrom, models.ScheduleStatusRescheduled, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark previous schedule rescheduled")
		}
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit defense schedule")
	}

	s.metrics.ScheduleCreated(schedule.Stage)
	s.logger.Info("defense scheduled",
		zap.String("schedule_id", schedule.ID),
		zap.String("thesis_id", schedule.ThesisID),
		zap.String("stage", string(schedule.Stage)),
		zap.Time("start", schedule.Start),
	)
	return nil
}

// FindFreeSlots sweeps the work day in duration steps and returns windows where
// every participant is free. durationMinutes <= 0 uses the configured default.
func (s *DefenseScheduler) FindFreeSlots(ctx context.Context, participants []string, date time.Time, durationMinutes int) ([]models.TimeRange, error) {
	if len(uniqueSorted(participants)) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "participants must not be empty")
	}
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.DefaultDurationMinutes
	}
	duration := time.Duration(durationMinutes) * time.Minute

	local := date.In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.WorkStartHour, 0, 0, 0, s.cfg.Location)
	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.WorkEndHour, 0, 0, 0, s.cfg.Location)

	candidates := make([]models.TimeRange, 0)
	for cursor := dayStart; !cursor.Add(duration).After(dayEnd); cursor = cursor.Add(duration) {
		candidates = append(candidates, models.TimeRange{Start: cursor, End: cursor.Add(duration)})
	}
	slots, err := s.conflicts.FilterFree(ctx, nil, participants, candidates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant calendars")
	}
	return slots, nil
}

// FreeSlots validates a free-slot query and resolves its date in the scheduler's time zone.
func (s *DefenseScheduler) FreeSlots(ctx context.Context, req dto.FreeSlotsRequest) ([]models.TimeRange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid free slot query")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	return s.FindFreeSlots(ctx, req.Participants, date, req.DurationMinutes)
}

// AutoSchedule searches the preferred date (or today) and the following horizon days
// for the first free slot and books it. The run is persisted whatever the outcome; an
// exhausted horizon yields a failed run and no error.
func (s *DefenseScheduler) AutoSchedule(ctx context.Context, req dto.AutoScheduleRequest) (*models.AutoScheduleRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto schedule payload")
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = s.cfg.DefaultDurationMinutes
	}

	now := s.cfg.Now().In(s.cfg.Location)
	base := now
	var preferred *time.Time
	if req.PreferredDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.PreferredDate, s.cfg.Location)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferred date")
		}
		base = parsed
		preferred = &parsed
	}
	base = time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, s.cfg.Location)

	run := &models.AutoScheduleRun{
		ThesisID:        req.ThesisID,
		Status:          models.AutoScheduleRunning,
		RequestedBy:     req.OrganizerID,
		PreferredDate:   preferred,
		DurationMinutes: duration,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record auto schedule run")
	}

	participants := append([]string{req.AdviserID}, req.PanelMemberIDs...)
	for offset := 0; offset <= s.cfg.SearchHorizonDays; offset++ {
		date := base.AddDate(0, 0, offset)
		run.AttemptedDates = append(run.AttemptedDates, date.Format("2006-01-02"))

		slots, err := s.FindFreeSlots(ctx, participants, date, duration)
		if err != nil {
			return s.failRun(ctx, run, err.Error(), err)
		}
		slot, ok := firstFutureSlot(slots, now)
		if !ok {
			continue
		}

		schedule, err := s.Create(ctx, dto.CreateDefenseRequest{
			ThesisID:       req.ThesisID,
			Stage:          req.Stage,
			Start:          slot.Start,
			End:            slot.End,
			Location:       req.Location,
			AdviserID:      req.AdviserID,
			PanelMemberIDs: req.PanelMemberIDs,
			OrganizerID:    req.OrganizerID,
		})
		if err != nil {
			return s.failRun(ctx, run, appErrors.FromError(err).Message, err)
		}

		run.Status = models.AutoScheduleCompleted
		run.ScheduleID = &schedule.ID
		run.Schedule = schedule
		if err := s.runs.Finish(ctx, run); err != nil {
			s.logger.Error("failed to finish auto schedule run", zap.String("run_id", run.ID), zap.Error(err))
		}
		s.metrics.AutoScheduleRun(run.Status)
		return run, nil
	}

	return s.failRun(ctx, run, models.AutoScheduleReasonNoSlots, nil)
}

func (s *DefenseScheduler) failRun(ctx context.Context, run *models.AutoScheduleRun, reason string, cause error) (*models.AutoScheduleRun, error) {
	run.Status = models.AutoScheduleFailed
	run.Reason = &reason
	if err := s.runs.Finish(ctx, run); err != nil {
		s.logger.Error("failed to finish auto schedule run", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.metrics.AutoScheduleRun(run.Status)
	return run, cause
}

// firstFutureSlot skips slots that already started relative to now.
func firstFutureSlot(slots []models.TimeRange, now time.Time) (models.TimeRange, bool) {
	for _, slot := range slots {
		if !slot.Start.Before(now) {
			return slot, true
		}
	}
	return models.TimeRange{}, false
}

// Reschedule moves an active defense to a new window by creating a replacement
// and marking the original rescheduled.
func (s *DefenseScheduler) Reschedule(ctx context.Context, id string, req dto.RescheduleDefenseRequest) (*models.DefenseSchedule, *models.DefenseSchedule, error) {
	previous, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if previous.Status != models.ScheduleStatusScheduled && previous.Status != models.ScheduleStatusPending {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot reschedule a %s defense", previous.Status))
	}
	location := previous.Location
	if req.Location != nil {
		location = *req.Location
	}

	replacement, err := s.buildSchedule(dto.CreateDefenseRequest{
		ThesisID:       previous.ThesisID,
		Stage:          string(previous.Stage),
		Start:          req.Start,
		End:            req.End,
		Location:       location,
		AdviserID:      previous.AdviserID,
		PanelMemberIDs: previous.PanelMemberIDs,
		OrganizerID:    previous.OrganizerID,
	})
	if err != nil {
		return nil, nil, err
	}
	replacement.RescheduledFrom = &previous.ID
	if err := s.book(ctx, replacement, previous.ID); err != nil {
		return nil, nil, err
	}
	previous.Status = models.ScheduleStatusRescheduled
	return replacement, previous, nil
}

// Cancel soft-cancels a pending or active defense.
func (s *DefenseScheduler) Cancel(ctx context.Context, id, reason string) (*models.DefenseSchedule, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !schedule.Status.Active() && schedule.Status != models.ScheduleStatusPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot cancel a %s defense", schedule.Status))
	}
	reason = strings.TrimSpace(reason)
	if err := s.updateStatus(ctx, schedule, models.ScheduleStatusCancelled, &reason); err != nil {
		return nil, err
	}
	return schedule, nil
}

// Start marks a scheduled defense in progress.
func (s *DefenseScheduler) Start(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Status != models.ScheduleStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot start a %s defense", schedule.Status))
	}
	if err := s.updateStatus(ctx, schedule, models.ScheduleStatusInProgress, nil); err != nil {
		return nil, err
	}
	return schedule, nil
}

// Complete marks an active defense completed.
func (s *DefenseScheduler) Complete(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !schedule.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot complete a %s defense", schedule.Status))
	}
	if err := s.updateStatus(ctx, schedule, models.ScheduleStatusCompleted, nil); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *DefenseScheduler) updateStatus(ctx context.Context, schedule *models.DefenseSchedule, status models.ScheduleStatus, reason *string) error {
	if err := s.schedules.UpdateStatus(ctx, nil, schedule.ID, status, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "defense schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update defense schedule")
	}
	schedule.Status = status
	if reason != nil {
		schedule.CancelReason = reason
	}
	return nil
}

// Get loads a schedule by id.
func (s *DefenseScheduler) Get(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "defense schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load defense schedule")
	}
	return schedule, nil
}

// ListByThesis returns every schedule of a thesis.
func (s *DefenseScheduler) ListByThesis(ctx context.Context, thesisID string) ([]models.DefenseSchedule, error) {
	return s.List(ctx, models.DefenseScheduleFilter{ThesisID: thesisID})
}

// ListByParticipant returns a participant's schedules intersecting [from, to).
func (s *DefenseScheduler) ListByParticipant(ctx context.Context, participantID string, from, to *time.Time) ([]models.DefenseSchedule, error) {
	return s.List(ctx, models.DefenseScheduleFilter{ParticipantID: participantID, From: from, To: to})
}

// List returns schedules matching the filter.
func (s *DefenseScheduler) List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseSchedule, error) {
	schedules, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list defense schedules")
	}
	sort.SliceStable(schedules, func(i, j int) bool { return schedules[i].Start.Before(schedules[j].Start) })
	return schedules, nil
}
