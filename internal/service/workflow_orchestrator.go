package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type thesisWorkflow interface {
	Create(ctx context.Context, req dto.CreateThesisRequest) (*models.Thesis, error)
	Get(ctx context.Context, id string) (*models.Thesis, error)
	ApplyDocumentEvent(ctx context.Context, id string, req dto.DocumentEventRequest, actor models.Actor) (*models.Thesis, Transition, error)
	ApplyScheduleCreated(ctx context.Context, id string, stage models.DefenseStage, actor models.Actor) (*models.Thesis, Transition, error)
	ApplyDefenseCompleted(ctx context.Context, id string, stage models.DefenseStage, actor models.Actor) (*models.Thesis, Transition, error)
	ApplyScheduleCancelled(ctx context.Context, id string, stage models.DefenseStage, actor models.Actor) (*models.Thesis, Transition, error)
	ApplyPanelOutcome(ctx context.Context, id string, outcome models.PanelOutcome, actor models.Actor) (*models.Thesis, Transition, error)
	Archive(ctx context.Context, id string, actor models.Actor) (*models.Thesis, Transition, error)
}

type defenseWorkflow interface {
	Create(ctx context.Context, req dto.CreateDefenseRequest) (*models.DefenseSchedule, error)
	AutoSchedule(ctx context.Context, req dto.AutoScheduleRequest) (*models.AutoScheduleRun, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleDefenseRequest) (*models.DefenseSchedule, *models.DefenseSchedule, error)
	Cancel(ctx context.Context, id, reason string) (*models.DefenseSchedule, error)
	Start(ctx context.Context, id string) (*models.DefenseSchedule, error)
	Complete(ctx context.Context, id string) (*models.DefenseSchedule, error)
	Get(ctx context.Context, id string) (*models.DefenseSchedule, error)
}

type panelWorkflow interface {
	Submit(ctx context.Context, scheduleID, memberID string, req dto.PanelDecisionRequest) (*models.PanelAction, error)
	ComputeOutcomeFresh(ctx context.Context, scheduleID string) (*models.PanelOutcomeSummary, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, events ...models.DomainEvent)
}

// compensationReason is recorded on schedules cancelled because the thesis
// transition that should accompany them failed.
const compensationReason = "thesis status transition failed"

// WorkflowOrchestrator sequences the lifecycle, scheduler and panel components
// and emits the resulting domain events. Every operation takes the acting
// identity explicitly.
type WorkflowOrchestrator struct {
	theses    thesisWorkflow
	defenses  defenseWorkflow
	panel     panelWorkflow
	events    eventDispatcher
	lifecycle ThesisLifecycle
	logger    *zap.Logger
}

// NewWorkflowOrchestrator wires the orchestrator.
func NewWorkflowOrchestrator(theses thesisWorkflow, defenses defenseWorkflow, panel panelWorkflow, events eventDispatcher, logger *zap.Logger) *WorkflowOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowOrchestrator{theses: theses, defenses: defenses, panel: panel, events: events, logger: logger}
}

func (o *WorkflowOrchestrator) emit(ctx context.Context, events []models.DomainEvent) {
	if o.events == nil || len(events) == 0 {
		return
	}
	o.events.Dispatch(ctx, events...)
}

func statusChanged(actor models.Actor, thesis *models.Thesis, transition Transition) models.DomainEvent {
	return NewDomainEvent(models.EventThesisStatusChanged, actor, models.ThesisStatusChangedPayload{
		ThesisID:       thesis.ID,
		PreviousStatus: transition.From,
		NewStatus:      transition.To,
	})
}

// CreateThesis registers a thesis in DRAFT.
func (o *WorkflowOrchestrator) CreateThesis(ctx context.Context, actor models.Actor, req dto.CreateThesisRequest) (*models.Thesis, []models.DomainEvent, error) {
	thesis, err := o.theses.Create(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	o.logger.Info("thesis created", zap.String("thesis_id", thesis.ID), zap.String("actor_id", actor.UserID))
	return thesis, nil, nil
}

// GetThesis returns a thesis.
func (o *WorkflowOrchestrator) GetThesis(ctx context.Context, _ models.Actor, id string) (*models.Thesis, error) {
	return o.theses.Get(ctx, id)
}

// ApplyDocumentEvent applies a document submission or review.
func (o *WorkflowOrchestrator) ApplyDocumentEvent(ctx context.Context, actor models.Actor, thesisID string, req dto.DocumentEventRequest) (*models.Thesis, []models.DomainEvent, error) {
	thesis, transition, err := o.theses.ApplyDocumentEvent(ctx, thesisID, req, actor)
	if err != nil {
		return nil, nil, err
	}
	events := []models.DomainEvent{statusChanged(actor, thesis, transition)}
	o.emit(ctx, events)
	return thesis, events, nil
}

// readyForDefense fails fast when the thesis cannot take a schedule for stage.
func (o *WorkflowOrchestrator) readyForDefense(ctx context.Context, thesisID, rawStage string) (*models.Thesis, models.DefenseStage, error) {
	stage, ok := models.ParseDefenseStage(rawStage)
	if !ok {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown defense stage")
	}
	thesis, err := o.theses.Get(ctx, thesisID)
	if err != nil {
		return nil, "", err
	}
	if !o.lifecycle.ReadyFor(*thesis, stage) {
		_, planErr := o.lifecycle.ScheduleCreated(*thesis, stage)
		return nil, "", appErrors.WithDetails(appErrors.ErrInvalidTransition, planErr.Error(), planErr)
	}
	return thesis, stage, nil
}

// afterScheduled moves the thesis to X_SCHEDULED, cancelling the schedule if that fails.
func (o *WorkflowOrchestrator) afterScheduled(ctx context.Context, actor models.Actor, schedule *models.DefenseSchedule) ([]models.DomainEvent, error) {
	thesis, transition, err := o.theses.ApplyScheduleCreated(ctx, schedule.ThesisID, schedule.Stage, actor)
	if err != nil {
		if _, cancelErr := o.defenses.Cancel(ctx, schedule.ID, compensationReason); cancelErr != nil {
			o.logger.Error("failed to compensate defense schedule",
				zap.String("schedule_id", schedule.ID),
				zap.Error(cancelErr),
			)
		}
		return nil, err
	}
	return []models.DomainEvent{
		NewDomainEvent(models.EventScheduleCreated, actor, models.ScheduleCreatedPayload{
			ScheduleID:   schedule.ID,
			ThesisID:     schedule.ThesisID,
			Start:        schedule.Start,
			End:          schedule.End,
			Participants: schedule.Participants(),
		}),
		statusChanged(actor, thesis, transition),
	}, nil
}

// ScheduleDefense books an explicit window for a thesis ready for defense.
func (o *WorkflowOrchestrator) ScheduleDefense(ctx context.Context, actor models.Actor, req dto.CreateDefenseRequest) (*models.DefenseSchedule, []models.DomainEvent, error) {
	thesis, _, err := o.readyForDefense(ctx, req.ThesisID, req.Stage)
	if err != nil {
		return nil, nil, err
	}
	if req.AdviserID == "" {
		req.AdviserID = thesis.AdviserID
	}
	req.OrganizerID = actor.UserID

	schedule, err := o.defenses.Create(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	events, err := o.afterScheduled(ctx, actor, schedule)
	if err != nil {
		return nil, nil, err
	}
	o.emit(ctx, events)
	return schedule, events, nil
}

// AutoScheduleDefense books the first free slot within the search horizon.
func (o *WorkflowOrchestrator) AutoScheduleDefense(ctx context.Context, actor models.Actor, req dto.AutoScheduleRequest) (*models.AutoScheduleRun, []models.DomainEvent, error) {
	thesis, _, err := o.readyForDefense(ctx, req.ThesisID, req.Stage)
	if err != nil {
		return nil, nil, err
	}
	if req.AdviserID == "" {
		req.AdviserID = thesis.AdviserID
	}
	req.OrganizerID = actor.UserID

	run, err := o.defenses.AutoSchedule(ctx, req)
	if err != nil || run == nil || run.Schedule == nil {
		return run, nil, err
	}
	events, err := o.afterScheduled(ctx, actor, run.Schedule)
	if err != nil {
		return run, nil, err
	}
	o.emit(ctx, events)
	return run, events, nil
}

// RescheduleDefense moves a defense to a new window.
func (o *WorkflowOrchestrator) RescheduleDefense(ctx context.Context, actor models.Actor, scheduleID string, req dto.RescheduleDefenseRequest) (*models.DefenseSchedule, []models.DomainEvent, error) {
	replacement, previous, err := o.defenses.Reschedule(ctx, scheduleID, req)
	if err != nil {
		return nil, nil, err
	}
	events := []models.DomainEvent{
		NewDomainEvent(models.EventScheduleUpdated, actor, models.ScheduleUpdatedPayload{
			ScheduleID:    replacement.ID,
			ThesisID:      replacement.ThesisID,
			PreviousStart: previous.Start,
			NewStart:      replacement.Start,
		}),
	}
	o.emit(ctx, events)
	return replacement, events, nil
}

// CancelDefense cancels a defense and returns the thesis to the ready status when it was scheduled.
func (o *WorkflowOrchestrator) CancelDefense(ctx context.Context, actor models.Actor, scheduleID, reason string) (*models.DefenseSchedule, []models.DomainEvent, error) {
	schedule, err := o.defenses.Cancel(ctx, scheduleID, reason)
	if err != nil {
		return nil, nil, err
	}
	events := []models.DomainEvent{
		NewDomainEvent(models.EventScheduleCancelled, actor, models.ScheduleCancelledPayload{
			ScheduleID: schedule.ID,
			ThesisID:   schedule.ThesisID,
			Reason:     reason,
		}),
	}

	thesis, err := o.theses.Get(ctx, schedule.ThesisID)
	if err == nil {
		if _, planErr := o.lifecycle.ScheduleCancelled(*thesis, schedule.Stage); planErr == nil {
			updated, transition, applyErr := o.theses.ApplyScheduleCancelled(ctx, thesis.ID, schedule.Stage, actor)
			if applyErr != nil {
				err = applyErr
			} else {
				events = append(events, statusChanged(actor, updated, transition))
			}
		}
	}
	o.emit(ctx, events)
	return schedule, events, err
}

// StartDefense marks a defense in progress.
func (o *WorkflowOrchestrator) StartDefense(ctx context.Context, _ models.Actor, scheduleID string) (*models.DefenseSchedule, []models.DomainEvent, error) {
	schedule, err := o.defenses.Start(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	return schedule, nil, nil
}

// CompleteDefense marks a defense completed and the thesis defended.
func (o *WorkflowOrchestrator) CompleteDefense(ctx context.Context, actor models.Actor, scheduleID string) (*models.DefenseSchedule, []models.DomainEvent, error) {
	schedule, err := o.defenses.Complete(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	thesis, err := o.theses.Get(ctx, schedule.ThesisID)
	if err != nil {
		return schedule, nil, err
	}
	var events []models.DomainEvent
	if _, planErr := o.lifecycle.DefenseCompleted(*thesis, schedule.Stage); planErr == nil {
		updated, transition, applyErr := o.theses.ApplyDefenseCompleted(ctx, thesis.ID, schedule.Stage, actor)
		if applyErr != nil {
			return schedule, nil, applyErr
		}
		events = append(events, statusChanged(actor, updated, transition))
	}
	o.emit(ctx, events)
	return schedule, events, nil
}

// SubmitPanelDecision records the actor's vote. When the outcome becomes
// non-pending and the thesis is still in the schedule's stage, the outcome is
// applied to the thesis and the schedule is completed.
func (o *WorkflowOrchestrator) SubmitPanelDecision(ctx context.Context, actor models.Actor, scheduleID string, req dto.PanelDecisionRequest) (*models.PanelSubmission, []models.DomainEvent, error) {
	action, err := o.panel.Submit(ctx, scheduleID, actor.UserID, req)
	if err != nil {
		return nil, nil, err
	}
	events := []models.DomainEvent{
		NewDomainEvent(models.EventPanelActionRecorded, actor, models.PanelActionRecordedPayload{
			ScheduleID:    scheduleID,
			PanelMemberID: actor.UserID,
			Decision:      action.Decision,
		}),
	}
	result := &models.PanelSubmission{Action: action}

	summary, err := o.panel.ComputeOutcomeFresh(ctx, scheduleID)
	if err != nil {
		o.emit(ctx, events)
		return result, events, err
	}
	result.Outcome = summary
	if summary.Outcome == models.OutcomePending {
		o.emit(ctx, events)
		return result, events, nil
	}

	schedule, err := o.defenses.Get(ctx, scheduleID)
	if err != nil {
		o.emit(ctx, events)
		return result, events, err
	}
	thesis, err := o.theses.Get(ctx, schedule.ThesisID)
	if err != nil {
		o.emit(ctx, events)
		return result, events, err
	}
	if stage, ok := StageOf(thesis.Status); ok && stage == schedule.Stage {
		if _, planErr := o.lifecycle.PanelOutcome(*thesis, summary.Outcome); planErr == nil {
			updated, transition, applyErr := o.theses.ApplyPanelOutcome(ctx, thesis.ID, summary.Outcome, actor)
			if applyErr != nil {
				o.emit(ctx, events)
				return result, events, applyErr
			}
			result.Thesis = updated
			events = append(events, statusChanged(actor, updated, transition))

			if schedule.Status.Active() {
				completed, completeErr := o.defenses.Complete(ctx, schedule.ID)
				if completeErr != nil {
					o.logger.Warn("failed to complete decided defense", zap.String("schedule_id", schedule.ID), zap.Error(completeErr))
				} else {
					schedule = completed
				}
			}
		}
	}
	result.Schedule = schedule
	o.emit(ctx, events)
	return result, events, nil
}

// ArchiveThesis archives a finally approved thesis; repeating it is a no-op.
func (o *WorkflowOrchestrator) ArchiveThesis(ctx context.Context, actor models.Actor, thesisID string) (*models.Thesis, []models.DomainEvent, error) {
	thesis, transition, err := o.theses.Archive(ctx, thesisID, actor)
	if err != nil {
		return nil, nil, err
	}
	if transition.NoOp {
		return thesis, nil, nil
	}
	events := []models.DomainEvent{statusChanged(actor, thesis, transition)}
	o.emit(ctx, events)
	return thesis, events, nil
}
