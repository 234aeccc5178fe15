package service

import (
	"fmt"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// Transition triggers recorded in status history.
const (
	TriggerDocumentSubmitted = "document_submitted"
	TriggerDocumentApproved  = "document_approved"
	TriggerDocumentRejected  = "document_rejected"
	TriggerScheduleCreated   = "schedule_created"
	TriggerDefenseCompleted  = "defense_completed"
	TriggerScheduleCancelled = "schedule_cancelled"
	TriggerPanelOutcome      = "panel_outcome"
	TriggerArchive           = "archive"
)

// Transition is a single planned status change. NoOp marks an idempotent request.
type Transition struct {
	From    models.ThesisStatus
	To      models.ThesisStatus
	Trigger string
	NoOp    bool
}

type stageStatuses struct {
	submitted models.ThesisStatus
	ready     models.ThesisStatus
	scheduled models.ThesisStatus
	defended  models.ThesisStatus
	approved  models.ThesisStatus
	revisions models.ThesisStatus
}

var lifecycleStages = map[models.DefenseStage]stageStatuses{
	models.StageConcept: {
		submitted: models.ThesisStatusConceptSubmitted,
		ready:     models.ThesisStatusReadyForConceptDefense,
		scheduled: models.ThesisStatusConceptScheduled,
		defended:  models.ThesisStatusConceptDefended,
		approved:  models.ThesisStatusConceptApproved,
		revisions: models.ThesisStatusConceptRevisionsRequired,
	},
	models.StageProposal: {
		submitted: models.ThesisStatusProposalSubmitted,
		ready:     models.ThesisStatusReadyForProposalDefense,
		scheduled: models.ThesisStatusProposalScheduled,
		defended:  models.ThesisStatusProposalDefended,
		approved:  models.ThesisStatusProposalApproved,
		revisions: models.ThesisStatusProposalRevisionsRequired,
	},
	models.StageFinal: {
		submitted: models.ThesisStatusFinalSubmitted,
		ready:     models.ThesisStatusReadyForFinalDefense,
		scheduled: models.ThesisStatusFinalScheduled,
		defended:  models.ThesisStatusFinalDefended,
		approved:  models.ThesisStatusFinalApproved,
		revisions: models.ThesisStatusFinalRevisionsRequired,
	},
}

// submissionSources lists the statuses from which each document may be submitted.
var submissionSources = map[models.DocumentType][]models.ThesisStatus{
	models.DocumentConcept:  {models.ThesisStatusDraft, models.ThesisStatusConceptRevisionsRequired},
	models.DocumentProposal: {models.ThesisStatusConceptApproved, models.ThesisStatusProposalRevisionsRequired},
	models.DocumentResearch: {models.ThesisStatusProposalApproved},
	models.DocumentFinal:    {models.ThesisStatusResearchInProgress, models.ThesisStatusFinalRevisionsRequired},
}

// fallbackPrevious is used when a rejected submission carries no recorded previous status.
var fallbackPrevious = map[models.DocumentType]models.ThesisStatus{
	models.DocumentConcept:  models.ThesisStatusDraft,
	models.DocumentProposal: models.ThesisStatusConceptApproved,
	models.DocumentFinal:    models.ThesisStatusResearchInProgress,
}

// ThesisLifecycle is the pure transition graph. It never touches storage.
type ThesisLifecycle struct{}

// DocumentEvent plans the transition for a document submission, approval or rejection.
func (ThesisLifecycle) DocumentEvent(thesis models.Thesis, doc models.DocumentType, action models.DocumentAction) (Transition, error) {
	trigger := fmt.Sprintf("%s:%s", documentTrigger(action), doc)
	invalid := func(to models.ThesisStatus) error {
		return &models.InvalidTransitionError{From: thesis.Status, To: to, Trigger: trigger}
	}

	sources, known := submissionSources[doc]
	if !known {
		return Transition{}, invalid("")
	}

	switch action {
	case models.DocumentSubmitted:
		to := submissionTarget(doc)
		for _, src := range sources {
			if thesis.Status == src {
				return Transition{From: thesis.Status, To: to, Trigger: trigger}, nil
			}
		}
		return Transition{}, invalid(to)
	case models.DocumentApproved, models.DocumentRejected:
		stage, ok := documentStage(doc)
		if !ok {
			return Transition{}, invalid("")
		}
		statuses := lifecycleStages[stage]
		if thesis.Status != statuses.submitted {
			if action == models.DocumentApproved {
				return Transition{}, invalid(statuses.ready)
			}
			return Transition{}, invalid("")
		}
		if action == models.DocumentApproved {
			return Transition{From: thesis.Status, To: statuses.ready, Trigger: trigger}, nil
		}
		to := fallbackPrevious[doc]
		if thesis.PreviousStatus != nil && *thesis.PreviousStatus != "" {
			to = *thesis.PreviousStatus
		}
		return Transition{From: thesis.Status, To: to, Trigger: trigger}, nil
	}
	return Transition{}, invalid("")
}

// ScheduleCreated plans READY_FOR_X_DEFENSE to X_SCHEDULED.
func (ThesisLifecycle) ScheduleCreated(thesis models.Thesis, stage models.DefenseStage) (Transition, error) {
	return stageStep(thesis, stage, TriggerScheduleCreated, func(s stageStatuses) (models.ThesisStatus, models.ThesisStatus) {
		return s.ready, s.scheduled
	})
}

// DefenseCompleted plans X_SCHEDULED to X_DEFENDED.
func (ThesisLifecycle) DefenseCompleted(thesis models.Thesis, stage models.DefenseStage) (Transition, error) {
	return stageStep(thesis, stage, TriggerDefenseCompleted, func(s stageStatuses) (models.ThesisStatus, models.ThesisStatus) {
		return s.scheduled, s.defended
	})
}

// ScheduleCancelled plans X_SCHEDULED back to READY_FOR_X_DEFENSE.
func (ThesisLifecycle) ScheduleCancelled(thesis models.Thesis, stage models.DefenseStage) (Transition, error) {
	return stageStep(thesis, stage, TriggerScheduleCancelled, func(s stageStatuses) (models.ThesisStatus, models.ThesisStatus) {
		return s.scheduled, s.ready
	})
}

// PanelOutcome plans the result of a panel decision from X_SCHEDULED or X_DEFENDED.
func (ThesisLifecycle) PanelOutcome(thesis models.Thesis, outcome models.PanelOutcome) (Transition, error) {
	trigger := fmt.Sprintf("%s:%s", TriggerPanelOutcome, outcome)
	stage, ok := StageOf(thesis.Status)
	if !ok {
		return Transition{}, &models.InvalidTransitionError{From: thesis.Status, Trigger: trigger}
	}
	statuses := lifecycleStages[stage]
	if thesis.Status != statuses.scheduled && thesis.Status != statuses.defended {
		return Transition{}, &models.InvalidTransitionError{From: thesis.Status, Trigger: trigger}
	}

	var to models.ThesisStatus
	switch outcome {
	case models.OutcomeApprove:
		to = statuses.approved
	case models.OutcomeRevise:
		to = statuses.revisions
	case models.OutcomeReject:
		to = models.ThesisStatusRejected
	default:
		return Transition{}, &models.InvalidTransitionError{From: thesis.Status, Trigger: trigger}
	}
	return Transition{From: thesis.Status, To: to, Trigger: trigger}, nil
}

// Archive plans FINAL_APPROVED to ARCHIVED; an archived thesis yields a no-op.
func (ThesisLifecycle) Archive(thesis models.Thesis) (Transition, error) {
	switch thesis.Status {
	case models.ThesisStatusArchived:
		return Transition{From: thesis.Status, To: thesis.Status, Trigger: TriggerArchive, NoOp: true}, nil
	case models.ThesisStatusFinalApproved:
		return Transition{From: thesis.Status, To: models.ThesisStatusArchived, Trigger: TriggerArchive}, nil
	}
	return Transition{}, &models.InvalidTransitionError{From: thesis.Status, To: models.ThesisStatusArchived, Trigger: TriggerArchive}
}

// ReadyFor reports whether the thesis may be scheduled for the stage's defense.
func (ThesisLifecycle) ReadyFor(thesis models.Thesis, stage models.DefenseStage) bool {
	statuses, ok := lifecycleStages[stage]
	return ok && thesis.Status == statuses.ready
}

// StageOf returns the defense stage a status belongs to.
func StageOf(status models.ThesisStatus) (models.DefenseStage, bool) {
	for stage, statuses := range lifecycleStages {
		switch status {
		case statuses.submitted, statuses.ready, statuses.scheduled, statuses.defended, statuses.approved, statuses.revisions:
			return stage, true
		}
	}
	return "", false
}

func stageStep(thesis models.Thesis, stage models.DefenseStage, trigger string, edge func(stageStatuses) (models.ThesisStatus, models.ThesisStatus)) (Transition, error) {
	statuses, ok := lifecycleStages[stage]
	if !ok {
		return Transition{}, &models.InvalidTransitionError{From: thesis.Status, Trigger: trigger}
	}
	from, to := edge(statuses)
	if thesis.Status != from {
		return Transition{}, &models.InvalidTransitionError{From: thesis.Status, To: to, Trigger: trigger}
	}
	return Transition{From: from, To: to, Trigger: trigger}, nil
}

func submissionTarget(doc models.DocumentType) models.ThesisStatus {
	if doc == models.DocumentResearch {
		return models.ThesisStatusResearchInProgress
	}
	stage, _ := documentStage(doc)
	return lifecycleStages[stage].submitted
}

func documentStage(doc models.DocumentType) (models.DefenseStage, bool) {
	switch doc {
	case models.DocumentConcept:
		return models.StageConcept, true
	case models.DocumentProposal:
		return models.StageProposal, true
	case models.DocumentFinal:
		return models.StageFinal, true
	}
	return "", false
}

func documentTrigger(action models.DocumentAction) string {
	switch action {
	case models.DocumentSubmitted:
		return TriggerDocumentSubmitted
	case models.DocumentApproved:
		return TriggerDocumentApproved
	case models.DocumentRejected:
		return TriggerDocumentRejected
	}
	return "document_" + string(action)
}
