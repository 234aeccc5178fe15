package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

func thesisAt(status models.ThesisStatus) models.Thesis {
	return models.Thesis{ID: "thesis-1", Status: status, Version: 1}
}

func TestThesisLifecycleDocumentEvents(t *testing.T) {
	var lc ThesisLifecycle
	cases := []struct {
		name   string
		from   models.ThesisStatus
		doc    models.DocumentType
		action models.DocumentAction
		want   models.ThesisStatus
	}{
		{"concept submitted from draft", models.ThesisStatusDraft, models.DocumentConcept, models.DocumentSubmitted, models.ThesisStatusConceptSubmitted},
		{"concept resubmitted after revisions", models.ThesisStatusConceptRevisionsRequired, models.DocumentConcept, models.DocumentSubmitted, models.ThesisStatusConceptSubmitted},
		{"concept approved", models.ThesisStatusConceptSubmitted, models.DocumentConcept, models.DocumentApproved, models.ThesisStatusReadyForConceptDefense},
		{"proposal submitted", models.ThesisStatusConceptApproved, models.DocumentProposal, models.DocumentSubmitted, models.ThesisStatusProposalSubmitted},
		{"proposal approved", models.ThesisStatusProposalSubmitted, models.DocumentProposal, models.DocumentApproved, models.ThesisStatusReadyForProposalDefense},
		{"research started", models.ThesisStatusProposalApproved, models.DocumentResearch, models.DocumentSubmitted, models.ThesisStatusResearchInProgress},
		{"final submitted", models.ThesisStatusResearchInProgress, models.DocumentFinal, models.DocumentSubmitted, models.ThesisStatusFinalSubmitted},
		{"final resubmitted", models.ThesisStatusFinalRevisionsRequired, models.DocumentFinal, models.DocumentSubmitted, models.ThesisStatusFinalSubmitted},
		{"final approved", models.ThesisStatusFinalSubmitted, models.DocumentFinal, models.DocumentApproved, models.ThesisStatusReadyForFinalDefense},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transition, err := lc.DocumentEvent(thesisAt(tc.from), tc.doc, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.from, transition.From)
			assert.Equal(t, tc.want, transition.To)
			assert.False(t, transition.NoOp)
		})
	}
}

func TestThesisLifecycleRejectReturnsToPreviousStatus(t *testing.T) {
	var lc ThesisLifecycle
	previous := models.ThesisStatusConceptRevisionsRequired
	thesis := thesisAt(models.ThesisStatusConceptSubmitted)
	thesis.PreviousStatus = &previous

	transition, err := lc.DocumentEvent(thesis, models.DocumentConcept, models.DocumentRejected)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusConceptRevisionsRequired, transition.To)
	assert.Equal(t, "document_rejected:concept", transition.Trigger)
}

func TestThesisLifecycleRejectFallsBackWithoutPrevious(t *testing.T) {
	var lc ThesisLifecycle
	cases := map[models.DocumentType]struct {
		from models.ThesisStatus
		want models.ThesisStatus
	}{
		models.DocumentConcept:  {models.ThesisStatusConceptSubmitted, models.ThesisStatusDraft},
		models.DocumentProposal: {models.ThesisStatusProposalSubmitted, models.ThesisStatusConceptApproved},
		models.DocumentFinal:    {models.ThesisStatusFinalSubmitted, models.ThesisStatusResearchInProgress},
	}
	for doc, tc := range cases {
		transition, err := lc.DocumentEvent(thesisAt(tc.from), doc, models.DocumentRejected)
		require.NoError(t, err, doc)
		assert.Equal(t, tc.want, transition.To, doc)
	}
}

func TestThesisLifecycleInvalidDocumentEvents(t *testing.T) {
	var lc ThesisLifecycle
	cases := []struct {
		name   string
		from   models.ThesisStatus
		doc    models.DocumentType
		action models.DocumentAction
	}{
		{"proposal from draft", models.ThesisStatusDraft, models.DocumentProposal, models.DocumentSubmitted},
		{"concept approval before submission", models.ThesisStatusDraft, models.DocumentConcept, models.DocumentApproved},
		{"concept from archived", models.ThesisStatusArchived, models.DocumentConcept, models.DocumentSubmitted},
		{"final from rejected", models.ThesisStatusRejected, models.DocumentFinal, models.DocumentSubmitted},
		{"research approval", models.ThesisStatusResearchInProgress, models.DocumentResearch, models.DocumentApproved},
		{"unknown document", models.ThesisStatusDraft, models.DocumentType("memo"), models.DocumentSubmitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := lc.DocumentEvent(thesisAt(tc.from), tc.doc, tc.action)
			var invalid *models.InvalidTransitionError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tc.from, invalid.From)
		})
	}
}

func TestThesisLifecycleDefenseEdges(t *testing.T) {
	var lc ThesisLifecycle

	created, err := lc.ScheduleCreated(thesisAt(models.ThesisStatusReadyForProposalDefense), models.StageProposal)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusProposalScheduled, created.To)

	defended, err := lc.DefenseCompleted(thesisAt(models.ThesisStatusProposalScheduled), models.StageProposal)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusProposalDefended, defended.To)

	cancelled, err := lc.ScheduleCancelled(thesisAt(models.ThesisStatusFinalScheduled), models.StageFinal)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusReadyForFinalDefense, cancelled.To)

	_, err = lc.ScheduleCreated(thesisAt(models.ThesisStatusReadyForConceptDefense), models.StageFinal)
	assert.Error(t, err)

	_, err = lc.ScheduleCreated(thesisAt(models.ThesisStatusDraft), models.DefenseStage("viva"))
	assert.Error(t, err)
}

func TestThesisLifecyclePanelOutcome(t *testing.T) {
	var lc ThesisLifecycle
	cases := []struct {
		from    models.ThesisStatus
		outcome models.PanelOutcome
		want    models.ThesisStatus
	}{
		{models.ThesisStatusConceptScheduled, models.OutcomeApprove, models.ThesisStatusConceptApproved},
		{models.ThesisStatusConceptDefended, models.OutcomeRevise, models.ThesisStatusConceptRevisionsRequired},
		{models.ThesisStatusProposalDefended, models.OutcomeApprove, models.ThesisStatusProposalApproved},
		{models.ThesisStatusFinalScheduled, models.OutcomeReject, models.ThesisStatusRejected},
		{models.ThesisStatusFinalDefended, models.OutcomeApprove, models.ThesisStatusFinalApproved},
	}
	for _, tc := range cases {
		transition, err := lc.PanelOutcome(thesisAt(tc.from), tc.outcome)
		require.NoError(t, err)
		assert.Equal(t, tc.want, transition.To)
	}

	_, err := lc.PanelOutcome(thesisAt(models.ThesisStatusConceptScheduled), models.OutcomePending)
	assert.Error(t, err)
	_, err = lc.PanelOutcome(thesisAt(models.ThesisStatusReadyForConceptDefense), models.OutcomeApprove)
	assert.Error(t, err)
	_, err = lc.PanelOutcome(thesisAt(models.ThesisStatusDraft), models.OutcomeApprove)
	assert.Error(t, err)
}

func TestThesisLifecycleArchive(t *testing.T) {
	var lc ThesisLifecycle

	transition, err := lc.Archive(thesisAt(models.ThesisStatusFinalApproved))
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusArchived, transition.To)

	noop, err := lc.Archive(thesisAt(models.ThesisStatusArchived))
	require.NoError(t, err)
	assert.True(t, noop.NoOp)

	_, err = lc.Archive(thesisAt(models.ThesisStatusFinalScheduled))
	assert.Error(t, err)
}

func TestThesisLifecycleReadyForAndStageOf(t *testing.T) {
	var lc ThesisLifecycle
	assert.True(t, lc.ReadyFor(thesisAt(models.ThesisStatusReadyForConceptDefense), models.StageConcept))
	assert.False(t, lc.ReadyFor(thesisAt(models.ThesisStatusReadyForConceptDefense), models.StageProposal))
	assert.False(t, lc.ReadyFor(thesisAt(models.ThesisStatusConceptSubmitted), models.StageConcept))

	stage, ok := StageOf(models.ThesisStatusFinalDefended)
	require.True(t, ok)
	assert.Equal(t, models.StageFinal, stage)

	_, ok = StageOf(models.ThesisStatusResearchInProgress)
	assert.False(t, ok)
	_, ok = StageOf(models.ThesisStatusArchived)
	assert.False(t, ok)
}
