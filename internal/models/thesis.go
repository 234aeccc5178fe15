package models

import (
	"strings"
	"time"
)

// ThesisStatus is the canonical workflow position of a thesis.
type ThesisStatus string

const (
	ThesisStatusDraft ThesisStatus = "DRAFT"

	ThesisStatusConceptSubmitted          ThesisStatus = "CONCEPT_SUBMITTED"
	ThesisStatusReadyForConceptDefense    ThesisStatus = "READY_FOR_CONCEPT_DEFENSE"
	ThesisStatusConceptScheduled          ThesisStatus = "CONCEPT_SCHEDULED"
	ThesisStatusConceptDefended           ThesisStatus = "CONCEPT_DEFENDED"
	ThesisStatusConceptApproved           ThesisStatus = "CONCEPT_APPROVED"
	ThesisStatusConceptRevisionsRequired  ThesisStatus = "CONCEPT_REVISIONS_REQUIRED"
	ThesisStatusProposalSubmitted         ThesisStatus = "PROPOSAL_SUBMITTED"
	ThesisStatusReadyForProposalDefense   ThesisStatus = "READY_FOR_PROPOSAL_DEFENSE"
	ThesisStatusProposalScheduled         ThesisStatus = "PROPOSAL_SCHEDULED"
	ThesisStatusProposalDefended          ThesisStatus = "PROPOSAL_DEFENDED"
	ThesisStatusProposalApproved          ThesisStatus = "PROPOSAL_APPROVED"
	ThesisStatusProposalRevisionsRequired ThesisStatus = "PROPOSAL_REVISIONS_REQUIRED"
	ThesisStatusResearchInProgress        ThesisStatus = "RESEARCH_IN_PROGRESS"
	ThesisStatusFinalSubmitted            ThesisStatus = "FINAL_SUBMITTED"
	ThesisStatusReadyForFinalDefense      ThesisStatus = "READY_FOR_FINAL_DEFENSE"
	ThesisStatusFinalScheduled            ThesisStatus = "FINAL_SCHEDULED"
	ThesisStatusFinalDefended             ThesisStatus = "FINAL_DEFENDED"
	ThesisStatusFinalApproved             ThesisStatus = "FINAL_APPROVED"
	ThesisStatusFinalRevisionsRequired    ThesisStatus = "FINAL_REVISIONS_REQUIRED"

	ThesisStatusRejected ThesisStatus = "REJECTED"
	ThesisStatusArchived ThesisStatus = "ARCHIVED"
)

var allThesisStatuses = map[ThesisStatus]struct{}{
	ThesisStatusDraft:                     {},
	ThesisStatusConceptSubmitted:          {},
	ThesisStatusReadyForConceptDefense:    {},
	ThesisStatusConceptScheduled:          {},
	ThesisStatusConceptDefended:           {},
	ThesisStatusConceptApproved:           {},
	ThesisStatusConceptRevisionsRequired:  {},
	ThesisStatusProposalSubmitted:         {},
	ThesisStatusReadyForProposalDefense:   {},
	ThesisStatusProposalScheduled:         {},
	ThesisStatusProposalDefended:          {},
	ThesisStatusProposalApproved:          {},
	ThesisStatusProposalRevisionsRequired: {},
	ThesisStatusResearchInProgress:        {},
	ThesisStatusFinalSubmitted:            {},
	ThesisStatusReadyForFinalDefense:      {},
	ThesisStatusFinalScheduled:            {},
	ThesisStatusFinalDefended:             {},
	ThesisStatusFinalApproved:             {},
	ThesisStatusFinalRevisionsRequired:    {},
	ThesisStatusRejected:                  {},
	ThesisStatusArchived:                  {},
}

// Valid reports whether the status belongs to the declared enum.
func (s ThesisStatus) Valid() bool {
	_, ok := allThesisStatuses[s]
	return ok
}

// DefenseStage identifies which defense a schedule or status belongs to.
type DefenseStage string

const (
	StageConcept  DefenseStage = "concept"
	StageProposal DefenseStage = "proposal"
	StageFinal    DefenseStage = "final"
)

// Valid reports whether the stage is one of the three defense stages.
func (s DefenseStage) Valid() bool {
	switch s {
	case StageConcept, StageProposal, StageFinal:
		return true
	}
	return false
}

// ParseDefenseStage normalises user input into a stage.
func ParseDefenseStage(raw string) (DefenseStage, bool) {
	stage := DefenseStage(strings.ToLower(strings.TrimSpace(raw)))
	return stage, stage.Valid()
}

// Thesis is the academic work tracked through the staged review lifecycle.
type Thesis struct {
	ID             string        `db:"id" json:"id"`
	Title          string        `db:"title" json:"title"`
	GroupID        string        `db:"group_id" json:"group_id"`
	AdviserID      string        `db:"adviser_id" json:"adviser_id"`
	Status         ThesisStatus  `db:"status" json:"status"`
	PreviousStatus *ThesisStatus `db:"previous_status" json:"previous_status,omitempty"`
	Feedback       string        `db:"feedback" json:"feedback"`
	Version        int           `db:"version" json:"version"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// ThesisStatusHistory records a single applied transition.
type ThesisStatusHistory struct {
	ID         string       `db:"id" json:"id"`
	ThesisID   string       `db:"thesis_id" json:"thesis_id"`
	FromStatus ThesisStatus `db:"from_status" json:"from_status"`
	ToStatus   ThesisStatus `db:"to_status" json:"to_status"`
	Trigger    string       `db:"trigger" json:"trigger"`
	ActorID    string       `db:"actor_id" json:"actor_id"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// DocumentType is the kind of document a thesis group submits.
type DocumentType string

const (
	DocumentConcept  DocumentType = "concept"
	DocumentProposal DocumentType = "proposal"
	DocumentResearch DocumentType = "research"
	DocumentFinal    DocumentType = "final"
)

// DocumentAction is what happened to a submitted document.
type DocumentAction string

const (
	DocumentSubmitted DocumentAction = "submitted"
	DocumentApproved  DocumentAction = "approved"
	DocumentRejected  DocumentAction = "rejected"
)
