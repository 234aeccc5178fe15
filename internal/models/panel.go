package models

import "time"

// PanelDecision is an individual panel member's vote.
type PanelDecision string

const (
	DecisionApproved      PanelDecision = "approved"
	DecisionNeedsRevision PanelDecision = "needs_revision"
	DecisionRejected      PanelDecision = "rejected"
)

// Valid reports whether the decision is a declared vote.
func (d PanelDecision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionNeedsRevision, DecisionRejected:
		return true
	}
	return false
}

// PanelOutcome is the collective result of a panel's votes.
type PanelOutcome string

const (
	OutcomeApprove PanelOutcome = "approve"
	OutcomeRevise  PanelOutcome = "revise"
	OutcomeReject  PanelOutcome = "reject"
	OutcomePending PanelOutcome = "pending"
)

// PanelAction is the current decision of one panel member on one schedule.
type PanelAction struct {
	ID            string        `db:"id" json:"id"`
	ScheduleID    string        `db:"schedule_id" json:"schedule_id"`
	PanelMemberID string        `db:"panel_member_id" json:"panel_member_id"`
	Decision      PanelDecision `db:"decision" json:"decision"`
	Comments      string        `db:"comments" json:"comments"`
	SubmittedAt   time.Time     `db:"submitted_at" json:"submitted_at"`
}

// PanelOutcomeSummary is a read snapshot of a schedule's voting state.
type PanelOutcomeSummary struct {
	ScheduleID string                   `json:"schedule_id"`
	Outcome    PanelOutcome             `json:"outcome"`
	Votes      map[string]PanelDecision `json:"votes"`
	Missing    []string                 `json:"missing,omitempty"`
	ComputedAt time.Time                `json:"computed_at"`
}

// PanelSubmission is the result of recording a vote, including any thesis
// transition the resulting outcome triggered.
type PanelSubmission struct {
	Action   *PanelAction         `json:"action"`
	Outcome  *PanelOutcomeSummary `json:"outcome"`
	Thesis   *Thesis              `json:"thesis,omitempty"`
	Schedule *DefenseSchedule     `json:"schedule,omitempty"`
}
