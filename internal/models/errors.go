package models

import (
	"fmt"
	"strings"
)

// InvalidTransitionError describes an attempted edge missing from the lifecycle graph.
type InvalidTransitionError struct {
	From    ThesisStatus `json:"from"`
	To      ThesisStatus `json:"to,omitempty"`
	Trigger string       `json:"trigger"`
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.To == "" {
		return fmt.Sprintf("%s is not allowed from %s", e.Trigger, e.From)
	}
	return fmt.Sprintf("cannot transition from %s to %s via %s", e.From, e.To, e.Trigger)
}

// ParticipantConflictError lists participants unavailable for a requested window.
type ParticipantConflictError struct {
	Participants []string `json:"conflicting_participants"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
}

// Error implements the error interface.
func (e *ParticipantConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("participants unavailable: %s", strings.Join(e.Participants, ", "))
}
