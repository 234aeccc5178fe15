package models

import "time"

// EventType names a domain event emitted to external collaborators.
type EventType string

const (
	EventScheduleCreated     EventType = "schedule_created"
	EventScheduleUpdated     EventType = "schedule_updated"
	EventScheduleCancelled   EventType = "schedule_cancelled"
	EventThesisStatusChanged EventType = "thesis_status_changed"
	EventPanelActionRecorded EventType = "panel_action_recorded"
)

// DomainEvent is the envelope delivered to event sinks.
type DomainEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id,omitempty"`
	Payload    any       `json:"payload"`
}

// ScheduleCreatedPayload is carried by schedule_created.
type ScheduleCreatedPayload struct {
	ScheduleID   string    `json:"schedule_id"`
	ThesisID     string    `json:"thesis_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Participants []string  `json:"participants"`
}

// ScheduleUpdatedPayload is carried by schedule_updated.
type ScheduleUpdatedPayload struct {
	ScheduleID    string    `json:"schedule_id"`
	ThesisID      string    `json:"thesis_id"`
	PreviousStart time.Time `json:"previous_start"`
	NewStart      time.Time `json:"new_start"`
}

// ScheduleCancelledPayload is carried by schedule_cancelled.
type ScheduleCancelledPayload struct {
	ScheduleID string `json:"schedule_id"`
	ThesisID   string `json:"thesis_id"`
	Reason     string `json:"reason"`
}

// ThesisStatusChangedPayload is carried by thesis_status_changed.
type ThesisStatusChangedPayload struct {
	ThesisID       string       `json:"thesis_id"`
	PreviousStatus ThesisStatus `json:"previous_status"`
	NewStatus      ThesisStatus `json:"new_status"`
}

// PanelActionRecordedPayload is carried by panel_action_recorded.
type PanelActionRecordedPayload struct {
	ScheduleID    string        `json:"schedule_id"`
	PanelMemberID string        `json:"panel_member_id"`
	Decision      PanelDecision `json:"decision"`
}
