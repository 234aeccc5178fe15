package dto

import "time"

// CreateDefenseRequest books a defense session for an explicit window.
type CreateDefenseRequest struct {
	ThesisID       string    `json:"thesis_id" validate:"required"`
	Stage          string    `json:"stage" validate:"required,oneof=concept proposal final"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Location       string    `json:"location" validate:"max=255"`
	AdviserID      string    `json:"adviser_id" validate:"required"`
	PanelMemberIDs []string  `json:"panel_member_ids" validate:"required,min=1,dive,required"`
	OrganizerID    string    `json:"-"`
}

// AutoScheduleRequest asks the scheduler to pick the earliest free slot.
type AutoScheduleRequest struct {
	ThesisID        string   `json:"thesis_id" validate:"required"`
	Stage           string   `json:"stage" validate:"required,oneof=concept proposal final"`
	AdviserID       string   `json:"adviser_id" validate:"required"`
	PanelMemberIDs  []string `json:"panel_member_ids" validate:"required,min=1,dive,required"`
	Location        string   `json:"location" validate:"max=255"`
	PreferredDate   string   `json:"preferred_date" validate:"omitempty,datetime=2006-01-02"`
	DurationMinutes int      `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	OrganizerID     string   `json:"-"`
}

// RescheduleDefenseRequest moves a defense to a new window.
type RescheduleDefenseRequest struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location *string   `json:"location" validate:"omitempty,max=255"`
}

// CancelDefenseRequest carries the cancellation reason.
type CancelDefenseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// FreeSlotsRequest queries fully free windows on a date.
type FreeSlotsRequest struct {
	Participants    []string `json:"participants" validate:"required,min=1,dive,required"`
	Date            string   `json:"date" validate:"required,datetime=2006-01-02"`
	DurationMinutes int      `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
}

// ListDefensesQuery filters defense listings and exports.
type ListDefensesQuery struct {
	ThesisID      string `form:"thesis_id"`
	ParticipantID string `form:"participant_id"`
	Status        string `form:"status" validate:"omitempty,oneof=pending scheduled in_progress completed cancelled rescheduled"`
	From          string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To            string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Format        string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}
