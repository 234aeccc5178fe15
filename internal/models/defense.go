package models

import (
	"time"

	"github.com/lib/pq"
)

// ScheduleStatus captures the lifecycle of a defense session.
type ScheduleStatus string

const (
	ScheduleStatusPending     ScheduleStatus = "pending"
	ScheduleStatusScheduled   ScheduleStatus = "scheduled"
	ScheduleStatusInProgress  ScheduleStatus = "in_progress"
	ScheduleStatusCompleted   ScheduleStatus = "completed"
	ScheduleStatusCancelled   ScheduleStatus = "cancelled"
	ScheduleStatusRescheduled ScheduleStatus = "rescheduled"
)

// ActiveScheduleStatuses are the statuses that occupy participants' time.
var ActiveScheduleStatuses = []ScheduleStatus{ScheduleStatusScheduled, ScheduleStatusInProgress}

// Active reports whether the schedule blocks its participants.
func (s ScheduleStatus) Active() bool {
	return s == ScheduleStatusScheduled || s == ScheduleStatusInProgress
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the range is non-empty and ordered.
func (r TimeRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.Before(r.End)
}

// Overlaps applies the half-open interval test.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return other.Start.Before(r.End) && other.End.After(r.Start)
}

// Duration returns the length of the window.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// DefenseSchedule is an oral examination session tied to one lifecycle stage.
type DefenseSchedule struct {
	ID              string         `db:"id" json:"id"`
	ThesisID        string         `db:"thesis_id" json:"thesis_id"`
	Stage           DefenseStage   `db:"stage" json:"stage"`
	Start           time.Time      `db:"start_at" json:"start"`
	End             time.Time      `db:"end_at" json:"end"`
	Location        string         `db:"location" json:"location"`
	Status          ScheduleStatus `db:"status" json:"status"`
	OrganizerID     string         `db:"organizer_id" json:"organizer_id"`
	AdviserID       string         `db:"adviser_id" json:"adviser_id"`
	PanelMemberIDs  pq.StringArray `db:"panel_member_ids" json:"panel_member_ids"`
	CancelReason    *string        `db:"cancel_reason" json:"cancel_reason,omitempty"`
	RescheduledFrom *string        `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Window returns the schedule's time range.
func (s DefenseSchedule) Window() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

// Participants returns the adviser followed by the panel members, de-duplicated.
func (s DefenseSchedule) Participants() []string {
	seen := make(map[string]struct{}, len(s.PanelMemberIDs)+1)
	out := make([]string, 0, len(s.PanelMemberIDs)+1)
	for _, id := range append([]string{s.AdviserID}, s.PanelMemberIDs...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// HasPanelMember reports whether the user is on the schedule's panel.
func (s DefenseSchedule) HasPanelMember(userID string) bool {
	for _, id := range s.PanelMemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Involves reports whether the user is the adviser or a panel member.
func (s DefenseSchedule) Involves(userID string) bool {
	return s.AdviserID == userID || s.HasPanelMember(userID)
}

// DefenseScheduleFilter constrains listing queries.
type DefenseScheduleFilter struct {
	ThesisID      string
	ParticipantID string
	Statuses      []ScheduleStatus
	From          *time.Time
	To            *time.Time
	Limit         int
}
