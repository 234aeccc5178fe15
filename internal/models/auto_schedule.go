package models

import (
	"time"

	"github.com/lib/pq"
)

// AutoScheduleStatus is the terminal state of an auto-schedule run.
type AutoScheduleStatus string

const (
	AutoScheduleRunning   AutoScheduleStatus = "running"
	AutoScheduleCompleted AutoScheduleStatus = "completed"
	AutoScheduleFailed    AutoScheduleStatus = "failed"
)

// AutoScheduleReasonNoSlots is recorded when the whole horizon is booked.
const AutoScheduleReasonNoSlots = "no available time slots found"

// AutoScheduleRun records one execution of the free-slot search.
type AutoScheduleRun struct {
	ID              string             `db:"id" json:"id"`
	ThesisID        string             `db:"thesis_id" json:"thesis_id"`
	Status          AutoScheduleStatus `db:"status" json:"status"`
	Reason          *string            `db:"reason" json:"reason,omitempty"`
	ScheduleID      *string            `db:"schedule_id" json:"schedule_id,omitempty"`
	RequestedBy     string             `db:"requested_by" json:"requested_by"`
	PreferredDate   *time.Time         `db:"preferred_date" json:"preferred_date,omitempty"`
	DurationMinutes int                `db:"duration_minutes" json:"duration_minutes"`
	AttemptedDates  pq.StringArray     `db:"attempted_dates" json:"attempted_dates"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	CompletedAt     *time.Time         `db:"completed_at" json:"completed_at,omitempty"`

	Schedule *DefenseSchedule `db:"-" json:"schedule,omitempty"`
}
