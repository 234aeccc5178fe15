package service

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

type scheduleOverlapReader interface {
	FindOverlapping(ctx context.Context, exec sqlx.ExtContext, participants []string, window models.TimeRange, excludeID string) ([]models.DefenseSchedule, error)
}

type availabilityReader interface {
	ListByUsers(ctx context.Context, exec sqlx.ExtContext, userIDs []string) ([]models.Availability, error)
}

// ConflictDetector reports which participants cannot attend a window.
type ConflictDetector struct {
	schedules    scheduleOverlapReader
	availability availabilityReader
	location     *time.Location
	logger       *zap.Logger
}

// NewConflictDetector constructs a detector evaluating weekdays in loc.
func NewConflictDetector(schedules scheduleOverlapReader, availability availabilityReader, loc *time.Location, logger *zap.Logger) *ConflictDetector {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{schedules: schedules, availability: availability, location: loc, logger: logger}
}

// CheckAvailability returns the sorted set of participants with an overlapping active
// schedule or whose declared availability does not contain the window. exec may be a
// transaction so the read sees the caller's locks.
func (d *ConflictDetector) CheckAvailability(ctx context.Context, exec sqlx.ExtContext, participants []string, window models.TimeRange, excludeID string) ([]string, error) {
	calendar, err := d.load(ctx, exec, participants, window, excludeID)
	if err != nil {
		return nil, err
	}
	return calendar.conflicts(window), nil
}

// FilterFree returns the candidates, in order, during which every participant is free.
// Commitments are fetched once for the span covering all candidates.
func (d *ConflictDetector) FilterFree(ctx context.Context, exec sqlx.ExtContext, participants []string, candidates []models.TimeRange) ([]models.TimeRange, error) {
	free := make([]models.TimeRange, 0, len(candidates))
	if len(candidates) == 0 {
		return free, nil
	}
	span := candidates[0]
	for _, c := range candidates[1:] {
		if c.Start.Before(span.Start) {
			span.Start = c.Start
		}
		if c.End.After(span.End) {
			span.End = c.End
		}
	}
	calendar, err := d.load(ctx, exec, participants, span, "")
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if len(calendar.conflicts(c)) == 0 {
			free = append(free, c)
		}
	}
	return free, nil
}

// load fetches commitments and availability for participants across span.
func (d *ConflictDetector) load(ctx context.Context, exec sqlx.ExtContext, participants []string, span models.TimeRange, excludeID string) (*participantCalendar, error) {
	ids := uniqueSorted(participants)
	calendar := &participantCalendar{
		participants: ids,
		busy:         make(map[string][]models.TimeRange, len(ids)),
		windows:      make(map[string][]availabilityWindow, len(ids)),
		location:     d.location,
	}
	if len(ids) == 0 {
		return calendar, nil
	}

	overlapping, err := d.schedules.FindOverlapping(ctx, exec, ids, span, excludeID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, schedule := range overlapping {
		if schedule.ID == excludeID || !schedule.Status.Active() {
			continue
		}
		for _, id := range schedule.Participants() {
			if _, ok := wanted[id]; ok {
				calendar.busy[id] = append(calendar.busy[id], schedule.Window())
			}
		}
	}

	declared, err := d.availability.ListByUsers(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range declared {
		start, end, parseErr := a.Minutes()
		if parseErr != nil {
			d.logger.Warn("skipping malformed availability", zap.String("availability_id", a.ID), zap.Error(parseErr))
			continue
		}
		calendar.declared(a.UserID)
		calendar.windows[a.UserID] = append(calendar.windows[a.UserID], availabilityWindow{
			day:   time.Weekday(a.DayOfWeek),
			start: time.Duration(start) * time.Minute,
			end:   time.Duration(end) * time.Minute,
		})
	}
	return calendar, nil
}

type availabilityWindow struct {
	day   time.Weekday
	start time.Duration
	end   time.Duration
}

// participantCalendar is an in-memory view used to evaluate many windows against one fetch.
type participantCalendar struct {
	participants []string
	busy         map[string][]models.TimeRange
	windows      map[string][]availabilityWindow
	hasDeclared  map[string]bool
	location     *time.Location
}

func (c *participantCalendar) declared(userID string) {
	if c.hasDeclared == nil {
		c.hasDeclared = make(map[string]bool)
	}
	c.hasDeclared[userID] = true
}

// conflicts evaluates the window; the result inherits the sorted participant order.
func (c *participantCalendar) conflicts(window models.TimeRange) []string {
	var out []string
	for _, id := range c.participants {
		if c.isBusy(id, window) || !c.isAvailable(id, window) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (c *participantCalendar) isBusy(id string, window models.TimeRange) bool {
	for _, taken := range c.busy[id] {
		if taken.Overlaps(window) {
			return true
		}
	}
	return false
}

// isAvailable treats a participant without declared windows as available.
func (c *participantCalendar) isAvailable(id string, window models.TimeRange) bool {
	if !c.hasDeclared[id] {
		return true
	}
	local := window.Start.In(c.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)
	offset := local.Sub(midnight)
	end := offset + window.Duration()
	for _, w := range c.windows[id] {
		if w.day == local.Weekday() && w.start <= offset && end <= w.end {
			return true
		}
	}
	return false
}
