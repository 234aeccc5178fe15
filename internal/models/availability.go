package models

import (
	"fmt"
	"time"
)

// Availability is a declared weekly free window for a user.
// DayOfWeek follows time.Weekday (0 = Sunday).
type Availability struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Minutes returns the window bounds as minutes since midnight.
func (a Availability) Minutes() (int, int, error) {
	start, err := ParseClock(a.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClock(a.EndTime)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("availability end %s must be after start %s", a.EndTime, a.StartTime)
	}
	return start, end, nil
}

// ParseClock converts "HH:MM" into minutes since midnight. "24:00" is accepted as end of day.
func ParseClock(raw string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	if h == 24 && m == 0 {
		return 24 * 60, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	return h*60 + m, nil
}
