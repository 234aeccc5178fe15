package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is a single entry in an iCalendar feed.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Cancelled   bool
	Attendees   []string
}

// ICSExporter renders events as an RFC 5545 calendar.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an iCalendar exporter.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//thesis-defense-api//EN"
	}
	return &ICSExporter{productID: productID}
}

// Render serialises the events into a VCALENDAR document.
func (e *ICSExporter) Render(name string, events []CalendarEvent) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := time.Now().UTC()
	for _, item := range events {
		if item.UID == "" {
			return nil, fmt.Errorf("calendar event requires uid")
		}
		event := cal.AddEvent(item.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(item.Start.UTC())
		event.SetEndAt(item.End.UTC())
		event.SetSummary(item.Summary)
		if item.Description != "" {
			event.SetDescription(item.Description)
		}
		if item.Location != "" {
			event.SetLocation(item.Location)
		}
		if item.Cancelled {
			event.SetStatus(ics.ObjectStatusCancelled)
		} else {
			event.SetStatus(ics.ObjectStatusConfirmed)
		}
		for _, attendee := range item.Attendees {
			event.AddAttendee(attendee)
		}
	}
	return []byte(cal.Serialize()), nil
}
