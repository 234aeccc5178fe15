package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
	"github.com/noah-isme/thesis-defense-api/pkg/export"
)

// ExportFormat names a tabular docket format.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

var exportContentTypes = map[ExportFormat]string{
	ExportFormatCSV:  "text/csv",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type scheduleLister interface {
	List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseSchedule, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type calendarRenderer interface {
	Render(name string, events []export.CalendarEvent) ([]byte, error)
}

// ExportResult is a rendered file ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders defense dockets and participant calendars.
type ExportService struct {
	schedules scheduleLister
	renderers map[ExportFormat]datasetRenderer
	calendar  calendarRenderer
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the default renderers.
func NewExportService(schedules scheduleLister, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{
		schedules: schedules,
		renderers: map[ExportFormat]datasetRenderer{
			ExportFormatCSV:  export.NewCSVExporter(),
			ExportFormatPDF:  export.NewPDFExporter(),
			ExportFormatXLSX: export.NewXLSXExporter(),
		},
		calendar: export.NewICSExporter(""),
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Docket renders the schedules matching filter in the requested format.
func (s *ExportService) Docket(ctx context.Context, filter models.DefenseScheduleFilter, format ExportFormat) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}
	schedules, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load defense schedules")
	}

	payload, err := renderer.Render(s.docketDataset(schedules))
	if err != nil {
		return nil, fmt.Errorf("render %s docket: %w", format, err)
	}
	s.logger.Debug("docket rendered", zap.String("format", string(format)), zap.Int("rows", len(schedules)))
	return &ExportResult{
		Filename:    fmt.Sprintf("defense_docket_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: exportContentTypes[format],
		Payload:     payload,
	}, nil
}

func (s *ExportService) docketDataset(schedules []models.DefenseSchedule) export.Dataset {
	data := export.Dataset{
		Title: "Defense Docket",
		Columns: []export.Column{
			{Key: "date", Label: "Date", Width: 25},
			{Key: "time", Label: "Time", Width: 25},
			{Key: "stage", Label: "Stage", Width: 22},
			{Key: "thesis", Label: "Thesis", Width: 40},
			{Key: "location", Label: "Location", Width: 35},
			{Key: "adviser", Label: "Adviser", Width: 35},
			{Key: "panel", Label: "Panel"},
			{Key: "status", Label: "Status", Width: 25},
		},
	}
	for _, schedule := range schedules {
		start := schedule.Start.In(s.location)
		end := schedule.End.In(s.location)
		data.Rows = append(data.Rows, map[string]string{
			"date":     start.Format("2006-01-02"),
			"time":     fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04")),
			"stage":    string(schedule.Stage),
			"thesis":   schedule.ThesisID,
			"location": schedule.Location,
			"adviser":  schedule.AdviserID,
			"panel":    strings.Join(schedule.PanelMemberIDs, ", "),
			"status":   string(schedule.Status),
		})
	}
	return data
}

// ParticipantCalendar renders an iCalendar feed of a participant's defenses.
// Cancelled sessions are included with a cancelled status so subscribed clients drop them.
func (s *ExportService) ParticipantCalendar(ctx context.Context, participantID string, from, to *time.Time) (*ExportResult, error) {
	schedules, err := s.schedules.List(ctx, models.DefenseScheduleFilter{ParticipantID: participantID, From: from, To: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load defense schedules")
	}
	events := make([]export.CalendarEvent, 0, len(schedules))
	for _, schedule := range schedules {
		if schedule.Status == models.ScheduleStatusRescheduled {
			continue
		}
		events = append(events, export.CalendarEvent{
			UID:         schedule.ID + "@thesis-defense",
			Summary:     stageTitle(schedule.Stage) + " defense",
			Description: fmt.Sprintf("Thesis %s", schedule.ThesisID),
			Location:    schedule.Location,
			Start:       schedule.Start,
			End:         schedule.End,
			Cancelled:   schedule.Status == models.ScheduleStatusCancelled,
			Attendees:   schedule.Participants(),
		})
	}

	payload, err := s.calendar.Render(fmt.Sprintf("Defenses for %s", participantID), events)
	if err != nil {
		return nil, fmt.Errorf("render calendar: %w", err)
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("defenses_%s.ics", participantID),
		ContentType: "text/calendar",
		Payload:     payload,
	}, nil
}

func stageTitle(stage models.DefenseStage) string {
	if stage == "" {
		return "Thesis"
	}
	raw := string(stage)
	return strings.ToUpper(raw[:1]) + raw[1:]
}
