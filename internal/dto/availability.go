package dto

// AvailabilityWindow declares a weekly free window. day_of_week uses 0 for Sunday.
type AvailabilityWindow struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ReplaceAvailabilityRequest replaces a user's declared windows.
type ReplaceAvailabilityRequest struct {
	Windows []AvailabilityWindow `json:"windows" validate:"dive"`
}
