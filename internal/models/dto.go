package models

import "time"

// ClockRequest is the remote submission body for a clock event
type ClockRequest struct {
	OperationKind   string   `json:"operationKind"`
	JobSiteID       string   `json:"jobSiteId,omitempty"`
	Lat             float64  `json:"lat"`
	Lng             float64  `json:"lng"`
	AccuracyMeters  *float64 `json:"accuracyMeters,omitempty"`
	EventID         string   `json:"eventId"`
	ClientTimestamp int64    `json:"clientTimestamp"`
	PIN             string   `json:"pin,omitempty"`
}

// ClockResponse is the admission result for a clock event. Duplicate
// submissions of the same event ID receive the originally stored response.
type ClockResponse struct {
	OK      bool   `json:"ok"`
	EntryID string `json:"entryId,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// TimeEntryResponse is a single time entry in API responses
type TimeEntryResponse struct {
	ID          string     `json:"id"`
	JobSiteID   string     `json:"jobSiteId"`
	Status      string     `json:"status"`
	ClockInAt   time.Time  `json:"clockInAt"`
	ClockOutAt  *time.Time `json:"clockOutAt,omitempty"`
	DurationSec int64      `json:"durationSec"`
}

// TimeEntryListResponse is returned when listing time entries
type TimeEntryListResponse struct {
	Entries    []TimeEntryResponse `json:"entries"`
	TotalCount int                 `json:"totalCount"`
	Skip       int                 `json:"skip"`
	Take       int                 `json:"take"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// EntryToResponse converts a TimeEntry to TimeEntryResponse
func EntryToResponse(e *TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:          e.ID,
		JobSiteID:   e.JobSiteID,
		Status:      e.Status,
		ClockInAt:   e.ClockInAt,
		ClockOutAt:  e.ClockOutAt,
		DurationSec: int64(e.Duration().Seconds()),
	}
}
