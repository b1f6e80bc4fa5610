package models

import (
	"time"

	"github.com/google/uuid"
)

// Time entry status values
const (
	EntryStatusOpen   = "open"
	EntryStatusClosed = "closed"
)

// TimeEntry is the authoritative record of a worked interval. It is created
// by an admitted clock-in and closed by an admitted clock-out.
type TimeEntry struct {
	ID        string  `json:"id"`
	WorkerID  string  `json:"workerId"`
	JobSiteID string  `json:"jobSiteId"`
	Status    string  `json:"status"`

	ClockInAt       time.Time `json:"clockInAt"`
	ClockInEventID  string    `json:"clockInEventId"`
	ClockInLat      float64   `json:"clockInLat"`
	ClockInLng      float64   `json:"clockInLng"`
	ClockInAccuracy *float64  `json:"clockInAccuracy,omitempty"`

	ClockOutAt       *time.Time `json:"clockOutAt,omitempty"`
	ClockOutEventID  *string    `json:"clockOutEventId,omitempty"`
	ClockOutLat      *float64   `json:"clockOutLat,omitempty"`
	ClockOutLng      *float64   `json:"clockOutLng,omitempty"`
	ClockOutAccuracy *float64   `json:"clockOutAccuracy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTimeEntry opens a time entry from an admitted clock-in event
func NewTimeEntry(workerID, jobSiteID, eventID string, at time.Time, lat, lng float64, accuracy *float64) *TimeEntry {
	now := time.Now().UTC()
	return &TimeEntry{
		ID:              uuid.New().String(),
		WorkerID:        workerID,
		JobSiteID:       jobSiteID,
		Status:          EntryStatusOpen,
		ClockInAt:       at,
		ClockInEventID:  eventID,
		ClockInLat:      lat,
		ClockInLng:      lng,
		ClockInAccuracy: accuracy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Close records the clock-out side of the entry. Returns false if the entry
// is already closed.
func (e *TimeEntry) Close(eventID string, at time.Time, lat, lng float64, accuracy *float64) bool {
	if e.Status != EntryStatusOpen {
		return false
	}
	e.Status = EntryStatusClosed
	e.ClockOutAt = &at
	e.ClockOutEventID = &eventID
	e.ClockOutLat = &lat
	e.ClockOutLng = &lng
	e.ClockOutAccuracy = accuracy
	e.UpdatedAt = time.Now().UTC()
	return true
}

// Duration returns the worked duration, or zero if the entry is still open
func (e *TimeEntry) Duration() time.Duration {
	if e.ClockOutAt == nil {
		return 0
	}
	return e.ClockOutAt.Sub(e.ClockInAt)
}
