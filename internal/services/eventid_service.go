package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/fieldclock/server/internal/models"
)

// EventIDService mints and parses time-embedded event identifiers. The
// identifier is "<unixMillis>-<uuid>": the prefix doubles as a freshness
// oracle for the replay guard, so a client cannot spoof a separate
// created-at field independently of the uniqueness token.
type EventIDService struct{}

// NewEventIDService creates a new EventIDService
func NewEventIDService() *EventIDService {
	return &EventIDService{}
}

// Mint produces a new event identifier stamped with the current time
func (s *EventIDService) Mint() string {
	return s.MintAt(time.Now())
}

// MintAt produces an event identifier stamped with the given time
func (s *EventIDService) MintAt(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + uuid.New().String()
}

// Parse extracts the minted timestamp from an event identifier. The prefix
// before the first '-' must be a 13-digit decimal millisecond timestamp;
// anything else (plain UUIDs, empty strings, non-numeric prefixes) is
// rejected with ReasonInvalidEventID.
func (s *EventIDService) Parse(eventID string) (time.Time, error) {
	prefix, rest, found := strings.Cut(eventID, "-")
	if !found || rest == "" {
		return time.Time{}, models.NewRejection(models.ReasonInvalidEventID,
			"event id %q has no timestamp prefix", eventID)
	}
	if len(prefix) != 13 {
		return time.Time{}, models.NewRejection(models.ReasonInvalidEventID,
			"event id %q timestamp prefix is not 13 digits", eventID)
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return time.Time{}, models.NewRejection(models.ReasonInvalidEventID,
				"event id %q timestamp prefix is not numeric", eventID)
		}
	}
	millis, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return time.Time{}, models.NewRejection(models.ReasonInvalidEventID,
			"event id %q timestamp prefix is not numeric", eventID)
	}
	return time.UnixMilli(millis).UTC(), nil
}

// Age returns how old the identifier's embedded timestamp is relative to
// now. Negative values mean the identifier was minted in the future.
func (s *EventIDService) Age(eventID string, now time.Time) (time.Duration, error) {
	minted, err := s.Parse(eventID)
	if err != nil {
		return 0, err
	}
	return now.Sub(minted), nil
}
