package services

import (
	"time"

	"github.com/fieldclock/server/internal/models"
)

// DefaultReplayTTL bounds how old an event identifier may be before it is
// rejected as a replay.
const DefaultReplayTTL = 24 * time.Hour

// ReplayGuard admits or rejects events by the age embedded in their event
// identifier. It is pure and synchronous; it must run before any state
// mutation so a stale request never pollutes the idempotency ledger.
type ReplayGuard struct {
	eventIDs *EventIDService
	ttl      time.Duration
}

// NewReplayGuard creates a ReplayGuard with the given TTL. A zero ttl falls
// back to DefaultReplayTTL.
func NewReplayGuard(eventIDs *EventIDService, ttl time.Duration) *ReplayGuard {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &ReplayGuard{eventIDs: eventIDs, ttl: ttl}
}

// TTL returns the configured replay window
func (g *ReplayGuard) TTL() time.Duration {
	return g.ttl
}

// Check validates the event identifier's freshness against now. The
// operation name is included in rejection details for diagnostics.
// Future-skew tolerance is zero: any identifier minted after now is
// rejected.
func (g *ReplayGuard) Check(eventID, operation string, now time.Time) error {
	age, err := g.eventIDs.Age(eventID, now)
	if err != nil {
		return err
	}
	if age < 0 {
		return models.NewRejection(models.ReasonEventFuture,
			"%s event %s is timestamped %s after server time", operation, eventID, -age)
	}
	if age >= g.ttl {
		return models.NewRejection(models.ReasonEventExpired,
			"%s event %s is %.1f hours old (ttl %.0f hours)",
			operation, eventID, age.Hours(), g.ttl.Hours())
	}
	return nil
}
