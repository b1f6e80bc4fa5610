package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/server/internal/models"
)

func TestReplayGuard_Check(t *testing.T) {
	eventIDs := NewEventIDService()
	guard := NewReplayGuard(eventIDs, 24*time.Hour)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("accepts fresh event", func(t *testing.T) {
		id := eventIDs.MintAt(now.Add(-time.Minute))
		assert.NoError(t, guard.Check(id, models.OpClockIn, now))
	})

	t.Run("accepts event one millisecond inside the window", func(t *testing.T) {
		id := eventIDs.MintAt(now.Add(-24*time.Hour + time.Millisecond))
		assert.NoError(t, guard.Check(id, models.OpClockIn, now))
	})

	t.Run("rejects event exactly at the window boundary", func(t *testing.T) {
		id := eventIDs.MintAt(now.Add(-24 * time.Hour))
		err := guard.Check(id, models.OpClockIn, now)
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonEventExpired, rej.Reason)
	})

	t.Run("rejects stale event", func(t *testing.T) {
		id := eventIDs.MintAt(now.Add(-25 * time.Hour))
		err := guard.Check(id, models.OpClockOut, now)
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonEventExpired, rej.Reason)
	})

	t.Run("rejects event minted in the future with zero tolerance", func(t *testing.T) {
		id := eventIDs.MintAt(now.Add(time.Millisecond))
		err := guard.Check(id, models.OpClockIn, now)
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonEventFuture, rej.Reason)
	})

	t.Run("rejects malformed event id", func(t *testing.T) {
		err := guard.Check("not-an-event-id", models.OpClockIn, now)
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonInvalidEventID, rej.Reason)
	})
}

func TestNewReplayGuard_DefaultTTL(t *testing.T) {
	guard := NewReplayGuard(NewEventIDService(), 0)
	assert.Equal(t, DefaultReplayTTL, guard.TTL())
}
