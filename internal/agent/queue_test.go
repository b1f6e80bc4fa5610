package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/server/internal/models"
)

func testOperation(eventID, kind string) *models.PendingOperation {
	accuracy := 12.0
	return &models.PendingOperation{
		EventID:        eventID,
		OperationKind:  kind,
		JobSiteID:      "site-1",
		Lat:            37.7793,
		Lng:            -122.4193,
		AccuracyMeters: &accuracy,
		OwnerWorkerID:  "device-1",
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
		Status:         models.OpStatusPending,
	}
}

func openTestQueue(t *testing.T) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := OpenQueue(path)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, path
}

func TestQueue_EnqueueDedup(t *testing.T) {
	q, _ := openTestQueue(t)
	ctx := context.Background()

	op := testOperation("1718451000000-aaa", models.OpClockIn)

	inserted, err := q.Enqueue(ctx, op)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same event id again is a no-op
	inserted, err = q.Enqueue(ctx, op)
	require.NoError(t, err)
	assert.False(t, inserted)

	ops, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestQueue_EnqueueValidation(t *testing.T) {
	q, _ := openTestQueue(t)
	ctx := context.Background()

	t.Run("clock-in without site", func(t *testing.T) {
		op := testOperation("1718451000000-bbb", models.OpClockIn)
		op.JobSiteID = ""
		_, err := q.Enqueue(ctx, op)
		assert.ErrorIs(t, err, models.ErrMissingJobSite)
	})

	t.Run("unknown operation kind", func(t *testing.T) {
		op := testOperation("1718451000000-ccc", "teleport")
		_, err := q.Enqueue(ctx, op)
		assert.ErrorIs(t, err, models.ErrUnknownOperation)
	})

	t.Run("missing event id", func(t *testing.T) {
		op := testOperation("", models.OpClockOut)
		_, err := q.Enqueue(ctx, op)
		assert.ErrorIs(t, err, models.ErrMissingEventID)
	})
}

func TestQueue_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	q, err := OpenQueue(path)
	require.NoError(t, err)

	op := testOperation("1718451000000-ddd", models.OpClockIn)
	_, err = q.Enqueue(ctx, op)
	require.NoError(t, err)
	require.NoError(t, q.Close())

	// Reopen simulates a process restart
	q2, err := OpenQueue(path)
	require.NoError(t, err)
	defer q2.Close()

	got, err := q2.Get(ctx, op.EventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, op.EventID, got.EventID)
	assert.Equal(t, op.OperationKind, got.OperationKind)
	assert.Equal(t, op.JobSiteID, got.JobSiteID)
	require.NotNil(t, got.AccuracyMeters)
	assert.Equal(t, *op.AccuracyMeters, *got.AccuracyMeters)
	assert.Equal(t, models.OpStatusPending, got.Status)
}

func TestQueue_ListReady(t *testing.T) {
	q, _ := openTestQueue(t)
	ctx := context.Background()
	now := time.Now().UTC()

	older := testOperation("1718451000000-eee", models.OpClockIn)
	older.CreatedAt = now.Add(-2 * time.Hour)
	newer := testOperation("1718451000001-fff", models.OpClockOut)
	newer.CreatedAt = now.Add(-1 * time.Hour)

	_, err := q.Enqueue(ctx, newer)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, older)
	require.NoError(t, err)

	t.Run("oldest first", func(t *testing.T) {
		ready, err := q.ListReady(ctx, now)
		require.NoError(t, err)
		require.Len(t, ready, 2)
		assert.Equal(t, older.EventID, ready[0].EventID)
		assert.Equal(t, newer.EventID, ready[1].EventID)
	})

	t.Run("failed operation waits out its backoff", func(t *testing.T) {
		require.NoError(t, q.RecordFailure(ctx, older.EventID, "connection refused", now))

		ready, err := q.ListReady(ctx, now)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.Equal(t, newer.EventID, ready[0].EventID)

		ready, err = q.ListReady(ctx, now.Add(BaseRetryDelay))
		require.NoError(t, err)
		assert.Len(t, ready, 2)
	})

	t.Run("needs_attention is skipped", func(t *testing.T) {
		require.NoError(t, q.MarkNeedsAttention(ctx, newer.EventID, "geofence-violation"))

		ready, err := q.ListReady(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.Equal(t, older.EventID, ready[0].EventID)
	})
}

func TestQueue_RecordSuccess(t *testing.T) {
	q, _ := openTestQueue(t)
	ctx := context.Background()

	op := testOperation("1718451000000-ggg", models.OpClockIn)
	_, err := q.Enqueue(ctx, op)
	require.NoError(t, err)

	require.NoError(t, q.RecordSuccess(ctx, op.EventID))

	got, err := q.Get(ctx, op.EventID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_Cancel(t *testing.T) {
	q, _ := openTestQueue(t)
	ctx := context.Background()

	op := testOperation("1718451000000-hhh", models.OpClockIn)
	_, err := q.Enqueue(ctx, op)
	require.NoError(t, err)

	removed, err := q.Cancel(ctx, op.EventID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.Cancel(ctx, op.EventID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestQueue_Count(t *testing.T) {
	q, _ := openTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"1718451000000-i1", "1718451000000-i2", "1718451000000-i3"} {
		_, err := q.Enqueue(ctx, testOperation(id, models.OpClockOut))
		require.NoError(t, err)
	}
	require.NoError(t, q.MarkNeedsAttention(ctx, "1718451000000-i3", "rejected"))

	pending, needsAttention, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, needsAttention)
}
