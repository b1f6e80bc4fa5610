package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/repository"
)

type admissionFixture struct {
	admission  *AdmissionService
	commitRepo *repository.CommitRecordRepository
	entryRepo  *repository.TimeEntryRepository
	worker     *models.Worker
	site       *models.JobSite
	eventIDs   *EventIDService
	now        time.Time
}

func newAdmissionFixture(t *testing.T) *admissionFixture {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "fieldclock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	worker, err := models.NewWorker("ana@example.com", "Ana Reyes", false)
	require.NoError(t, err)
	workerRepo := repository.NewWorkerRepository(db)
	require.NoError(t, workerRepo.Add(ctx, worker))

	site, err := models.NewJobSite("Mission St Build", "200 Mission St", 37.7793, -122.4193, 75)
	require.NoError(t, err)
	siteRepo := repository.NewJobSiteRepository(db)
	require.NoError(t, siteRepo.Add(ctx, site))
	require.NoError(t, siteRepo.Assign(ctx, worker.ID, site.ID))

	eventIDs := NewEventIDService()
	commitRepo := repository.NewCommitRecordRepository(db)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	admission := NewAdmissionService(
		eventIDs,
		NewReplayGuard(eventIDs, 24*time.Hour),
		NewGeofenceService(),
		NewAuthorizationService(siteRepo),
		siteRepo,
		commitRepo,
	)
	admission.now = func() time.Time { return now }

	return &admissionFixture{
		admission:  admission,
		commitRepo: commitRepo,
		entryRepo:  repository.NewTimeEntryRepository(db),
		worker:     worker,
		site:       site,
		eventIDs:   eventIDs,
		now:        now,
	}
}

func (f *admissionFixture) clockInRequest(eventID string) *models.ClockRequest {
	return &models.ClockRequest{
		OperationKind:  models.OpClockIn,
		JobSiteID:      f.site.ID,
		Lat:            37.7793,
		Lng:            -122.4193,
		AccuracyMeters: floatPtr(10),
		EventID:        eventID,
	}
}

func (f *admissionFixture) clockOutRequest(eventID string) *models.ClockRequest {
	return &models.ClockRequest{
		OperationKind:  models.OpClockOut,
		Lat:            37.7795,
		Lng:            -122.4190,
		AccuracyMeters: floatPtr(12),
		EventID:        eventID,
	}
}

func TestAdmissionService_ClockInAndOut(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	inID := f.eventIDs.MintAt(f.now.Add(-10 * time.Minute))
	resp, replayed, err := f.admission.Admit(ctx, f.worker, f.clockInRequest(inID))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, resp.OK)
	require.NotEmpty(t, resp.EntryID)

	entry, err := f.entryRepo.GetByID(ctx, resp.EntryID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.EntryStatusOpen, entry.Status)
	assert.Equal(t, f.now.Add(-10*time.Minute).UnixMilli(), entry.ClockInAt.UnixMilli())

	outID := f.eventIDs.MintAt(f.now.Add(-2 * time.Minute))
	outResp, replayed, err := f.admission.Admit(ctx, f.worker, f.clockOutRequest(outID))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, resp.EntryID, outResp.EntryID)

	entry, err = f.entryRepo.GetByID(ctx, resp.EntryID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusClosed, entry.Status)
	require.NotNil(t, entry.ClockOutAt)
	assert.Equal(t, 8*time.Minute, entry.Duration())
}

func TestAdmissionService_DuplicateSubmissions(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	eventID := f.eventIDs.MintAt(f.now.Add(-time.Minute))
	req := f.clockInRequest(eventID)

	first, replayed, err := f.admission.Admit(ctx, f.worker, req)
	require.NoError(t, err)
	assert.False(t, replayed)

	// Every resubmission returns the stored response without creating
	// another entry
	for i := 0; i < 5; i++ {
		resp, replayed, err := f.admission.Admit(ctx, f.worker, req)
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, first, resp)
	}

	entries, total, err := f.entryRepo.GetAllForWorker(ctx, f.worker.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, first.EntryID, entries[0].ID)
}

func TestAdmissionService_Rejections(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(req *models.ClockRequest)
		reason string
	}{
		{
			name:   "expired event",
			mutate: func(req *models.ClockRequest) { req.EventID = f.eventIDs.MintAt(f.now.Add(-25 * time.Hour)) },
			reason: models.ReasonEventExpired,
		},
		{
			name:   "future event",
			mutate: func(req *models.ClockRequest) { req.EventID = f.eventIDs.MintAt(f.now.Add(time.Second)) },
			reason: models.ReasonEventFuture,
		},
		{
			name:   "malformed event id",
			mutate: func(req *models.ClockRequest) { req.EventID = "garbage" },
			reason: models.ReasonInvalidEventID,
		},
		{
			name:   "missing job site",
			mutate: func(req *models.ClockRequest) { req.JobSiteID = "" },
			reason: models.ReasonValidationFailed,
		},
		{
			name: "outside geofence",
			mutate: func(req *models.ClockRequest) {
				req.Lat = 37.7893 // ~1.1km north
			},
			reason: models.ReasonGeofence,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.clockInRequest(f.eventIDs.MintAt(f.now.Add(-time.Minute)))
			tc.mutate(req)

			_, _, err := f.admission.Admit(ctx, f.worker, req)
			require.Error(t, err)

			var rej *models.Rejection
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tc.reason, rej.Reason)

			// Rejected events must not reach the ledger
			record, getErr := f.commitRepo.Get(ctx, req.EventID)
			require.NoError(t, getErr)
			assert.Nil(t, record)
		})
	}
}

func TestAdmissionService_OrderingConstraints(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	t.Run("clock-out without open entry is rejected", func(t *testing.T) {
		_, _, err := f.admission.Admit(ctx, f.worker,
			f.clockOutRequest(f.eventIDs.MintAt(f.now.Add(-time.Minute))))
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonValidationFailed, rej.Reason)
	})

	t.Run("second clock-in while open is rejected", func(t *testing.T) {
		_, _, err := f.admission.Admit(ctx, f.worker,
			f.clockInRequest(f.eventIDs.MintAt(f.now.Add(-10*time.Minute))))
		require.NoError(t, err)

		_, _, err = f.admission.Admit(ctx, f.worker,
			f.clockInRequest(f.eventIDs.MintAt(f.now.Add(-5*time.Minute))))
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonValidationFailed, rej.Reason)
	})

	t.Run("clock-out timestamped before clock-in is rejected", func(t *testing.T) {
		_, _, err := f.admission.Admit(ctx, f.worker,
			f.clockOutRequest(f.eventIDs.MintAt(f.now.Add(-15*time.Minute))))
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonValidationFailed, rej.Reason)
	})
}

func TestAdmissionService_Authorization(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	t.Run("unassigned worker is denied", func(t *testing.T) {
		outsider, err := models.NewWorker("ben@example.com", "Ben Okafor", false)
		require.NoError(t, err)

		_, _, err = f.admission.Admit(ctx, outsider,
			f.clockInRequest(f.eventIDs.MintAt(f.now.Add(-time.Minute))))
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonPermissionDenied, rej.Reason)
	})

	t.Run("enrolled pin is enforced", func(t *testing.T) {
		require.NoError(t, f.worker.SetPIN("4821"))

		req := f.clockInRequest(f.eventIDs.MintAt(f.now.Add(-time.Minute)))
		req.PIN = "0000"
		_, _, err := f.admission.Admit(ctx, f.worker, req)
		require.Error(t, err)

		var rej *models.Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.ReasonPermissionDenied, rej.Reason)

		req.PIN = "4821"
		_, _, err = f.admission.Admit(ctx, f.worker, req)
		require.NoError(t, err)
	})
}
