package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/server/internal/handlers"
	appmiddleware "github.com/fieldclock/server/internal/middleware"
	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/observability"
	"github.com/fieldclock/server/internal/repository"
	"github.com/fieldclock/server/internal/services"
)

func stubServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransport_Submit(t *testing.T) {
	ctx := context.Background()
	op := testOperation("1718451000000-aaa", models.OpClockIn)

	t.Run("acknowledged event returns the response", func(t *testing.T) {
		srv := stubServer(t, http.StatusOK, `{"ok":true,"entryId":"entry-1"}`)
		transport := NewHTTPTransport(srv.URL, "key", "")

		resp, err := transport.Submit(ctx, op)
		require.NoError(t, err)
		assert.True(t, resp.OK)
		assert.Equal(t, "entry-1", resp.EntryID)
	})

	t.Run("server fault is retryable", func(t *testing.T) {
		srv := stubServer(t, http.StatusInternalServerError, `{"ok":false,"reason":"internal"}`)
		transport := NewHTTPTransport(srv.URL, "key", "")

		_, err := transport.Submit(ctx, op)
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
	})

	t.Run("unreachable server is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		transport := NewHTTPTransport(srv.URL, "key", "")

		_, err := transport.Submit(ctx, op)
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
	})

	t.Run("rejection reason is decoded", func(t *testing.T) {
		srv := stubServer(t, http.StatusUnprocessableEntity,
			`{"ok":false,"reason":"geofence-violation","detail":"312m from site"}`)
		transport := NewHTTPTransport(srv.URL, "key", "")

		_, err := transport.Submit(ctx, op)
		var rejection *models.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, models.ReasonGeofence, rejection.Reason)
		assert.Equal(t, "312m from site", rejection.Detail)
		assert.False(t, rejection.RetryableOnServer())
	})

	t.Run("auth failure without a reason code is final", func(t *testing.T) {
		srv := stubServer(t, http.StatusUnauthorized, `{"error":"Invalid API key."}`)
		transport := NewHTTPTransport(srv.URL, "bad-key", "")

		_, err := transport.Submit(ctx, op)
		var rejection *models.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, models.ReasonUnauthenticated, rejection.Reason)
		assert.Equal(t, "Invalid API key.", rejection.Detail)
		assert.False(t, rejection.RetryableOnServer())
	})

	t.Run("forbidden without a reason code maps to permission denied", func(t *testing.T) {
		srv := stubServer(t, http.StatusForbidden, `{}`)
		transport := NewHTTPTransport(srv.URL, "key", "")

		_, err := transport.Submit(ctx, op)
		var rejection *models.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, models.ReasonPermissionDenied, rejection.Reason)
		assert.False(t, rejection.RetryableOnServer())
	})
}

func TestHTTPTransport_Probe(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy server", func(t *testing.T) {
		srv := stubServer(t, http.StatusOK, `{"status":"healthy"}`)
		transport := NewHTTPTransport(srv.URL, "key", "")
		assert.True(t, transport.Probe(ctx))
	})

	t.Run("unreachable server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		transport := NewHTTPTransport(srv.URL, "key", "")
		assert.False(t, transport.Probe(ctx))
	})
}

// clockServerFixture runs the real admission stack behind httptest so
// coordinator drains exercise the full submission path.
type clockServerFixture struct {
	srv        *httptest.Server
	worker     *models.Worker
	site       *models.JobSite
	commitRepo *repository.CommitRecordRepository
	entryRepo  *repository.TimeEntryRepository
	eventIDs   *services.EventIDService
}

func startClockServer(t *testing.T) *clockServerFixture {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	worker, err := models.NewWorker("leo@example.com", "Leo Park", false)
	require.NoError(t, err)
	workerRepo := repository.NewWorkerRepository(db)
	require.NoError(t, workerRepo.Add(ctx, worker))

	site, err := models.NewJobSite("Harrison Yard", "500 Harrison St", 37.7793, -122.4193, 75)
	require.NoError(t, err)
	siteRepo := repository.NewJobSiteRepository(db)
	require.NoError(t, siteRepo.Add(ctx, site))
	require.NoError(t, siteRepo.Assign(ctx, worker.ID, site.ID))

	eventIDs := services.NewEventIDService()
	commitRepo := repository.NewCommitRecordRepository(db)
	admission := services.NewAdmissionService(
		eventIDs,
		services.NewReplayGuard(eventIDs, 24*time.Hour),
		services.NewGeofenceService(),
		services.NewAuthorizationService(siteRepo),
		siteRepo,
		commitRepo,
	)

	hub := services.NewWebSocketHub()
	go hub.Run()

	metrics, err := observability.NewClockMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(appmiddleware.WorkerAPIKeyAuth(workerRepo, "X-API-Key", nil))
	r.Post("/api/clock", handlers.NewClockHandler(admission, hub, metrics).SubmitClockEvent)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &clockServerFixture{
		srv:        srv,
		worker:     worker,
		site:       site,
		commitRepo: commitRepo,
		entryRepo:  repository.NewTimeEntryRepository(db),
		eventIDs:   eventIDs,
	}
}

func (f *clockServerFixture) operation(kind string) *models.PendingOperation {
	accuracy := 10.0
	return &models.PendingOperation{
		EventID:        f.eventIDs.Mint(),
		OperationKind:  kind,
		JobSiteID:      f.site.ID,
		Lat:            37.7793,
		Lng:            -122.4193,
		AccuracyMeters: &accuracy,
		OwnerWorkerID:  f.worker.ID,
		CreatedAt:      time.Now().UTC(),
		Status:         models.OpStatusPending,
	}
}

func TestCoordinator_DrainThroughClockAPI(t *testing.T) {
	fx := startClockServer(t)
	q, _ := openTestQueue(t)
	ctx := context.Background()

	op := fx.operation(models.OpClockIn)
	inserted, err := q.Enqueue(ctx, op)
	require.NoError(t, err)
	require.True(t, inserted)

	// Offline: nothing is sent and no retry budget is burned
	monitor := NewConnectivityMonitor(func(ctx context.Context) bool { return false }, time.Minute)
	monitor.SetOnline(false)
	transport := NewHTTPTransport(fx.srv.URL, fx.worker.APIKey, "")
	coordinator := NewCoordinator(q, transport, monitor, 8, time.Minute)

	result, err := coordinator.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Sent)

	queued, err := q.Get(ctx, op.EventID)
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, models.OpStatusPending, queued.Status)
	assert.Equal(t, 0, queued.RetryCount)

	// Connectivity restored: the drain submits over real HTTP
	monitor.SetOnline(true)
	result, err = coordinator.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	ops, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)

	record, err := fx.commitRepo.Get(ctx, op.EventID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.OpClockIn, record.OperationKind)

	entry, err := fx.entryRepo.GetOpenForWorker(ctx, fx.worker.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, fx.site.ID, entry.JobSiteID)

	// A queued clock-out closes the entry on the next drain
	out := fx.operation(models.OpClockOut)
	_, err = q.Enqueue(ctx, out)
	require.NoError(t, err)

	result, err = coordinator.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	entry, err = fx.entryRepo.GetOpenForWorker(ctx, fx.worker.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCoordinator_AuthFailureParksImmediately(t *testing.T) {
	fx := startClockServer(t)
	q, _ := openTestQueue(t)
	ctx := context.Background()

	op := fx.operation(models.OpClockIn)
	_, err := q.Enqueue(ctx, op)
	require.NoError(t, err)

	transport := NewHTTPTransport(fx.srv.URL, "not-a-key", "")
	coordinator := NewCoordinator(q, transport, nil, 8, time.Minute)

	var gotErr error
	coordinator.SetResultCallback(func(_ *models.PendingOperation, _ *models.ClockResponse, err error) {
		gotErr = err
	})

	result, err := coordinator.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)
	assert.Zero(t, result.Failed)

	// Parked on the first attempt, no retries burned
	parked, err := q.Get(ctx, op.EventID)
	require.NoError(t, err)
	require.NotNil(t, parked)
	assert.Equal(t, models.OpStatusNeedsAttention, parked.Status)
	assert.Equal(t, 0, parked.RetryCount)

	var rejection *models.Rejection
	require.True(t, errors.As(gotErr, &rejection))
	assert.Equal(t, models.ReasonUnauthenticated, rejection.Reason)
}
