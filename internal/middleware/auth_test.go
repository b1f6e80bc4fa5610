package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldclock/server/internal/models"
)

type stubWorkerRepo struct {
	worker *models.Worker
	err    error
}

func (s *stubWorkerRepo) GetByID(ctx context.Context, id string) (*models.Worker, error) {
	return nil, nil
}

func (s *stubWorkerRepo) GetByEmail(ctx context.Context, email string) (*models.Worker, error) {
	return nil, nil
}

func (s *stubWorkerRepo) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Worker, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.worker != nil && models.HashAPIKey(s.worker.APIKey) == apiKeyHash {
		return s.worker, nil
	}
	return nil, nil
}

func (s *stubWorkerRepo) GetAll(ctx context.Context) ([]*models.Worker, error) { return nil, nil }

func (s *stubWorkerRepo) Add(ctx context.Context, worker *models.Worker) error { return nil }

func (s *stubWorkerRepo) Update(ctx context.Context, worker *models.Worker) error { return nil }

func (s *stubWorkerRepo) UpdateAPIKeyHash(ctx context.Context, id, apiKeyHash string) error {
	return nil
}

func (s *stubWorkerRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }

func authRequest(t *testing.T, repo *stubWorkerRepo, apiKey string) (*httptest.ResponseRecorder, *models.Worker) {
	t.Helper()

	var seen *models.Worker
	handler := WorkerAPIKeyAuth(repo, "X-API-Key", nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetWorkerFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/clock", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func decodeAuthBody(t *testing.T, rec *httptest.ResponseRecorder) models.ClockResponse {
	t.Helper()
	var body models.ClockResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWorkerAPIKeyAuth(t *testing.T) {
	worker, err := models.NewWorker("mira@example.com", "Mira Osei", false)
	require.NoError(t, err)

	t.Run("valid key resolves the worker", func(t *testing.T) {
		rec, seen := authRequest(t, &stubWorkerRepo{worker: worker}, worker.APIKey)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, worker.ID, seen.ID)
	})

	t.Run("missing key is unauthenticated", func(t *testing.T) {
		rec, _ := authRequest(t, &stubWorkerRepo{worker: worker}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decodeAuthBody(t, rec)
		assert.False(t, body.OK)
		assert.Equal(t, models.ReasonUnauthenticated, body.Reason)
	})

	t.Run("unknown key is unauthenticated", func(t *testing.T) {
		rec, _ := authRequest(t, &stubWorkerRepo{worker: worker}, "wrong-key")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decodeAuthBody(t, rec)
		assert.Equal(t, models.ReasonUnauthenticated, body.Reason)
	})

	t.Run("lookup failure is a server fault, not a bad credential", func(t *testing.T) {
		rec, _ := authRequest(t, &stubWorkerRepo{err: errors.New("db down")}, worker.APIKey)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		body := decodeAuthBody(t, rec)
		assert.False(t, body.OK)
		assert.Equal(t, models.ReasonInternal, body.Reason)
	})

	t.Run("non-api paths bypass auth", func(t *testing.T) {
		handler := WorkerAPIKeyAuth(&stubWorkerRepo{}, "X-API-Key", nil)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("non-admin gets permission denied", func(t *testing.T) {
		worker, err := models.NewWorker("sam@example.com", "Sam Idowu", false)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/workers", nil)
		req = req.WithContext(context.WithValue(req.Context(), WorkerContextKey, worker))
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeAuthBody(t, rec)
		assert.Equal(t, models.ReasonPermissionDenied, body.Reason)
	})

	t.Run("admin passes", func(t *testing.T) {
		admin, err := models.NewWorker("dee@example.com", "Dee Alvarez", true)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/workers", nil)
		req = req.WithContext(context.WithValue(req.Context(), WorkerContextKey, admin))
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/workers", nil)
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeAuthBody(t, rec)
		assert.Equal(t, models.ReasonUnauthenticated, body.Reason)
	})
}
