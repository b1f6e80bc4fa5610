package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/repository"
)

type contextKey string

const (
	// WorkerContextKey holds the authenticated worker on request contexts
	WorkerContextKey contextKey = "worker"
)

// GetWorkerFromContext retrieves the authenticated worker from request context
func GetWorkerFromContext(ctx context.Context) *models.Worker {
	if worker, ok := ctx.Value(WorkerContextKey).(*models.Worker); ok {
		return worker
	}
	return nil
}

// WorkerAPIKeyAuth creates middleware that resolves workers by API key hash.
// Paths in skipPaths (exact, or prefix when ending in "*") bypass auth.
func WorkerAPIKeyAuth(workerRepo repository.WorkerRepo, headerName string, skipPaths []string) func(http.Handler) http.Handler {
	skipSet := make(map[string]bool)
	for _, p := range skipPaths {
		skipSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if skipSet[path] {
				next.ServeHTTP(w, r)
				return
			}
			for p := range skipSet {
				if strings.HasSuffix(p, "*") && strings.HasPrefix(path, strings.TrimSuffix(p, "*")) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Only authenticate API routes
			if !strings.HasPrefix(path, "/api") {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeAuthError(w, http.StatusUnauthorized, models.ReasonUnauthenticated, "API key is required.")
				return
			}

			keyHash := models.HashAPIKey(providedKey)
			worker, err := workerRepo.GetByAPIKeyHash(r.Context(), keyHash)
			if err != nil {
				// Lookup failure is a server fault, not a bad credential
				writeAuthError(w, http.StatusInternalServerError, models.ReasonInternal, "Authentication lookup failed.")
				return
			}
			if worker == nil {
				writeAuthError(w, http.StatusUnauthorized, models.ReasonUnauthenticated, "Invalid API key.")
				return
			}

			ctx := context.WithValue(r.Context(), WorkerContextKey, worker)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin creates middleware that rejects non-admin workers. It must
// run after WorkerAPIKeyAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		worker := GetWorkerFromContext(r.Context())
		if worker == nil {
			writeAuthError(w, http.StatusUnauthorized, models.ReasonUnauthenticated, "Authentication required.")
			return
		}
		if !worker.IsAdmin {
			writeAuthError(w, http.StatusForbidden, models.ReasonPermissionDenied, "Admin access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeAuthError answers with the same reason-coded body the clock API
// uses, so offline clients can classify auth failures as final.
func writeAuthError(w http.ResponseWriter, status int, reason, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ClockResponse{OK: false, Reason: reason, Detail: detail})
}
