package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/repository"
)

// WorkerHandler handles worker account management endpoints
type WorkerHandler struct {
	workerRepo repository.WorkerRepo
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(workerRepo repository.WorkerRepo) *WorkerHandler {
	return &WorkerHandler{workerRepo: workerRepo}
}

// ListWorkers returns all worker accounts
// @Summary List workers
// @Description Get all worker accounts. Admin only.
// @Tags workers
// @Produce json
// @Success 200 {array} models.WorkerResponse
// @Security ApiKeyAuth
// @Router /api/admin/workers [get]
func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.workerRepo.GetAll(r.Context())
	if err != nil {
		log.Printf("Error listing workers: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	resp := make([]models.WorkerResponse, 0, len(workers))
	for _, worker := range workers {
		resp = append(resp, worker.ToResponse())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateWorker creates a worker account
// @Summary Create a worker
// @Description Create a worker account and return its API key. The key is shown once; only its hash is stored. Admin only.
// @Tags workers
// @Accept json
// @Produce json
// @Param request body models.CreateWorkerRequest true "Worker details"
// @Success 201 {object} models.Worker
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/workers [post]
func (h *WorkerHandler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	worker, err := models.NewWorker(req.Email, req.FullName, req.IsAdmin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.PIN != "" {
		if err := worker.SetPIN(req.PIN); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	existing, err := h.workerRepo.GetByEmail(r.Context(), worker.Email)
	if err != nil {
		log.Printf("Error checking email %s: %v", worker.Email, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, models.ErrEmailExists.Error())
		return
	}

	if err := h.workerRepo.Add(r.Context(), worker); err != nil {
		log.Printf("Error creating worker: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// The response includes the plaintext API key; it is never retrievable again
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(worker)
}

// RotateAPIKey replaces a worker's API key
// @Summary Rotate a worker's API key
// @Description Generate a new API key for a worker, invalidating the old one. Admin only.
// @Tags workers
// @Produce json
// @Param id path string true "Worker ID"
// @Success 200 {object} models.Worker
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/workers/{id}/rotate-key [post]
func (h *WorkerHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "id")

	worker, err := h.workerRepo.GetByID(r.Context(), workerID)
	if err != nil {
		log.Printf("Error getting worker %s: %v", workerID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, models.ErrWorkerNotFound.Error())
		return
	}

	apiKey, err := models.GenerateAPIKey()
	if err != nil {
		log.Printf("Error generating API key: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	worker.APIKey = apiKey
	worker.APIKeyHash = models.HashAPIKey(apiKey)

	if err := h.workerRepo.UpdateAPIKeyHash(r.Context(), worker.ID, worker.APIKeyHash); err != nil {
		log.Printf("Error rotating API key for worker %s: %v", workerID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(worker)
}

// DeactivateWorker deactivates a worker account
// @Summary Deactivate a worker
// @Description Deactivate a worker account so its API key stops authenticating. Admin only.
// @Tags workers
// @Param id path string true "Worker ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/workers/{id} [delete]
func (h *WorkerHandler) DeactivateWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "id")

	worker, err := h.workerRepo.GetByID(r.Context(), workerID)
	if err != nil {
		log.Printf("Error getting worker %s: %v", workerID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, models.ErrWorkerNotFound.Error())
		return
	}

	worker.IsActive = false
	if err := h.workerRepo.Update(r.Context(), worker); err != nil {
		log.Printf("Error deactivating worker %s: %v", workerID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
