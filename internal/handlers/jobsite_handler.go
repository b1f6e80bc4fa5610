package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/repository"
)

// JobSiteHandler handles job site management endpoints
type JobSiteHandler struct {
	siteRepo   repository.JobSiteRepo
	workerRepo repository.WorkerRepo
}

// NewJobSiteHandler creates a new JobSiteHandler
func NewJobSiteHandler(siteRepo repository.JobSiteRepo, workerRepo repository.WorkerRepo) *JobSiteHandler {
	return &JobSiteHandler{siteRepo: siteRepo, workerRepo: workerRepo}
}

// ListJobSites returns active job sites
// @Summary List job sites
// @Description Get all active job sites with their geofence definitions
// @Tags jobsites
// @Produce json
// @Success 200 {array} models.JobSite
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/jobsites [get]
func (h *JobSiteHandler) ListJobSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.siteRepo.GetAll(r.Context(), true)
	if err != nil {
		log.Printf("Error listing job sites: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sites)
}

// CreateJobSite creates a new job site
// @Summary Create a job site
// @Description Create a job site with a circular geofence. Admin only.
// @Tags jobsites
// @Accept json
// @Produce json
// @Param request body models.CreateJobSiteRequest true "Job site definition"
// @Success 201 {object} models.JobSite
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/jobsites [post]
func (h *JobSiteHandler) CreateJobSite(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	site, err := models.NewJobSite(req.Name, req.Address, req.CenterLat, req.CenterLng, req.RadiusMeters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.siteRepo.Add(r.Context(), site); err != nil {
		log.Printf("Error creating job site: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(site)
}

// UpdateJobSite updates a job site
// @Summary Update a job site
// @Description Update a job site's name, address, geofence, or active flag. Admin only.
// @Tags jobsites
// @Accept json
// @Produce json
// @Param id path string true "Job site ID"
// @Param request body models.JobSite true "Updated job site"
// @Success 200 {object} models.JobSite
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/jobsites/{id} [put]
func (h *JobSiteHandler) UpdateJobSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")

	existing, err := h.siteRepo.GetByID(r.Context(), siteID)
	if err != nil {
		log.Printf("Error getting job site %s: %v", siteID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Job site not found")
		return
	}

	var update models.JobSite
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if update.RadiusMeters <= 0 {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRadius.Error())
		return
	}

	existing.Name = update.Name
	existing.Address = update.Address
	existing.CenterLat = update.CenterLat
	existing.CenterLng = update.CenterLng
	existing.RadiusMeters = update.RadiusMeters
	existing.IsActive = update.IsActive

	if err := h.siteRepo.Update(r.Context(), existing); err != nil {
		log.Printf("Error updating job site %s: %v", siteID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(existing)
}

// AssignWorker assigns a worker to a job site
// @Summary Assign a worker to a job site
// @Description Allow a worker to clock in at a job site. Admin only.
// @Tags jobsites
// @Param id path string true "Job site ID"
// @Param workerId path string true "Worker ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/jobsites/{id}/workers/{workerId} [put]
func (h *JobSiteHandler) AssignWorker(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")
	workerID := chi.URLParam(r, "workerId")

	if ok, err := h.assignmentTargetsExist(r, siteID, workerID); err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "Worker or job site not found")
		return
	}

	if err := h.siteRepo.Assign(r.Context(), workerID, siteID); err != nil {
		log.Printf("Error assigning worker %s to site %s: %v", workerID, siteID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnassignWorker removes a worker's job site assignment
// @Summary Unassign a worker from a job site
// @Tags jobsites
// @Param id path string true "Job site ID"
// @Param workerId path string true "Worker ID"
// @Success 204
// @Security ApiKeyAuth
// @Router /api/admin/jobsites/{id}/workers/{workerId} [delete]
func (h *JobSiteHandler) UnassignWorker(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")
	workerID := chi.URLParam(r, "workerId")

	if err := h.siteRepo.Unassign(r.Context(), workerID, siteID); err != nil {
		log.Printf("Error unassigning worker %s from site %s: %v", workerID, siteID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobSiteHandler) assignmentTargetsExist(r *http.Request, siteID, workerID string) (bool, error) {
	site, err := h.siteRepo.GetByID(r.Context(), siteID)
	if err != nil {
		log.Printf("Error getting job site %s: %v", siteID, err)
		return false, err
	}
	worker, err := h.workerRepo.GetByID(r.Context(), workerID)
	if err != nil {
		log.Printf("Error getting worker %s: %v", workerID, err)
		return false, err
	}
	return site != nil && worker != nil, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}
