package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	appmiddleware "github.com/fieldclock/server/internal/middleware"
	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/repository"
)

// EntryHandler handles time entry read endpoints
type EntryHandler struct {
	entryRepo repository.TimeEntryRepo
}

// NewEntryHandler creates a new EntryHandler
func NewEntryHandler(entryRepo repository.TimeEntryRepo) *EntryHandler {
	return &EntryHandler{entryRepo: entryRepo}
}

// ListEntries returns the authenticated worker's time entries
// @Summary List time entries
// @Description Get time entries for the authenticated worker, newest first
// @Tags entries
// @Produce json
// @Param skip query int false "Number of entries to skip" default(0)
// @Param take query int false "Number of entries to return" default(50)
// @Success 200 {object} models.TimeEntryListResponse
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/entries [get]
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	worker := appmiddleware.GetWorkerFromContext(r.Context())
	if worker == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	take, err := strconv.Atoi(r.URL.Query().Get("take"))
	if err != nil || take <= 0 {
		take = 50
	}
	if take > 200 {
		take = 200
	}
	if skip < 0 {
		skip = 0
	}

	entries, total, err := h.entryRepo.GetAllForWorker(r.Context(), worker.ID, skip, take)
	if err != nil {
		log.Printf("Error listing entries for worker %s: %v", worker.ID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	resp := models.TimeEntryListResponse{
		Entries:    make([]models.TimeEntryResponse, 0, len(entries)),
		TotalCount: total,
		Skip:       skip,
		Take:       take,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, models.EntryToResponse(e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetOpenEntry returns the worker's open entry, if any
// @Summary Get open time entry
// @Description Get the authenticated worker's currently open entry. Returns 404 when the worker is clocked out.
// @Tags entries
// @Produce json
// @Success 200 {object} models.TimeEntryResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/entries/open [get]
func (h *EntryHandler) GetOpenEntry(w http.ResponseWriter, r *http.Request) {
	worker := appmiddleware.GetWorkerFromContext(r.Context())
	if worker == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entry, err := h.entryRepo.GetOpenForWorker(r.Context(), worker.ID)
	if err != nil {
		log.Printf("Error getting open entry for worker %s: %v", worker.ID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "No open entry"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.EntryToResponse(entry))
}
