package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	appmiddleware "github.com/fieldclock/server/internal/middleware"
	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/observability"
	"github.com/fieldclock/server/internal/services"
)

// ClockHandler handles clock event submission
type ClockHandler struct {
	admission *services.AdmissionService
	hub       *services.WebSocketHub
	metrics   *observability.ClockMetrics
}

// NewClockHandler creates a new ClockHandler
func NewClockHandler(admission *services.AdmissionService, hub *services.WebSocketHub, metrics *observability.ClockMetrics) *ClockHandler {
	return &ClockHandler{
		admission: admission,
		hub:       hub,
		metrics:   metrics,
	}
}

// SubmitClockEvent admits a clock-in or clock-out event
// @Summary Submit a clock event
// @Description Validates and commits a clock-in or clock-out event exactly once. Resubmitting the same event ID returns the originally stored result.
// @Tags clock
// @Accept json
// @Produce json
// @Param request body models.ClockRequest true "Clock event"
// @Success 200 {object} models.ClockResponse
// @Failure 400 {object} models.ClockResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ClockResponse
// @Failure 422 {object} models.ClockResponse
// @Security ApiKeyAuth
// @Router /api/clock [post]
func (h *ClockHandler) SubmitClockEvent(w http.ResponseWriter, r *http.Request) {
	worker := appmiddleware.GetWorkerFromContext(r.Context())
	if worker == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClockRejection(w, &models.Rejection{
			Reason: models.ReasonValidationFailed,
			Detail: "malformed request body",
		})
		return
	}

	resp, replayed, err := h.admission.Admit(r.Context(), worker, &req)
	if err != nil {
		var rej *models.Rejection
		if errors.As(err, &rej) {
			log.Printf("Clock event %s rejected for worker %s: %v", req.EventID, worker.ID, rej)
			if h.metrics != nil {
				h.metrics.RecordRejection(r.Context(), req.OperationKind, rej.Reason)
			}
			if h.hub != nil {
				h.hub.SendToWorker(worker.ID, services.WSMessage{
					Type: services.WSTypeEntryRejected,
					Payload: services.EntryEventPayload{
						EventID:       req.EventID,
						OperationKind: req.OperationKind,
						Reason:        rej.Reason,
					},
				})
			}
			writeClockRejection(w, rej)
			return
		}

		log.Printf("Error admitting clock event %s: %v", req.EventID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSubmission(r.Context(), req.OperationKind, replayed)
	}
	if h.hub != nil && !replayed {
		h.hub.SendToWorker(worker.ID, services.WSMessage{
			Type: services.WSTypeEntryCommitted,
			Payload: services.EntryEventPayload{
				EventID:       req.EventID,
				OperationKind: req.OperationKind,
				EntryID:       resp.EntryID,
			},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeClockRejection maps a rejection reason onto an HTTP status and writes
// the rejection body. The body carries the reason code; the status is advisory.
func writeClockRejection(w http.ResponseWriter, rej *models.Rejection) {
	status := http.StatusUnprocessableEntity
	switch rej.Reason {
	case models.ReasonValidationFailed, models.ReasonInvalidEventID:
		status = http.StatusBadRequest
	case models.ReasonUnauthenticated:
		status = http.StatusUnauthorized
	case models.ReasonPermissionDenied:
		status = http.StatusForbidden
	case models.ReasonInternal:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ClockResponse{
		OK:     false,
		Reason: rej.Reason,
		Detail: rej.Detail,
	})
}
