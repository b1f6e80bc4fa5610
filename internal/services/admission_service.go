package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldclock/server/internal/models"
	"github.com/fieldclock/server/internal/repository"
)

// AdmissionService is the server-side pipeline that accepts or rejects a
// submitted clock event exactly once. Checks run cheapest and most
// security-sensitive first; a stale or out-of-geofence request never reaches
// the idempotency ledger, and a retry of a committed request is answered
// from the ledger without re-entering business logic.
type AdmissionService struct {
	eventIDs   *EventIDService
	replay     *ReplayGuard
	geofence   *GeofenceService
	authz      *AuthorizationService
	siteRepo   repository.JobSiteRepo
	commitRepo repository.CommitRecordRepo

	// now is swappable for tests
	now func() time.Time
}

// NewAdmissionService creates a new AdmissionService
func NewAdmissionService(
	eventIDs *EventIDService,
	replay *ReplayGuard,
	geofence *GeofenceService,
	authz *AuthorizationService,
	siteRepo repository.JobSiteRepo,
	commitRepo repository.CommitRecordRepo,
) *AdmissionService {
	return &AdmissionService{
		eventIDs:   eventIDs,
		replay:     replay,
		geofence:   geofence,
		authz:      authz,
		siteRepo:   siteRepo,
		commitRepo: commitRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Admit validates and commits a clock event for an authenticated worker.
// The returned bool reports whether the response was replayed from the
// ledger. Fatal failures return *models.Rejection; anything else is a
// server fault.
func (s *AdmissionService) Admit(ctx context.Context, worker *models.Worker, req *models.ClockRequest) (*models.ClockResponse, bool, error) {
	// Shape validation
	op := &models.PendingOperation{
		EventID:        req.EventID,
		OperationKind:  req.OperationKind,
		JobSiteID:      req.JobSiteID,
		Lat:            req.Lat,
		Lng:            req.Lng,
		AccuracyMeters: req.AccuracyMeters,
	}
	if err := op.Validate(); err != nil {
		return nil, false, models.NewRejection(models.ReasonValidationFailed, "%s", err.Error())
	}

	// Kiosk PIN, when the worker has one enrolled
	if worker.HasPIN() && !worker.VerifyPIN(req.PIN) {
		return nil, false, models.NewRejection(models.ReasonPermissionDenied, "incorrect clock-in pin")
	}

	// Replay guard: pure, before any state is touched
	now := s.now()
	if err := s.replay.Check(req.EventID, req.OperationKind, now); err != nil {
		return nil, false, err
	}
	eventTime, err := s.eventIDs.Parse(req.EventID)
	if err != nil {
		return nil, false, err
	}

	// Geofence applies to clockIn only; clockOut closes wherever the worker
	// is, since leaving the site without clocking out is the common failure
	if req.OperationKind == models.OpClockIn {
		decision, err := s.authz.CheckJobAccess(ctx, worker.ID, req.JobSiteID)
		if err != nil {
			return nil, false, err
		}
		if !decision.Allowed {
			return nil, false, models.NewRejection(models.ReasonPermissionDenied, "%s", decision.Reason)
		}

		site, err := s.siteRepo.GetByID(ctx, req.JobSiteID)
		if err != nil {
			return nil, false, err
		}
		if site == nil || !site.IsActive {
			return nil, false, models.NewRejection(models.ReasonValidationFailed, "unknown job site %s", req.JobSiteID)
		}

		inside, distance := s.geofence.WithinGeofence(site, req.Lat, req.Lng, req.AccuracyMeters)
		if !inside {
			return nil, false, models.NewRejection(models.ReasonGeofence,
				"%.0fm from site center, effective radius %.0fm",
				distance, s.geofence.EffectiveRadius(site, req.AccuracyMeters))
		}
	}

	// Idempotent commit: ledger lookup and domain mutation in one transaction
	record, replayed, err := s.commitRepo.CommitEvent(ctx, req.EventID, worker.ID, req.OperationKind,
		func(tx *sql.Tx) (string, string, error) {
			switch req.OperationKind {
			case models.OpClockIn:
				return s.commitClockIn(tx, worker.ID, req, eventTime)
			default:
				return s.commitClockOut(tx, worker.ID, req, eventTime)
			}
		})
	if err != nil {
		return nil, false, err
	}

	var resp models.ClockResponse
	if err := json.Unmarshal([]byte(record.ResultJSON), &resp); err != nil {
		return nil, false, fmt.Errorf("decode stored result for event %s: %w", req.EventID, err)
	}
	return &resp, replayed, nil
}

func (s *AdmissionService) commitClockIn(tx *sql.Tx, workerID string, req *models.ClockRequest, eventTime time.Time) (string, string, error) {
	open, err := repository.GetOpenForWorkerTx(tx, workerID)
	if err != nil {
		return "", "", err
	}
	if open != nil {
		return "", "", models.NewRejection(models.ReasonValidationFailed,
			"worker already has an open entry at site %s", open.JobSiteID)
	}

	entry := models.NewTimeEntry(workerID, req.JobSiteID, req.EventID, eventTime, req.Lat, req.Lng, req.AccuracyMeters)
	if err := repository.AddEntryTx(tx, entry); err != nil {
		return "", "", err
	}
	return encodeResult(entry.ID)
}

func (s *AdmissionService) commitClockOut(tx *sql.Tx, workerID string, req *models.ClockRequest, eventTime time.Time) (string, string, error) {
	open, err := repository.GetOpenForWorkerTx(tx, workerID)
	if err != nil {
		return "", "", err
	}
	if open == nil {
		return "", "", models.NewRejection(models.ReasonValidationFailed, "worker has no open entry to close")
	}
	if eventTime.Before(open.ClockInAt) {
		return "", "", models.NewRejection(models.ReasonValidationFailed,
			"clock-out time precedes clock-in time of the open entry")
	}

	open.Close(req.EventID, eventTime, req.Lat, req.Lng, req.AccuracyMeters)
	if err := repository.CloseEntryTx(tx, open); err != nil {
		return "", "", err
	}
	return encodeResult(open.ID)
}

func encodeResult(entryID string) (string, string, error) {
	payload, err := json.Marshal(models.ClockResponse{OK: true, EntryID: entryID})
	if err != nil {
		return "", "", err
	}
	return entryID, string(payload), nil
}
