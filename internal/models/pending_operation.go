package models

import "time"

// Operation kinds for offline-capable actions
const (
	OpClockIn  = "clockIn"
	OpClockOut = "clockOut"
)

// Pending operation status values
const (
	OpStatusPending        = "pending"
	OpStatusNeedsAttention = "needs_attention"
)

// Conflict resolution strategies. Clock events are resolved server-wins: the
// commit ledger is authoritative and a duplicate submission returns the
// stored result. The enum exists so future offline-capable operation kinds
// can declare a different strategy.
const (
	ResolveServerWins = "server-wins"
	ResolveClientWins = "client-wins"
	ResolveMerge      = "merge"
	ResolveManual     = "manual"
)

// PendingOperation is a queued, not-yet-acknowledged clock action owned by
// the device that created it. At most one operation per event ID may exist
// in a device queue.
type PendingOperation struct {
	EventID        string     `json:"eventId"`
	OperationKind  string     `json:"operationKind"`
	JobSiteID      string     `json:"jobSiteId,omitempty"`
	Lat            float64    `json:"lat"`
	Lng            float64    `json:"lng"`
	AccuracyMeters *float64   `json:"accuracyMeters,omitempty"`
	OwnerWorkerID  string     `json:"ownerWorkerId"`
	CreatedAt      time.Time  `json:"createdAt"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
}

// ResolutionStrategy returns the conflict resolution strategy for the
// operation's kind. Both clock kinds are server-wins.
func (op *PendingOperation) ResolutionStrategy() string {
	switch op.OperationKind {
	case OpClockIn, OpClockOut:
		return ResolveServerWins
	default:
		return ResolveManual
	}
}

// Validate checks the operation shape before enqueue
func (op *PendingOperation) Validate() error {
	switch op.OperationKind {
	case OpClockIn:
		if op.JobSiteID == "" {
			return ErrMissingJobSite
		}
	case OpClockOut:
	default:
		return ErrUnknownOperation
	}
	if op.EventID == "" {
		return ErrMissingEventID
	}
	if op.Lat < -90 || op.Lat > 90 || op.Lng < -180 || op.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Pending operation errors
var (
	ErrMissingJobSite   = OperationError{"clockIn requires a job site id"}
	ErrUnknownOperation = OperationError{"unknown operation kind"}
	ErrMissingEventID   = OperationError{"operation has no event id"}
)

type OperationError struct {
	Message string
}

func (e OperationError) Error() string {
	return e.Message
}
