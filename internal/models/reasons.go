package models

import "fmt"

// Reason codes surfaced across the client/server boundary
const (
	ReasonInvalidEventID   = "invalid-event-id-format"
	ReasonEventExpired     = "event-expired"
	ReasonEventFuture      = "event-timestamp-in-future"
	ReasonGeofence         = "geofence-violation"
	ReasonValidationFailed = "validation-failed"
	ReasonUnauthenticated  = "unauthenticated"
	ReasonPermissionDenied = "permission-denied"
	ReasonInternal         = "internal"
)

// Rejection is a fatal admission failure. The event will never be accepted
// as submitted; the client must not retry it automatically.
type Rejection struct {
	Reason string
	Detail string
}

func (e *Rejection) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// NewRejection creates a Rejection with a formatted detail message
func NewRejection(reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RetryableOnServer reports whether the reason indicates a server fault that
// a client may retry a bounded number of times. All other reasons are final.
func (e *Rejection) RetryableOnServer() bool {
	return e.Reason == ReasonInternal
}
