package models

import "time"

// CommitRecord is the server-side idempotency ledger entry for an admitted
// clock event. It is written at most once per event ID, atomically with the
// time entry mutation. Subsequent submissions with the same event ID return
// the stored result without re-executing the mutation.
type CommitRecord struct {
	EventID       string    `json:"eventId"`
	WorkerID      string    `json:"workerId"`
	OperationKind string    `json:"operationKind"`
	EntryID       string    `json:"entryId"`
	ResultJSON    string    `json:"resultJson"`
	CommittedAt   time.Time `json:"committedAt"`
}
