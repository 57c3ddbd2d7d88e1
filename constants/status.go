package constants

// ProcessingStatus is the canonical status for rows in the documents collection.
type ProcessingStatus string

// Stable values (store these exact strings in the DB).
const (
	StatusUploaded   ProcessingStatus = "uploaded"   // record created, AI hand-off pending
	StatusStored     ProcessingStatus = "stored"     // stored, no task service configured
	StatusProcessing ProcessingStatus = "processing" // extraction in flight
	StatusCompleted  ProcessingStatus = "completed"  // analysis persisted
	StatusFailed     ProcessingStatus = "failed"     // last attempt failed; re-submittable
)

// ReprocessableStatuses lists the statuses eligible for (re)processing.
// failed is not terminal: a failed record re-enters processing on demand.
var ReprocessableStatuses = []ProcessingStatus{StatusStored, StatusUploaded, StatusFailed}

func (s ProcessingStatus) Reprocessable() bool {
	for _, r := range ReprocessableStatuses {
		if s == r {
			return true
		}
	}
	return false
}
