package constants

// JobStatus is the canonical status for a batch job in the progress registry.
type JobStatus string

// Stable values (these exact strings cross the API boundary).
const (
	JobStatusUploading  JobStatus = "uploading"  // upload accepted, archive not yet unpacked
	JobStatusProcessing JobStatus = "processing" // archive unpacked, documents being worked
	JobStatusCompleted  JobStatus = "completed"  // terminal: every document attempted
	JobStatusFailed     JobStatus = "failed"     // terminal: batch-fatal error
)

// Terminal reports whether the status is an end state for a batch.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
