package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/cardwatch/agreements-tracker/constants"
)

// BatchJob is the live status record for one archive upload. Values handed
// out by the registry are copies; readers never observe a half-written
// update.
type BatchJob struct {
	ID             string              `json:"id"`
	Status         constants.JobStatus `json:"status"`
	Progress       int                 `json:"progress"`
	TotalFiles     int                 `json:"total_files"`
	ProcessedFiles int                 `json:"processed_files"`
	CurrentFile    string              `json:"current_file"`
	ETASeconds     int                 `json:"eta_seconds"`
	Message        string              `json:"message"`
	CreatedAt      time.Time           `json:"created_at"`
	FinishedAt     time.Time           `json:"finished_at,omitzero"`
}

// Update is a partial patch applied with merge semantics: nil fields leave
// the stored value untouched.
type Update struct {
	Status         *constants.JobStatus
	Progress       *int
	TotalFiles     *int
	ProcessedFiles *int
	CurrentFile    *string
	ETASeconds     *int
	Message        *string
}

// Registry is the keyed table of live batch jobs. The orchestrator is the
// only writer; the progress-subscription surface reads and evicts.
type Registry interface {
	// Create registers a fresh job in the uploading state. Re-creating an id
	// that still holds a non-terminal job is an error.
	Create(id string) (BatchJob, error)
	Get(id string) (BatchJob, bool)
	// Upsert applies a partial update and returns the merged snapshot.
	Upsert(id string, u Update) (BatchJob, bool)
	Delete(id string)
	// ListExpired returns ids of terminal jobs whose retention window has
	// passed as of now.
	ListExpired(now time.Time) []string
}

// MemoryRegistry is the process-lifetime Registry implementation.
type MemoryRegistry struct {
	mu        sync.RWMutex
	jobs      map[string]*BatchJob
	retention time.Duration
	now       func() time.Time
}

func NewMemoryRegistry(retention time.Duration) *MemoryRegistry {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &MemoryRegistry{
		jobs:      make(map[string]*BatchJob),
		retention: retention,
		now:       time.Now,
	}
}

func (r *MemoryRegistry) Create(id string) (BatchJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[id]; ok && !existing.Status.Terminal() {
		return BatchJob{}, fmt.Errorf("job %s already in progress", id)
	}
	job := &BatchJob{
		ID:        id,
		Status:    constants.JobStatusUploading,
		Message:   "Starting upload...",
		CreatedAt: r.now(),
	}
	r.jobs[id] = job
	return *job, nil
}

func (r *MemoryRegistry) Get(id string) (BatchJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return BatchJob{}, false
	}
	return *job, true
}

func (r *MemoryRegistry) Upsert(id string, u Update) (BatchJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return BatchJob{}, false
	}
	if u.Status != nil {
		job.Status = *u.Status
		if job.Status.Terminal() && job.FinishedAt.IsZero() {
			job.FinishedAt = r.now()
		}
	}
	if u.Progress != nil && *u.Progress > job.Progress {
		// Progress is monotonically non-decreasing within a run; it only
		// resets at job creation.
		job.Progress = clampPercent(*u.Progress)
	}
	if u.TotalFiles != nil {
		job.TotalFiles = *u.TotalFiles
	}
	if u.ProcessedFiles != nil {
		job.ProcessedFiles = *u.ProcessedFiles
	}
	if u.CurrentFile != nil {
		job.CurrentFile = *u.CurrentFile
	}
	if u.ETASeconds != nil {
		job.ETASeconds = *u.ETASeconds
	}
	if u.Message != nil {
		job.Message = *u.Message
	}
	return *job, true
}

func (r *MemoryRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

func (r *MemoryRegistry) ListExpired(now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []string
	for id, job := range r.jobs {
		if job.Status.Terminal() && !job.FinishedAt.IsZero() && now.Sub(job.FinishedAt) > r.retention {
			expired = append(expired, id)
		}
	}
	return expired
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Patch helpers keep orchestrator call sites terse.

func Status(s constants.JobStatus) *constants.JobStatus { return &s }
func Int(v int) *int                                    { return &v }
func String(s string) *string                           { return &s }
