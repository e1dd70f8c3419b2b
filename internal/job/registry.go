// Package job tracks accepted jobs in memory and runs their work detached
// from the request that submitted them.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
)

var (
	// ErrInvalidTransition means a status change is not allowed from the
	// job's current status.
	ErrInvalidTransition = eris.New("invalid job transition")
	// ErrDuplicateID means a job with the requested id already exists.
	ErrDuplicateID = eris.New("job id already registered")
	// ErrNotFound means no job has the given id.
	ErrNotFound = eris.New("job not found")
)

var transitions = map[model.JobStatus][]model.JobStatus{
	model.JobStatusAccepted:   {model.JobStatusProcessing, model.JobStatusRejected},
	model.JobStatusProcessing: {model.JobStatusCompleted, model.JobStatusFailed},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to model.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Registry holds jobs for the life of the process.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*model.Job), nowFunc: time.Now}
}

// Create registers a new accepted job. An empty id gets a random UUID.
func (r *Registry) Create(id, ownerID string, kind model.JobKind) (model.Job, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := r.nowFunc().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; ok {
		return model.Job{}, eris.Wrapf(ErrDuplicateID, "job: create %s", id)
	}
	j := &model.Job{
		ID:        id,
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    model.JobStatusAccepted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[id] = j
	return *j, nil
}

// Get returns a copy of the job.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *j, true
}

// Transition moves the job to status to, recording reason on failure or
// rejection.
func (r *Registry) Transition(id string, to model.JobStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "job: transition %s", id)
	}
	if !CanTransition(j.Status, to) {
		return eris.Wrapf(ErrInvalidTransition, "job: %s %s -> %s", id, j.Status, to)
	}
	j.Status = to
	j.Error = reason
	j.UpdatedAt = r.nowFunc().UTC()
	return nil
}

// Discard removes a job that is still accepted, for a request refused after
// its id was reserved. It reports whether the job was removed.
func (r *Registry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != model.JobStatusAccepted {
		return false
	}
	delete(r.jobs, id)
	return true
}

// Prune drops terminal jobs last updated before cutoff and returns how many
// were removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
