package model

import "time"

// JobStatus represents the lifecycle state of an accepted job.
type JobStatus string

const (
	JobStatusAccepted   JobStatus = "accepted"
	JobStatusProcessing JobStatus = "processing"
	JobStatusRejected   JobStatus = "rejected"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusRejected, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// JobKind identifies which operation a job runs.
type JobKind string

const (
	JobKindExtract   JobKind = "extract"
	JobKindSchema    JobKind = "schema"
	JobKindNutrition JobKind = "nutrition"
)

// Job is an accepted unit of asynchronous work. It lives only in memory.
type Job struct {
	ID        string    `json:"jobId"`
	OwnerID   string    `json:"ownerId"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ack is the signed body returned to the caller before any work starts.
type Ack struct {
	Status    string `json:"status"`
	Note      string `json:"note"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	JobID     string `json:"jobId"`
}
