package model

import "time"

// ProgressStep names a stage reported on the progress channel.
type ProgressStep string

const (
	StepAccepted   ProgressStep = "accepted"
	StepExtracting ProgressStep = "extracting"
	StepItemDone   ProgressStep = "item_done"
	StepEstimating ProgressStep = "estimating"
	StepLookup     ProgressStep = "reference_lookup"
	StepScaling    ProgressStep = "scaling"
	StepDelivering ProgressStep = "delivering"
	StepCompleted  ProgressStep = "completed"
	StepRejected   ProgressStep = "rejected"
	StepError      ProgressStep = "error"
)

// Terminal reports whether the step ends a job's event sequence.
func (s ProgressStep) Terminal() bool {
	return s == StepCompleted || s == StepRejected || s == StepError
}

// ProgressEvent is a single progress notification for a job. Result is set
// only on terminal events.
type ProgressEvent struct {
	JobID     string       `json:"jobId"`
	Step      ProgressStep `json:"step"`
	Message   string       `json:"message"`
	Percent   *int         `json:"percent,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Result    any          `json:"result,omitempty"`
}

// Pct returns a pointer to p for use in ProgressEvent.Percent.
func Pct(p int) *int {
	return &p
}
