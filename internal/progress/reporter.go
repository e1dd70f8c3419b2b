package progress

import (
	"sync"
	"time"

	"github.com/sells-group/extract-relay/internal/model"
)

// Reporter publishes one job's events and keeps the sequence well formed:
// percent never decreases and at most one terminal event is sent.
type Reporter struct {
	pub   Publisher
	jobID string

	mu       sync.Mutex
	last     int
	terminal bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewReporter creates a Reporter for jobID.
func NewReporter(pub Publisher, jobID string) *Reporter {
	return &Reporter{pub: pub, jobID: jobID, nowFunc: time.Now}
}

// JobID returns the reported job.
func (r *Reporter) JobID() string { return r.jobID }

// Step publishes a non-terminal event. percent is clamped to [0,100] and
// raised to the last reported value if lower. It returns false once the job
// has finished. Terminal steps passed here are routed through Finish.
func (r *Reporter) Step(step model.ProgressStep, message string, percent int) bool {
	if step.Terminal() {
		return r.Finish(step, message, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal {
		return false
	}
	percent = clamp(percent)
	if percent < r.last {
		percent = r.last
	}
	r.last = percent
	r.publish(step, message, percent, nil)
	return true
}

// Finish publishes the single terminal event. A completed job reports 100;
// failures keep the last percent. Later calls return false.
func (r *Reporter) Finish(step model.ProgressStep, message string, result any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal {
		return false
	}
	r.terminal = true
	if step == model.StepCompleted {
		r.last = 100
	}
	r.publish(step, message, r.last, result)
	return true
}

// Done reports whether a terminal event has been sent.
func (r *Reporter) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminal
}

func (r *Reporter) publish(step model.ProgressStep, message string, percent int, result any) {
	r.pub.Publish(model.ProgressEvent{
		JobID:     r.jobID,
		Step:      step,
		Message:   message,
		Percent:   model.Pct(percent),
		Timestamp: r.nowFunc().UTC(),
		Result:    result,
	})
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
