package job

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/progress"
)

// ErrClosed means the dispatcher no longer accepts work.
var ErrClosed = eris.New("dispatcher closed")

// Task is the detached work of one job.
type Task struct {
	// Run does the work. Its result is attached to the completed event.
	Run func(ctx context.Context, rep *progress.Reporter) (any, error)
	// OnFailure, if set, is called once when Run fails, panics, or the job
	// is rejected before it starts.
	OnFailure func(ctx context.Context, status model.JobStatus, err error)
}

// Dispatcher runs tasks on goroutines bound to its own base context, never
// to the submitting request's.
type Dispatcher struct {
	registry *Registry
	pub      progress.Publisher

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *Registry, pub progress.Publisher) *Dispatcher {
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{registry: registry, pub: pub, base: base, cancel: cancel}
}

// Registry returns the job registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Spawn starts the accepted job's task. A closed dispatcher rejects the job
// instead and returns ErrClosed.
func (d *Dispatcher) Spawn(jobID string, task Task) error {
	rep := progress.NewReporter(d.pub, jobID)
	log := zap.L().With(zap.String("job_id", jobID))

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if err := d.registry.Transition(jobID, model.JobStatusRejected, ErrClosed.Error()); err != nil {
			log.Warn("job: reject", zap.Error(err))
		}
		rep.Finish(model.StepRejected, "server is shutting down", nil)
		if task.OnFailure != nil {
			task.OnFailure(context.Background(), model.JobStatusRejected, ErrClosed)
		}
		return eris.Wrapf(ErrClosed, "job: spawn %s", jobID)
	}
	if err := d.registry.Transition(jobID, model.JobStatusProcessing, ""); err != nil {
		d.mu.Unlock()
		return err
	}
	d.wg.Add(1)
	d.mu.Unlock()

	rep.Step(model.StepAccepted, "job accepted", 0)

	go func() {
		defer d.wg.Done()
		result, err := d.run(task, rep)
		if err != nil {
			log.Error("job: failed", zap.Error(err))
			if terr := d.registry.Transition(jobID, model.JobStatusFailed, err.Error()); terr != nil {
				log.Warn("job: transition", zap.Error(terr))
			}
			rep.Finish(model.StepError, err.Error(), result)
			if task.OnFailure != nil {
				task.OnFailure(d.base, model.JobStatusFailed, err)
			}
			return
		}
		if terr := d.registry.Transition(jobID, model.JobStatusCompleted, ""); terr != nil {
			log.Warn("job: transition", zap.Error(terr))
		}
		rep.Finish(model.StepCompleted, "job completed", result)
		log.Info("job: completed")
	}()
	return nil
}

func (d *Dispatcher) run(task Task, rep *progress.Reporter) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("job: panic: %v", r)
		}
	}()
	return task.Run(d.base, rep)
}

// Close stops accepting new tasks.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait closes the dispatcher and blocks until running tasks finish or ctx
// ends. On ctx expiry the base context is cancelled so in-flight calls
// abort, and ctx's error is returned.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.Close()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancel()
		return eris.Wrap(ctx.Err(), "job: drain")
	}
}
