// Package progress fans job progress events out to live subscribers and
// streams them over Server-Sent Events.
package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/model"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Publisher accepts progress events.
type Publisher interface {
	Publish(ev model.ProgressEvent)
}

// Hub keeps one subscriber group per job id. The map lock is held only to
// find, create or delete groups; fan-out takes the group's own lock.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]*group
	buffer int
}

type group struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates a Hub. A non-positive buffer uses DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{groups: make(map[string]*group), buffer: buffer}
}

// Subscription is one observer of a job's events.
type Subscription struct {
	jobID string
	ch    chan model.ProgressEvent
	hub   *Hub
	once  sync.Once
}

// Events returns the receive side. It is closed by Close.
func (s *Subscription) Events() <-chan model.ProgressEvent { return s.ch }

// JobID returns the job the subscription observes.
func (s *Subscription) JobID() string { return s.jobID }

// Close leaves the group. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Subscribe joins the group for jobID. Events published before the call are
// not replayed.
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		jobID: jobID,
		ch:    make(chan model.ProgressEvent, h.buffer),
		hub:   h,
	}

	h.mu.Lock()
	g, ok := h.groups[jobID]
	if !ok {
		g = &group{subs: make(map[*Subscription]struct{})}
		h.groups[jobID] = g
	}
	g.mu.Lock()
	g.subs[sub] = struct{}{}
	g.mu.Unlock()
	h.mu.Unlock()

	return sub
}

// Publish sends ev to every current subscriber of ev.JobID without blocking.
// A subscriber whose buffer is full misses a non-terminal event. A terminal
// event evicts the oldest queued event instead, so every subscriber sees it.
func (h *Hub) Publish(ev model.ProgressEvent) {
	h.mu.RLock()
	g := h.groups[ev.JobID]
	h.mu.RUnlock()
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for sub := range g.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		if !ev.Step.Terminal() {
			zap.L().Warn("progress: subscriber buffer full, dropping event",
				zap.String("job_id", ev.JobID),
				zap.String("step", string(ev.Step)),
			)
			continue
		}
		sub.pushEvicting(ev)
	}
}

// pushEvicting discards queued events until ev fits. Senders hold the group
// lock, so only the reader competes for the buffer and this cannot block.
func (s *Subscription) pushEvicting(ev model.ProgressEvent) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case old := <-s.ch:
			zap.L().Warn("progress: subscriber buffer full, evicting event for terminal step",
				zap.String("job_id", old.JobID),
				zap.String("evicted_step", string(old.Step)),
			)
		default:
		}
	}
}

// Subscribers returns the number of live subscribers for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	g := h.groups[jobID]
	h.mu.RUnlock()
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[sub.jobID]
	if !ok {
		close(sub.ch)
		return
	}
	g.mu.Lock()
	delete(g.subs, sub)
	close(sub.ch)
	empty := len(g.subs) == 0
	g.mu.Unlock()

	if empty {
		delete(h.groups, sub.jobID)
	}
}
