package progress

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/extract-relay/internal/model"
)

func drain(sub *Subscription) []model.ProgressEvent {
	var out []model.ProgressEvent
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHub_FanOutToGroupOnly(t *testing.T) {
	h := NewHub(8)
	a1 := h.Subscribe("job-a")
	a2 := h.Subscribe("job-a")
	b := h.Subscribe("job-b")
	defer a1.Close()
	defer a2.Close()
	defer b.Close()

	h.Publish(model.ProgressEvent{JobID: "job-a", Step: model.StepExtracting})

	assert.Len(t, drain(a1), 1)
	assert.Len(t, drain(a2), 1)
	assert.Empty(t, drain(b))
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	h := NewHub(8)
	h.Publish(model.ProgressEvent{JobID: "job", Step: model.StepExtracting})

	sub := h.Subscribe("job")
	defer sub.Close()
	assert.Empty(t, drain(sub))
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe("job")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(model.ProgressEvent{JobID: "job", Step: model.StepExtracting})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, drain(sub), 1)
}

func TestHub_TerminalEventSurvivesFullBuffer(t *testing.T) {
	h := NewHub(DefaultBuffer)
	sub := h.Subscribe("job")
	defer sub.Close()

	r := NewReporter(h, "job")
	for i := 0; i < 20; i++ {
		r.Step(model.StepExtracting, "extracting", i*5)
		r.Step(model.StepItemDone, "item done", i*5+5)
	}
	require.True(t, r.Finish(model.StepCompleted, "done", nil))

	events := drain(sub)
	require.Len(t, events, DefaultBuffer)
	terminals := 0
	for _, ev := range events {
		if ev.Step.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, model.StepCompleted, events[len(events)-1].Step)
}

func TestHub_CloseRemovesGroup(t *testing.T) {
	h := NewHub(4)
	sub := h.Subscribe("job")
	assert.Equal(t, 1, h.Subscribers("job"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers("job"))

	_, open := <-sub.Events()
	assert.False(t, open)

	// Publishing to a job with no group is a no-op.
	h.Publish(model.ProgressEvent{JobID: "job"})
}

func TestHub_ConcurrentSubscribePublish(t *testing.T) {
	h := NewHub(64)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := h.Subscribe("job")
			drain(sub)
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			h.Publish(model.ProgressEvent{JobID: "job", Step: model.StepExtracting})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Subscribers("job"))
}

type recorder struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (r *recorder) Publish(ev model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestReporter_PercentNonDecreasingAndSingleTerminal(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec, "job")

	r.Step(model.StepAccepted, "accepted", 0)
	r.Step(model.StepEstimating, "estimating", 40)
	r.Step(model.StepLookup, "lookup", 20)
	r.Step(model.StepScaling, "scaling", 150)
	assert.True(t, r.Finish(model.StepCompleted, "done", map[string]int{"n": 1}))
	assert.False(t, r.Finish(model.StepError, "late", nil))
	assert.False(t, r.Step(model.StepDelivering, "late", 100))
	assert.True(t, r.Done())

	var percents []int
	terminals := 0
	for _, ev := range rec.events {
		require.NotNil(t, ev.Percent)
		percents = append(percents, *ev.Percent)
		if ev.Step.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, []int{0, 40, 40, 100, 100}, percents)
	assert.Equal(t, 1, terminals)
	assert.Equal(t, map[string]int{"n": 1}, rec.events[4].Result)
}

func TestReporter_FailureKeepsLastPercent(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec, "job")
	r.Step(model.StepEstimating, "estimating", -5)
	r.Step(model.StepLookup, "lookup", 60)
	r.Step(model.StepError, "boom", 90)

	require.Len(t, rec.events, 3)
	assert.Equal(t, 0, *rec.events[0].Percent)
	assert.Equal(t, model.StepError, rec.events[2].Step)
	assert.Equal(t, 60, *rec.events[2].Percent)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "progress", EventName(model.StepScaling))
	assert.Equal(t, "completed", EventName(model.StepCompleted))
	assert.Equal(t, "error", EventName(model.StepError))
	assert.Equal(t, "rejected", EventName(model.StepRejected))
}

func TestStream_WritesUntilTerminal(t *testing.T) {
	h := NewHub(8)
	subscribed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := h.Subscribe("job")
		defer sub.Close()
		flusher, err := PrepareStream(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		close(subscribed)
		Stream(r.Context(), w, flusher, sub)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	<-subscribed
	rep := NewReporter(h, "job")
	rep.Step(model.StepEstimating, "estimating", 30)
	rep.Finish(model.StepCompleted, "done", nil)

	var names []string
	var last model.ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			names = append(names, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last))
		}
	}
	assert.Equal(t, []string{"progress", "completed"}, names)
	assert.Equal(t, "job", last.JobID)
	assert.Equal(t, 100, *last.Percent)
}
