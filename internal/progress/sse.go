package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/model"
)

// PingInterval is how often an idle stream receives a keep-alive comment.
var PingInterval = 15 * time.Second

// EventName maps a step to the SSE event name.
func EventName(step model.ProgressStep) string {
	switch step {
	case model.StepCompleted:
		return "completed"
	case model.StepError:
		return "error"
	case model.StepRejected:
		return "rejected"
	default:
		return "progress"
	}
}

// WriteEvent writes one SSE frame for ev.
func WriteEvent(w io.Writer, ev model.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "progress: marshal event")
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventName(ev.Step), data); err != nil {
		return eris.Wrap(err, "progress: write event")
	}
	return nil
}

// PrepareStream sets SSE headers and flushes them. It fails when the writer
// cannot flush.
func PrepareStream(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, eris.New("progress: streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, nil
}

// Stream copies sub's events to w until a terminal event is written, the
// subscription closes, or ctx ends. ctx is normally the request context,
// possibly joined with a server shutdown signal. The caller must have called
// PrepareStream.
func Stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sub *Subscription) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := WriteEvent(w, ev); err != nil {
				zap.L().Debug("progress: client write failed", zap.String("job_id", sub.JobID()), zap.Error(err))
				return
			}
			flusher.Flush()
			if ev.Step.Terminal() {
				return
			}

		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}
