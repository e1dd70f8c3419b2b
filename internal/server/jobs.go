package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/progress"
	"github.com/sells-group/extract-relay/internal/signing"
)

// handleGetJob returns a job's status. The request is signed over an empty
// body.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if err := s.Guard.Verify(r.Header.Get(signing.HeaderSignature), r.Header.Get(signing.HeaderTimestamp), nil); err != nil {
		fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "jobID")
	j, ok := s.Dispatcher.Registry().Get(id)
	if !ok {
		fail(w, r, eris.Wrapf(job.ErrNotFound, "server: job %s", id))
		return
	}
	respondJSON(w, http.StatusOK, j)
}

// handleProgress streams a job's progress as server-sent events. Unknown ids
// are allowed so a client can subscribe before submitting a job with its
// own id. A job that already finished gets a single terminal event. The
// stream also ends when the server closes its streams for shutdown.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	sub := s.Hub.Subscribe(id)
	defer sub.Close()

	flusher, err := progress.PrepareStream(w)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if j, ok := s.Dispatcher.Registry().Get(id); ok && j.Status.Terminal() {
		_ = progress.WriteEvent(w, terminalEvent(j))
		flusher.Flush()
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()
	progress.Stream(ctx, w, flusher, sub)
}

func terminalEvent(j model.Job) model.ProgressEvent {
	ev := model.ProgressEvent{JobID: j.ID, Message: j.Error, Timestamp: j.UpdatedAt}
	switch j.Status {
	case model.JobStatusCompleted:
		ev.Step = model.StepCompleted
		ev.Message = "job completed"
		ev.Percent = model.Pct(100)
	case model.JobStatusRejected:
		ev.Step = model.StepRejected
	default:
		ev.Step = model.StepError
	}
	return ev
}
