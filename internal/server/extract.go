package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/extract"
	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/progress"
	"github.com/sells-group/extract-relay/internal/schema"
)

type extractRequest struct {
	OwnerID      string            `json:"ownerId"`
	CallbackURL  string            `json:"callbackUrl"`
	Instructions string            `json:"instructions"`
	Items        []model.BatchItem `json:"items"`
	Fields       []schema.Field    `json:"fields"`
	Shape        json.RawMessage   `json:"shape"`
}

// failureResult is delivered when a job fails or is rejected after its ack.
type failureResult struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
	Error  string          `json:"error"`
}

// compileRequestSchema compiles exactly one of fields or shape.
func compileRequestSchema(fields []schema.Field, shape json.RawMessage) (*schema.Document, error) {
	hasShape := len(bytes.TrimSpace(shape)) > 0 && !bytes.Equal(bytes.TrimSpace(shape), []byte("null"))
	switch {
	case len(fields) > 0 && hasShape:
		return nil, badRequest("send either fields or shape, not both")
	case len(fields) > 0:
		return schema.CompileFields(fields)
	case hasShape:
		return schema.CompileShape(shape)
	default:
		return nil, badRequest("fields or shape is required")
	}
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, err := readSigned[extractRequest](s, w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := validateItems(req.Items); err != nil {
		fail(w, r, err)
		return
	}
	doc, err := compileRequestSchema(req.Fields, req.Shape)
	if err != nil {
		fail(w, r, err)
		return
	}
	validator, err := schema.NewValidator(doc)
	if err != nil {
		fail(w, r, err)
		return
	}
	callback, err := s.resolveCallback(req.CallbackURL, true)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.allow(r.Context(), req.OwnerID); err != nil {
		fail(w, r, err)
		return
	}

	j, err := s.Dispatcher.Registry().Create("", req.OwnerID, model.JobKindExtract)
	if err != nil {
		fail(w, r, err)
		return
	}
	note := fmt.Sprintf("%d items queued; results will be posted to the callback in order", len(req.Items))
	if err := s.ack(w, j.ID, note); err != nil {
		zap.L().Warn("server: write ack", zap.String("job_id", j.ID), zap.Error(err))
	}

	batch := extract.Batch{
		JobID:        j.ID,
		Items:        req.Items,
		Schema:       doc,
		Validator:    validator,
		Instructions: req.Instructions,
	}
	_ = s.Dispatcher.Spawn(j.ID, job.Task{
		Run: func(ctx context.Context, rep *progress.Reporter) (any, error) {
			summary := s.Orchestrator.RunBatch(ctx, batch, rep, func(ctx context.Context, res model.ItemResult) error {
				return s.Notifier.Deliver(ctx, callback, res)
			})
			return summary, nil
		},
		OnFailure: s.notifyFailure(j.ID, callback),
	})
}

// notifyFailure delivers a failure record to callback when set.
func (s *Server) notifyFailure(jobID, callback string) func(context.Context, model.JobStatus, error) {
	return func(ctx context.Context, status model.JobStatus, err error) {
		if callback == "" {
			return
		}
		res := failureResult{JobID: jobID, Status: status, Error: err.Error()}
		if derr := s.Notifier.Deliver(ctx, callback, res); derr != nil {
			zap.L().Error("server: deliver failure", zap.String("job_id", jobID), zap.Error(derr))
		}
	}
}
