package server

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/extract"
	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/progress"
	"github.com/sells-group/extract-relay/internal/schema"
)

type schemaRequest struct {
	OwnerID     string         `json:"ownerId"`
	CallbackURL string         `json:"callbackUrl"`
	Instruction string         `json:"instruction"`
	Fields      []schema.Field `json:"fields"`
}

// schemaResult is the webhook payload of a schema job.
type schemaResult struct {
	JobID  string           `json:"jobId"`
	Status model.JobStatus  `json:"status"`
	Schema *schema.Document `json:"schema,omitempty"`
	Fields []schema.Field   `json:"fields,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	req, err := readSigned[schemaRequest](s, w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	instruction := strings.TrimSpace(req.Instruction)
	if (instruction == "") == (len(req.Fields) == 0) {
		fail(w, r, badRequest("send exactly one of instruction or fields"))
		return
	}

	var doc *schema.Document
	if len(req.Fields) > 0 {
		if doc, err = schema.CompileFields(req.Fields); err != nil {
			fail(w, r, err)
			return
		}
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

	j, err := s.Dispatcher.Registry().Create("", req.OwnerID, model.JobKindSchema)
	if err != nil {
		fail(w, r, err)
		return
	}
	note := "schema will be posted to the callback"
	if err := s.ack(w, j.ID, note); err != nil {
		zap.L().Warn("server: write ack", zap.String("job_id", j.ID), zap.Error(err))
	}

	fields := req.Fields
	_ = s.Dispatcher.Spawn(j.ID, job.Task{
		Run: func(ctx context.Context, rep *progress.Reporter) (any, error) {
			if doc == nil {
				rep.Step(model.StepExtracting, "drafting fields", 20)
				draft, err := extract.DraftSchema(ctx, s.Extractor, instruction)
				if err != nil {
					return nil, err
				}
				doc, fields = draft.Schema, draft.Fields
			}
			rep.Step(model.StepDelivering, "delivering schema", 90)
			res := schemaResult{JobID: j.ID, Status: model.JobStatusCompleted, Schema: doc, Fields: fields}
			if err := s.Notifier.Deliver(ctx, callback, res); err != nil {
				zap.L().Error("server: deliver schema", zap.String("job_id", j.ID), zap.Error(err))
			}
			return res, nil
		},
		OnFailure: s.notifyFailure(j.ID, callback),
	})
}
