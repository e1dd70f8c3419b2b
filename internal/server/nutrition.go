package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/nutrition"
	"github.com/sells-group/extract-relay/internal/progress"
)

type nutritionRequest struct {
	OwnerID     string `json:"ownerId"`
	CallbackURL string `json:"callbackUrl"`
	JobID       string `json:"jobId"`
	Image       struct {
		Content   string `json:"content"`
		MediaType string `json:"mediaType"`
	} `json:"image"`
	Note string `json:"note"`
}

// handleNutrition accepts a meal photo. The callback is optional: observers
// can follow the job on the progress stream under the returned or supplied
// job id.
func (s *Server) handleNutrition(w http.ResponseWriter, r *http.Request) {
	req, err := readSigned[nutritionRequest](s, w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !validBase64(req.Image.Content) {
		fail(w, r, badRequest("image.content is not valid base64"))
		return
	}
	callback, err := s.resolveCallback(req.CallbackURL, false)
	if err != nil {
		fail(w, r, err)
		return
	}
	if req.OwnerID == "" {
		fail(w, r, badRequest("ownerId is required"))
		return
	}

	// Create reserves the id atomically, so a duplicate never reaches the
	// quota. The reservation is dropped if the quota refuses the request.
	j, err := s.Dispatcher.Registry().Create(req.JobID, req.OwnerID, model.JobKindNutrition)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.allow(r.Context(), req.OwnerID); err != nil {
		s.Dispatcher.Registry().Discard(j.ID)
		fail(w, r, err)
		return
	}
	if err := s.ack(w, j.ID, "analysis started; follow progress for the result"); err != nil {
		zap.L().Warn("server: write ack", zap.String("job_id", j.ID), zap.Error(err))
	}

	img := nutrition.Image{Content: req.Image.Content, MediaType: req.Image.MediaType, Note: req.Note}
	_ = s.Dispatcher.Spawn(j.ID, job.Task{
		Run: func(ctx context.Context, rep *progress.Reporter) (any, error) {
			report, err := s.Analyzer.Analyze(ctx, j.ID, img, rep)
			if err != nil {
				return nil, err
			}
			if callback != "" {
				rep.Step(model.StepDelivering, "delivering report", 90)
				if err := s.Notifier.Deliver(ctx, callback, report); err != nil {
					zap.L().Error("server: deliver nutrition report", zap.String("job_id", j.ID), zap.Error(err))
				}
			}
			return report, nil
		},
		OnFailure: func(ctx context.Context, status model.JobStatus, err error) {
			if callback == "" {
				return
			}
			report := model.NutritionReport{
				JobID:  j.ID,
				Status: status,
				Items:  []model.PresentedSubject{},
				Totals: map[string]int64{},
				Error:  err.Error(),
			}
			if derr := s.Notifier.Deliver(ctx, callback, report); derr != nil {
				zap.L().Error("server: deliver nutrition failure", zap.String("job_id", j.ID), zap.Error(derr))
			}
		},
	})
}
