package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/schema"
)

// StepReporter receives batch progress. *progress.Reporter satisfies it.
type StepReporter interface {
	Step(step model.ProgressStep, message string, percent int) bool
}

// DeliverFunc hands one item result to its callback. Errors are logged and
// do not stop the batch.
type DeliverFunc func(ctx context.Context, result model.ItemResult) error

// Batch is one submitted batch of items sharing a schema.
type Batch struct {
	JobID        string
	Items        []model.BatchItem
	Schema       *schema.Document
	Validator    *schema.Validator // compiled from Schema when nil
	Instructions string
}

// Orchestrator processes batches strictly in submission order: item k+1 is
// not started until item k's result has been delivered.
type Orchestrator struct {
	extractor Extractor
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(extractor Extractor) *Orchestrator {
	return &Orchestrator{extractor: extractor}
}

// RunBatch extracts every item, validates each result and delivers it before
// moving on. A failing item is delivered as failed with a null response and
// never stops the batch. rep may be nil.
func (o *Orchestrator) RunBatch(ctx context.Context, b Batch, rep StepReporter, deliver DeliverFunc) model.BatchSummary {
	log := zap.L().With(zap.String("job_id", b.JobID))
	summary := model.BatchSummary{Total: len(b.Items)}

	validator := b.Validator
	var setupErr error
	if validator == nil {
		validator, setupErr = schema.NewValidator(b.Schema)
		if setupErr != nil {
			log.Error("extract: compile validator", zap.Error(setupErr))
		}
	}

	n := len(b.Items)
	for k, item := range b.Items {
		if rep != nil {
			rep.Step(model.StepExtracting, fmt.Sprintf("extracting item %d of %d", k+1, n), 100*k/n)
		}

		result := model.ItemResult{
			JobID:     b.JobID,
			SessionID: item.SessionID,
			FileID:    item.FileID,
		}

		var raw []byte
		err := setupErr
		if err == nil {
			raw, err = o.extractOne(ctx, b, validator, item)
		}
		if err != nil {
			log.Warn("extract: item failed",
				zap.String("file_id", item.FileID),
				zap.Int("index", k),
				zap.Error(err),
			)
			result.Status = model.ItemStatusFailed
			result.Error = err.Error()
			summary.Failed++
		} else {
			result.Status = model.ItemStatusCompleted
			result.Response = raw
			summary.Completed++
		}

		if deliver != nil {
			if err := deliver(ctx, result); err != nil {
				log.Error("extract: deliver item result",
					zap.String("file_id", item.FileID),
					zap.Error(err),
				)
			}
		}
		if rep != nil {
			rep.Step(model.StepItemDone, fmt.Sprintf("item %d of %d %s", k+1, n, result.Status), 100*(k+1)/n)
		}
	}

	log.Info("extract: batch finished",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

func (o *Orchestrator) extractOne(ctx context.Context, b Batch, v *schema.Validator, item model.BatchItem) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrExtractionFailed, "extract: panic: %v", r)
		}
	}()

	raw, err = o.extractor.Extract(ctx, Request{
		Modality:     item.Modality,
		Content:      item.Content,
		MediaType:    item.MediaType,
		Schema:       b.Schema,
		Instructions: b.Instructions,
		Operation:    "extract",
	})
	if err != nil {
		return nil, err
	}
	if err := v.Validate(raw); err != nil {
		return nil, eris.Wrapf(ErrMalformedResult, "extract: %v", err)
	}
	return raw, nil
}
