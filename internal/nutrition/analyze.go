package nutrition

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/extract"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/schema"
)

const estimateInstructions = `You estimate food portions from a photo of a meal.
List every distinct food you can see with its estimated edible quantity.
Use the plain common food name (for example "banana" or "white rice, cooked") and grams when possible.`

// EstimateSchema is the strict output schema for portion estimation:
// {items: [{name, quantity, unit}]}.
func EstimateSchema() *schema.Document {
	doc, err := schema.CompileFields([]schema.Field{{
		Key:         "items",
		Type:        schema.KindArray,
		Description: "foods visible in the image",
		Items: &schema.Field{
			Key:  "item",
			Type: schema.KindObject,
			Children: []schema.Field{
				{Key: "name", Type: schema.KindString, Description: "common food name"},
				{Key: "quantity", Type: schema.KindNumber, Description: "estimated amount"},
				{Key: "unit", Type: schema.KindString, Description: "unit of quantity, preferably g"},
			},
		},
	}})
	if err != nil {
		panic(err) // fixed definition
	}
	return doc
}

// Image is a base64 encoded meal photo.
type Image struct {
	Content   string
	MediaType string
	Note      string
}

// Analyzer runs estimate, reference lookup, scaling and presentation.
type Analyzer struct {
	extractor extract.Extractor
	enricher  *Enricher
	estimate  *schema.Document
	validator *schema.Validator
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(extractor extract.Extractor, enricher *Enricher) (*Analyzer, error) {
	doc := EstimateSchema()
	v, err := schema.NewValidator(doc)
	if err != nil {
		return nil, eris.Wrap(err, "nutrition: compile estimate schema")
	}
	return &Analyzer{extractor: extractor, enricher: enricher, estimate: doc, validator: v}, nil
}

// Estimate asks the extraction capability for food portions in img.
func (a *Analyzer) Estimate(ctx context.Context, img Image) ([]model.EstimateRecord, error) {
	raw, err := a.extractor.Extract(ctx, extract.Request{
		Modality:     model.ModalityImage,
		Content:      img.Content,
		MediaType:    img.MediaType,
		Schema:       a.estimate,
		Instructions: estimateInstructions + noteSuffix(img.Note),
		Operation:    "nutrition",
	})
	if err != nil {
		return nil, err
	}
	if err := a.validator.Validate(raw); err != nil {
		return nil, eris.Wrapf(extract.ErrMalformedResult, "nutrition: estimate: %v", err)
	}
	var payload struct {
		Items []model.EstimateRecord `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, eris.Wrapf(extract.ErrMalformedResult, "nutrition: decode estimate: %v", err)
	}
	return payload.Items, nil
}

// Analyze produces the nutrition report for img. rep may be nil. The
// terminal event is left to the caller.
func (a *Analyzer) Analyze(ctx context.Context, jobID string, img Image, rep extract.StepReporter) (*model.NutritionReport, error) {
	step := func(s model.ProgressStep, msg string, pct int) {
		if rep != nil {
			rep.Step(s, msg, pct)
		}
	}

	step(model.StepEstimating, "estimating portions", 10)
	estimates, err := a.Estimate(ctx, img)
	if err != nil {
		return nil, err
	}

	step(model.StepLookup, fmt.Sprintf("looking up %d foods", len(estimates)), 40)
	refs, errs := a.enricher.Lookup(ctx, estimates)

	step(model.StepScaling, "scaling nutrients", 70)
	items, totals := Present(ScaleAll(estimates, refs, errs))

	return &model.NutritionReport{
		JobID:  jobID,
		Status: model.JobStatusCompleted,
		Items:  items,
		Totals: totals,
	}, nil
}

func noteSuffix(note string) string {
	if note == "" {
		return ""
	}
	return "\n\nNote from the user: " + note
}
