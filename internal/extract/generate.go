package extract

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/schema"
)

// fieldTreeDepth bounds how deeply a drafted field tree may nest.
const fieldTreeDepth = 4

const draftInstructions = `You design data extraction schemas.
Given the caller's description, list the fields to extract. Use camelCase keys.
Use type "object" with children for grouped values and type "array" with items for repeated values.
Leave children and items out of string, number and boolean fields.`

// Draft is a model-drafted field tree and its compiled schema.
type Draft struct {
	Fields []schema.Field
	Schema *schema.Document
}

// DraftSchema asks the extractor to turn a plain-language instruction into a
// field tree, then compiles it. An invalid tree is reported as
// ErrMalformedResult wrapping the definition error.
func DraftSchema(ctx context.Context, ex Extractor, instruction string) (*Draft, error) {
	meta := schema.FieldTreeDocument(fieldTreeDepth)
	raw, err := ex.Extract(ctx, Request{
		Modality:     model.ModalityText,
		Content:      instruction,
		Schema:       meta,
		Instructions: draftInstructions,
		Operation:    "schema",
	})
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(meta, raw); err != nil {
		return nil, eris.Wrapf(ErrMalformedResult, "extract: draft: %v", err)
	}

	var payload struct {
		Fields []schema.Field `json:"fields"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, eris.Wrapf(ErrMalformedResult, "extract: decode draft: %v", err)
	}
	doc, err := schema.CompileFields(payload.Fields)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedResult, "extract: compile draft: %v", err)
	}
	return &Draft{Fields: payload.Fields, Schema: doc}, nil
}
