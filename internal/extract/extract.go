// Package extract drives the external structured-extraction capability over
// batches of documents.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/schema"
)

var (
	// ErrExtractionFailed means the capability call itself failed.
	ErrExtractionFailed = eris.New("extraction failed")
	// ErrMalformedResult means the capability answered with output that is
	// not JSON or does not match the schema.
	ErrMalformedResult = eris.New("malformed extraction result")
)

// ToolName is the forced tool whose input carries the structured result.
const ToolName = "record_extraction"

// Request is one extraction call.
type Request struct {
	Modality     model.Modality
	Content      string // text, or base64 image data
	MediaType    string
	Schema       *schema.Document
	Instructions string
	// Operation labels cost logs, e.g. "extract" or "schema".
	Operation string
}

// Extractor returns a JSON value conforming to req.Schema's shape.
type Extractor interface {
	Extract(ctx context.Context, req Request) (json.RawMessage, error)
}

const systemPrompt = `You extract structured data from the supplied document.
Return a value for every field in the schema. When the document does not contain a value, use an empty string, 0, false or an empty list as the type requires.
Do not invent fields that are not in the schema.`

func buildSystem(instructions string) string {
	if strings.TrimSpace(instructions) == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nAdditional instructions from the caller:\n" + instructions
}

func userPrompt(req Request) string {
	if req.Modality == model.ModalityImage {
		return "Extract the fields from this image."
	}
	return "Extract the fields from this document:\n\n" + req.Content
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func mediaTypeOrDefault(mt string) string {
	if mt == "" {
		return "image/jpeg"
	}
	return mt
}
