package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/resilience"
	"github.com/sells-group/extract-relay/internal/schema"
	"github.com/sells-group/extract-relay/pkg/gemini"
)

// GeminiExtractor uses JSON mode with a response schema converted from the
// compiled document.
type GeminiExtractor struct {
	client  gemini.Client
	model   string
	breaker *resilience.Breaker
}

// NewGeminiExtractor creates an extractor. breaker may be nil.
func NewGeminiExtractor(client gemini.Client, modelName string, breaker *resilience.Breaker) *GeminiExtractor {
	return &GeminiExtractor{client: client, model: modelName, breaker: breaker}
}

// Extract implements Extractor.
func (e *GeminiExtractor) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	greq := gemini.Request{
		Model:  e.model,
		System: buildSystem(req.Instructions),
		Prompt: userPrompt(req),
		Schema: ToGenaiSchema(req.Schema),
	}
	if req.Modality == model.ModalityImage {
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return nil, eris.Wrapf(ErrExtractionFailed, "extract: decode image: %v", err)
		}
		greq.Images = []gemini.Image{{MediaType: mediaTypeOrDefault(req.MediaType), Data: data}}
	}

	call := func(ctx context.Context) (*gemini.Response, error) {
		return e.client.Generate(ctx, greq)
	}
	var resp *gemini.Response
	var err error
	if e.breaker != nil {
		resp, err = resilience.Call(ctx, e.breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrExtractionFailed, "extract: gemini: %v", err)
	}
	resp.Usage.LogCost(e.model, req.Operation)

	text := cleanJSON(resp.Text)
	if !json.Valid([]byte(text)) {
		return nil, eris.Wrap(ErrMalformedResult, "extract: gemini returned invalid JSON")
	}
	return json.RawMessage(text), nil
}

// ToGenaiSchema converts a schema document. Gemini has no unconstrained
// schema, so untyped nodes become strings.
func ToGenaiSchema(d *schema.Document) *genai.Schema {
	if d == nil {
		return nil
	}
	s := &genai.Schema{Description: d.Description, Enum: d.Enum}
	switch d.Type {
	case schema.KindNumber:
		s.Type = genai.TypeNumber
	case schema.KindBoolean:
		s.Type = genai.TypeBoolean
	case schema.KindArray:
		s.Type = genai.TypeArray
		s.Items = ToGenaiSchema(d.Items)
	case schema.KindObject:
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(d.Properties))
		for _, p := range d.Properties {
			s.Properties[p.Name] = ToGenaiSchema(p.Schema)
		}
		s.Required = append([]string(nil), d.Required...)
	default:
		s.Type = genai.TypeString
	}
	return s
}
