package extract

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/resilience"
	"github.com/sells-group/extract-relay/pkg/anthropic"
)

// AnthropicExtractor forces a single tool call whose input schema is the
// compiled document.
type AnthropicExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	breaker   *resilience.Breaker
}

// NewAnthropicExtractor creates an extractor. breaker may be nil.
func NewAnthropicExtractor(client anthropic.Client, modelName string, maxTokens int64, breaker *resilience.Breaker) *AnthropicExtractor {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicExtractor{client: client, model: modelName, maxTokens: maxTokens, breaker: breaker}
}

// Extract implements Extractor.
func (e *AnthropicExtractor) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	msg := anthropic.Message{Role: "user", Content: userPrompt(req)}
	if req.Modality == model.ModalityImage {
		msg.Images = []anthropic.Image{{MediaType: mediaTypeOrDefault(req.MediaType), Data: req.Content}}
	}

	call := func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    []anthropic.SystemBlock{{Text: buildSystem(req.Instructions)}},
			Messages:  []anthropic.Message{msg},
			Tools: []anthropic.Tool{{
				Name:        ToolName,
				Description: "Record the extracted fields.",
				Properties:  req.Schema.PropertyMap(),
				Required:    req.Schema.Required,
			}},
			ToolChoice: ToolName,
		})
	}

	var resp *anthropic.MessageResponse
	var err error
	if e.breaker != nil {
		resp, err = resilience.Call(ctx, e.breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrExtractionFailed, "extract: anthropic: %v", err)
	}
	resp.Usage.LogCost(e.model, req.Operation)

	input, ok := resp.ToolInput(ToolName)
	if !ok {
		return nil, eris.Wrapf(ErrMalformedResult, "extract: anthropic returned no %s call (stop reason %s)", ToolName, resp.StopReason)
	}
	return input, nil
}
