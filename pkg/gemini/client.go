// Package gemini wraps the Gemini generative API for JSON-constrained
// generation over text and image parts.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client defines the Gemini operations used by the relay.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// Request is one JSON-mode generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Images      []Image
	Schema      *genai.Schema
	Temperature *float32
}

// Image is raw image bytes with their media type.
type Image struct {
	MediaType string
	Data      []byte
}

// Response carries the concatenated text of the first candidate.
type Response struct {
	Text  string
	Usage Usage
}

// Usage is the token accounting reported by the API.
type Usage struct {
	PromptTokens    int32
	CandidateTokens int32
}

// LogCost logs token usage for one call.
func (u Usage) LogCost(model, operation string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("operation", operation),
		zap.Int32("input_tokens", u.PromptTokens),
		zap.Int32("output_tokens", u.CandidateTokens),
	)
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client for apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := c.client.GenerativeModel(req.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = req.Schema

	resp, err := model.GenerateContent(ctx, parts(req)...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	return fromSDKResponse(resp)
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}

func parts(req Request) []genai.Part {
	out := make([]genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		out = append(out, genai.Blob{MIMEType: img.MediaType, Data: img.Data})
	}
	if req.Prompt != "" || len(out) == 0 {
		out = append(out, genai.Text(req.Prompt))
	}
	return out
}

func fromSDKResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, eris.New("gemini: empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out := &Response{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:    resp.UsageMetadata.PromptTokenCount,
			CandidateTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out, nil
}
