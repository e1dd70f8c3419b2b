package extract

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/pkg/anthropic"
	"github.com/sells-group/extract-relay/pkg/gemini"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Gemini Mock ---

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Response), args.Error(1)
}

func (m *mockGeminiClient) Close() error {
	return m.Called().Error(0)
}

// --- Step recorder ---

type recordedStep struct {
	step    model.ProgressStep
	percent int
}

type stepRecorder struct {
	steps []recordedStep
}

func (r *stepRecorder) Step(step model.ProgressStep, _ string, percent int) bool {
	r.steps = append(r.steps, recordedStep{step: step, percent: percent})
	return true
}
