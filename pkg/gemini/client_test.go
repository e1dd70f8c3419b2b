package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParts_ImagesBeforePrompt(t *testing.T) {
	got := parts(Request{
		Prompt: "describe",
		Images: []Image{{MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	})
	require.Len(t, got, 2)
	blob, ok := got[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", blob.MIMEType)
	assert.Equal(t, genai.Text("describe"), got[1])
}

func TestParts_EmptyRequestStillHasText(t *testing.T) {
	got := parts(Request{})
	require.Len(t, got, 1)
	assert.Equal(t, genai.Text(""), got[0])
}

func TestFromSDKResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"name":`), genai.Text(`"Ada"}`)}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 4},
	}
	out, err := fromSDKResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, out.Text)
	assert.Equal(t, int32(12), out.Usage.PromptTokens)
	assert.Equal(t, int32(4), out.Usage.CandidateTokens)
}

func TestFromSDKResponse_Empty(t *testing.T) {
	_, err := fromSDKResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
	_, err = fromSDKResponse(nil)
	assert.Error(t, err)
}
