package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModality_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, ModalityText.Valid())
	assert.True(t, ModalityImage.Valid())
	assert.False(t, Modality("audio").Valid())
	assert.False(t, Modality("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusAccepted, false},
		{JobStatusProcessing, false},
		{JobStatusRejected, true},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.Terminal())
		})
	}
}

func TestProgressStep_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []ProgressStep{StepCompleted, StepRejected, StepError} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []ProgressStep{StepAccepted, StepExtracting, StepItemDone, StepEstimating, StepLookup, StepScaling, StepDelivering} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestItemResult_FailedResponseIsNull(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(ItemResult{JobID: "j", SessionID: "s", FileID: "f", Status: ItemStatusFailed, Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobId":"j","sessionId":"s","fileId":"f","status":"failed","response":null,"error":"boom"}`, string(out))
}

func TestProgressEvent_PercentOmitted(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(ProgressEvent{JobID: "j", Step: StepAccepted})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "percent")

	out, err = json.Marshal(ProgressEvent{JobID: "j", Step: StepScaling, Percent: Pct(0)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"percent":0`)
}
