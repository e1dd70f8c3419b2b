package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/progress"
	"github.com/sells-group/extract-relay/internal/server"
)

func TestShutdown_ClosesStreamsAndDrainsJobs(t *testing.T) {
	hub := progress.NewHub(progress.DefaultBuffer)
	dispatcher := job.NewDispatcher(job.NewRegistry(), hub)
	env := &relayEnv{
		Server:     server.New(server.Deps{Hub: hub, Dispatcher: dispatcher}),
		Dispatcher: dispatcher,
	}

	ts := httptest.NewUnstartedServer(env.Server.Handler())
	ts.Config.RegisterOnShutdown(env.Server.CloseStreams)
	ts.Start()

	// A stream for an id that never finishes.
	resp, err := http.Get(ts.URL + "/v1/progress/never")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Eventually(t, func() bool { return hub.Subscribers("never") == 1 }, time.Second, 5*time.Millisecond)

	j, err := dispatcher.Registry().Create("", "owner", model.JobKindSchema)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Spawn(j.ID, job.Task{
		Run: func(ctx context.Context, _ *progress.Reporter) (any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	start := time.Now()
	require.NoError(t, shutdown(ts.Config, env, 3*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)

	got, ok := dispatcher.Registry().Get(j.ID)
	require.True(t, ok)
	assert.Equal(t, model.JobStatusCompleted, got.Status)

	_, err = io.ReadAll(resp.Body)
	assert.NoError(t, err)
}
