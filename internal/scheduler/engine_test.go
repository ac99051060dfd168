package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Lifecycle(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddJob("noop", "@every 1h", func(ctx context.Context) {}))

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	assert.True(t, e.IsRunning())

	// Starting twice is a no-op.
	require.NoError(t, e.Start(ctx))

	require.NoError(t, e.Stop(ctx))
	assert.False(t, e.IsRunning())
}

func TestEngine_RejectsJobsAfterStart(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop(context.Background())

	err := e.AddJob("late", "@every 1s", func(ctx context.Context) {})
	assert.Error(t, err)
}

func TestEngine_RejectsInvalidSpec(t *testing.T) {
	e := NewEngine()
	err := e.AddJob("bad", "not a schedule", func(ctx context.Context) {})
	assert.Error(t, err)
}

func TestEngine_RunsJobs(t *testing.T) {
	e := NewEngine()
	var runs atomic.Int64
	require.NoError(t, e.AddJob("tick", "@every 100ms", func(ctx context.Context) {
		runs.Add(1)
	}))

	require.NoError(t, e.Start(context.Background()))
	defer e.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && runs.Load() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Greater(t, runs.Load(), int64(0))
}

func TestEngine_JobsStopAfterStop(t *testing.T) {
	e := NewEngine()
	var runs atomic.Int64
	require.NoError(t, e.AddJob("tick", "@every 50ms", func(ctx context.Context) {
		runs.Add(1)
	}))

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, e.Stop(context.Background()))

	snapshot := runs.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, snapshot, runs.Load())
}
