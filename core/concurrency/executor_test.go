package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutorRunsAllTasks(t *testing.T) {
	e := NewExecutor(4, 64, RejectBlock)
	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		require.NoError(t, e.Submit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	e.Close()
	require.EqualValues(t, 1000, n.Load())
	require.EqualValues(t, 1000, e.Stats().Completed)
	require.Equal(t, 4, e.NumWorkers())
}

// blockWorkers occupies every worker until release is closed.
func blockWorkers(t *testing.T, e *Executor, workers int) chan struct{} {
	t.Helper()
	release := make(chan struct{})
	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, e.Submit(func() {
			started <- struct{}{}
			<-release
		}))
	}
	for i := 0; i < workers; i++ {
		<-started
	}
	return release
}

func TestExecutorAbortPolicy(t *testing.T) {
	e := NewExecutor(1, 2, RejectAbort)
	release := blockWorkers(t, e, 1)

	require.NoError(t, e.Submit(func() {}))
	require.NoError(t, e.Submit(func() {}))
	require.ErrorIs(t, e.Submit(func() {}), ErrPoolSaturated)
	require.EqualValues(t, 1, e.Stats().Rejected)

	close(release)
	e.Close()
}

func TestExecutorCallerRunsPolicy(t *testing.T) {
	e := NewExecutor(1, 2, RejectCallerRuns)
	release := blockWorkers(t, e, 1)
	require.NoError(t, e.Submit(func() {}))
	require.NoError(t, e.Submit(func() {}))

	done := false
	require.NoError(t, e.Submit(func() { done = true }))
	require.True(t, done, "saturated submission must run inline")
	require.EqualValues(t, 1, e.Stats().CallerRuns)

	close(release)
	e.Close()
}

func TestExecutorBlockPolicyWaitsForSpace(t *testing.T) {
	e := NewExecutor(1, 2, RejectBlock)
	release := blockWorkers(t, e, 1)
	require.NoError(t, e.Submit(func() {}))
	require.NoError(t, e.Submit(func() {}))

	submitted := make(chan error, 1)
	go func() { submitted <- e.Submit(func() {}) }()

	select {
	case <-submitted:
		t.Fatal("submit returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-submitted)
	e.Close()
}

func TestExecutorCloseDrainsQueue(t *testing.T) {
	e := NewExecutor(2, 128, RejectAbort)
	release := blockWorkers(t, e, 2)

	var ran atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, e.Submit(func() { ran.Add(1) }))
	}

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		return e.Submit(func() {}) == ErrExecutorClosed
	}, time.Second, time.Millisecond)

	close(release)
	<-closed
	require.EqualValues(t, 100, ran.Load())
	require.ErrorIs(t, e.Submit(func() {}), ErrExecutorClosed)
	e.Close()
}

func TestExecutorSurvivesPanics(t *testing.T) {
	e := NewExecutor(1, 4, RejectBlock)
	require.NoError(t, e.Submit(func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(done) }))
	<-done
	e.Close()
	require.EqualValues(t, 1, e.Stats().Panics)
}

func TestParseRejectPolicy(t *testing.T) {
	for in, want := range map[string]RejectPolicy{
		"abort":       RejectAbort,
		"Caller-Runs": RejectCallerRuns,
		"":            RejectCallerRuns,
		"block":       RejectBlock,
	} {
		got, err := ParseRejectPolicy(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
		if in != "" && in != "Caller-Runs" {
			require.Equal(t, in, got.String())
		}
	}
	_, err := ParseRejectPolicy("sometimes")
	require.Error(t, err)
}
