package batchworker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

func TestPoolRunsTasks(t *testing.T) {
	pool := NewPool(2, 4, logging.Discard())
	pool.Start(context.Background())
	defer pool.Stop()

	var ran int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(Task{
			Name: "count",
			Run: func(ctx context.Context) error {
				atomic.AddInt32(&ran, 1)
				done <- struct{}{}
				return nil
			},
		}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1, logging.Discard())
	pool.Start(context.Background())
	defer pool.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pool.Submit(Task{ID: "busy", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	require.NoError(t, pool.Submit(Task{ID: "queued", Run: func(ctx context.Context) error { return nil }}))
	err := pool.Submit(Task{ID: "overflow", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, pool.Cancel("overflow"))

	close(release)
}

func TestPoolCancelRunningTask(t *testing.T) {
	pool := NewPool(1, 1, logging.Discard())
	pool.Start(context.Background())
	defer pool.Stop()

	started := make(chan struct{})
	result := make(chan error, 1)
	require.NoError(t, pool.Submit(Task{ID: "job-1", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	}}))
	<-started

	assert.True(t, pool.Cancel("job-1"))
	select {
	case err := <-result:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("task did not observe cancellation")
	}
}

func TestPoolStopCancelsTasks(t *testing.T) {
	pool := NewPool(1, 2, logging.Discard())
	pool.Start(context.Background())

	started := make(chan struct{})
	var cancelled int32
	require.NoError(t, pool.Submit(Task{ID: "long", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		atomic.AddInt32(&cancelled, 1)
		return ctx.Err()
	}}))
	require.NoError(t, pool.Submit(Task{ID: "waiting", Run: func(ctx context.Context) error {
		if ctx.Err() != nil {
			atomic.AddInt32(&cancelled, 1)
		}
		return ctx.Err()
	}}))
	<-started

	pool.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&cancelled))
	assert.ErrorIs(t, pool.Submit(Task{Run: func(context.Context) error { return nil }}), ErrPoolClosed)
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool := NewPool(0, 0, nil)
	assert.ErrorIs(t, pool.Submit(Task{Run: func(context.Context) error { return nil }}), ErrPoolClosed)
	assert.Error(t, pool.Submit(Task{ID: "nil-run"}))
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewPool(1, 2, logging.Discard())
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, pool.Submit(Task{Run: func(context.Context) error { panic("boom") }}))
	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{Run: func(context.Context) error { close(done); return nil }}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}
