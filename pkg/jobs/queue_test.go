package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return nil
	}, QueueConfig{OnComplete: func(job Job, err error) { done <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("job not completed")
	}
}

func TestQueueNoRetryRunsOnce(t *testing.T) {
	var calls int32
	done := make(chan error, 1)
	q := NewQueue("once", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp down")
	}, QueueConfig{NoRetry: true, RetryDelay: time.Millisecond, OnComplete: func(job Job, err error) { done <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	select {
	case err := <-done:
		assert.EqualError(t, err, "smtp down")
	case <-time.After(time.Second):
		t.Fatal("job not completed")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond, OnComplete: func(job Job, err error) {
		if err == nil {
			done <- job
		}
	}})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	select {
	case job := <-done:
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(time.Second):
		t.Fatal("job not completed")
	}
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
}
