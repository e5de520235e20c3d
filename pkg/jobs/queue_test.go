package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueProcessesAllJobs(t *testing.T) {
	var processed int32
	var succeeded []string
	var mu sync.Mutex

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{
		Workers: 3,
		Logger:  zap.NewNop(),
		OnSuccess: func(job Job) {
			mu.Lock()
			succeeded = append(succeeded, job.ID)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "batch"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	assert.Equal(t, int32(4), atomic.LoadInt32(&processed))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, succeeded)
}

func TestQueueRetriesThenFails(t *testing.T) {
	var attempts int32
	failure := errors.New("upstream 503")
	var failedJob Job
	var failedErr error

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return failure
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnFailure: func(job Job, err error) {
			failedJob = job
			failedErr = err
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "batch-1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, "batch-1", failedJob.ID)
	assert.Equal(t, 3, failedJob.Attempt)
	assert.ErrorIs(t, failedErr, failure)
}

func TestQueueRetrySucceeds(t *testing.T) {
	var attempts int32
	var successes int32

	q := NewQueue("flaky", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		OnSuccess:  func(Job) { atomic.AddInt32(&successes, 1) },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "batch-1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&successes))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "x"})
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, q.Wait(ctx))
}

func TestQueuePermanentErrorSkipsRetries(t *testing.T) {
	var attempts int32
	rejected := errors.New("status 422")
	var failedErr error

	q := NewQueue("permanent", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return Permanent(rejected)
	}, QueueConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		OnFailure:  func(_ Job, err error) { failedErr = err },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "batch-1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Equal(t, rejected, failedErr)
	assert.Nil(t, Permanent(nil))
}
