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
	done := make(chan string, 1)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "roster"}))
	select {
	case id := <-done:
		assert.Equal(t, "job-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueRetriesThenReportsExhaustion(t *testing.T) {
	var attempts int32
	exhausted := make(chan Job, 1)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("render failed")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		OnExhausted: func(ctx context.Context, job Job, err error) {
			exhausted <- job
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))
	select {
	case job := <-exhausted:
		assert.Equal(t, "job-2", job.ID)
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("exhaustion was not reported")
	}
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("exports", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "x"}), ErrQueueNotStarted)
	assert.Zero(t, q.Pending())
}

func TestQueueEnqueueFailsFastWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "waiting"}))

	err := q.Enqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.Pending())
}

func TestQueueRecoversPanickingHandler(t *testing.T) {
	exhausted := make(chan error, 1)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		panic("boom")
	}, QueueConfig{
		Workers:     1,
		MaxRetries:  1,
		RetryDelay:  5 * time.Millisecond,
		OnExhausted: func(ctx context.Context, job Job, err error) { exhausted <- err },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-3"}))
	select {
	case err := <-exhausted:
		assert.Contains(t, err.Error(), "panicked: boom")
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not converted into a failure")
	}
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue("exports", func(ctx context.Context, job Job) error { return nil }, QueueConfig{BufferSize: 4})
	q.Start(context.Background())
	q.Stop()

	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueStopped)
	assert.Zero(t, q.Pending())
}
