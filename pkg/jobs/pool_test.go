package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushi-Mampfer/notes/dto"
)

func TestPoolProcessesSubmittedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[uuid.UUID]bool)
	done := make(chan struct{}, 8)

	pool := NewPool(2, 8, func(ctx context.Context, msg dto.JobMessage) error {
		mu.Lock()
		seen[msg.JobId] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	pool.Start(ctx)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, pool.Submit(ctx, dto.JobMessage{JobId: ids[i]}))
	}

	for range ids {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs not processed in time")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.True(t, seen[id])
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	ctx := context.Background()

	// Workers never started, so the queue fills up.
	pool := NewPool(1, 2, func(ctx context.Context, msg dto.JobMessage) error { return nil })

	require.NoError(t, pool.Submit(ctx, dto.JobMessage{JobId: uuid.New()}))
	require.NoError(t, pool.Submit(ctx, dto.JobMessage{JobId: uuid.New()}))
	assert.ErrorIs(t, pool.Submit(ctx, dto.JobMessage{JobId: uuid.New()}), ErrQueueFull)
}

func TestWorkersStopOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	pool := NewPool(3, 3, func(ctx context.Context, msg dto.JobMessage) error { return nil })
	pool.Start(ctx)

	cancel()

	stopped := make(chan struct{})
	go func() {
		pool.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
}
