package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sushi-Mampfer/notes/dto"
)

// ErrQueueFull is returned by Submit when the backlog limit is reached;
// the caller sheds load instead of spawning unbounded inference calls.
var ErrQueueFull = errors.New("job queue full")

// Pool runs submitted jobs on a fixed number of workers fed by a
// fixed-capacity queue.
type Pool struct {
	queue   chan dto.JobMessage
	workers int
	handler func(ctx context.Context, msg dto.JobMessage) error
	wg      sync.WaitGroup
}

func NewPool(workers, capacity int, handler func(ctx context.Context, msg dto.JobMessage) error) *Pool {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		queue:   make(chan dto.JobMessage, capacity),
		workers: workers,
		handler: handler,
	}
}

// Start launches the workers. They drain the queue until ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go func(workerId int) {
			defer p.wg.Done()
			for {
				select {
				case msg := <-p.queue:
					if err := p.handler(ctx, msg); err != nil {
						zerolog.Ctx(ctx).Error().Err(err).
							Int("worker", workerId).
							Str("job_id", msg.JobId.String()).
							Msg("job failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
}

// Submit queues one job without blocking. Fails fast with ErrQueueFull
// when the queue is at capacity.
func (p *Pool) Submit(ctx context.Context, msg dto.JobMessage) error {
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers exited after their context was canceled.
func (p *Pool) Wait() {
	p.wg.Wait()
}
