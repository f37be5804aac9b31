package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushi-Mampfer/notes/config"
	"github.com/Sushi-Mampfer/notes/dto"
	"github.com/Sushi-Mampfer/notes/handler"
	"github.com/Sushi-Mampfer/notes/service"
)

type pipelineStub struct {
	mu        sync.Mutex
	processed []dto.JobMessage
}

func (p *pipelineStub) Process(ctx context.Context, msg dto.JobMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, msg)
	return nil
}

func (p *pipelineStub) RequeuePending(ctx context.Context, submit service.Submitter) error {
	return nil
}

func TestWireSubmitterCompletesDepsBeforeWorkersRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stub := &pipelineStub{}
	cfg := &config.Config{Server: config.Server{Workers: 2, QueueCapacity: 4}}

	deps, err := wireSubmitter(ctx, cfg, handler.ServiceDependencies{Pipeline: stub})
	require.NoError(t, err)
	require.NotNil(t, deps.Submit, "workers must never observe half-built dependencies")

	msg := dto.JobMessage{JobId: uuid.New(), EntryId: 1, ObjectPath: "a.wav"}
	require.NoError(t, deps.Submit.Submit(ctx, msg))
	assert.Eventually(t, func() bool {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		return len(stub.processed) == 1
	}, time.Second, 10*time.Millisecond)
}
