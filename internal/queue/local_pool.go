package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"studydocs-backend/internal/shared/telemetry"
)

// LocalPool runs jobs on a fixed set of goroutines inside the API process.
// Send never blocks; a full buffer rejects the job with ErrQueueFull.
type LocalPool struct {
	handler Handler
	jobs    chan Message

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocalPool starts workers goroutines consuming a buffer of the given size.
func NewLocalPool(handler Handler, workers, buffer int) *LocalPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &LocalPool{
		handler: handler,
		jobs:    make(chan Message, buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	return p
}

// Send queues msg for processing.
func (p *LocalPool) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued and running ones to finish.
// When ctx expires first, running jobs see their context cancelled.
func (p *LocalPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *LocalPool) work(worker int) {
	defer p.wg.Done()
	for msg := range p.jobs {
		p.run(worker, msg)
	}
}

func (p *LocalPool) run(worker int, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("job.panic", map[string]any{
				"worker":      worker,
				"document_id": msg.DocumentID,
				"request_id":  msg.RequestID,
				"error":       fmt.Sprint(rec),
				"stack":       string(debug.Stack()),
			})
		}
	}()

	if err := p.handler(p.ctx, msg); err != nil {
		telemetry.Error("job.failed", map[string]any{
			"worker":      worker,
			"document_id": msg.DocumentID,
			"request_id":  msg.RequestID,
			"error":       err.Error(),
		})
	}
}

var _ Client = (*LocalPool)(nil)
