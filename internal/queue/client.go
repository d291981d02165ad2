package queue

import (
	"context"
	"errors"
)

var (
	// ErrQueueFull is returned when a job cannot be accepted without blocking.
	ErrQueueFull = errors.New("job queue is full")
	// ErrClosed is returned by Send after the queue has been closed.
	ErrClosed = errors.New("job queue is closed")
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Handler runs one job.
type Handler func(ctx context.Context, msg Message) error
