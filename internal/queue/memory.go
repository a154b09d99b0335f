package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("queue is closed")

// MemoryDispatcher is the in-process queue used in development and
// tests. Jobs are buffered on a channel and handled by Consume.
type MemoryDispatcher struct {
	jobs   chan DocumentJob
	log    *zap.Logger
	once   sync.Once
	closed chan struct{}
}

func NewMemoryDispatcher(bufferSize int, log *zap.Logger) *MemoryDispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &MemoryDispatcher{
		jobs:   make(chan DocumentJob, bufferSize),
		log:    log,
		closed: make(chan struct{}),
	}
}

func (d *MemoryDispatcher) Dispatch(ctx context.Context, job DocumentJob) error {
	select {
	case <-d.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case d.jobs <- job:
		return nil
	}
}

// Consume blocks and handles jobs until the context is cancelled or
// the dispatcher is closed. Handler failures are logged and the job is
// dropped; the in-memory driver has no redelivery.
func (d *MemoryDispatcher) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.closed:
			return nil
		case job := <-d.jobs:
			if err := handler(ctx, job); err != nil {
				d.log.Error("document job failed",
					zap.String("document_id", job.DocumentID.String()),
					zap.Error(err))
			}
		}
	}
}

func (d *MemoryDispatcher) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}
