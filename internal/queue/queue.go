package queue

import (
	"context"

	"github.com/google/uuid"
)

// DocumentJob asks the pipeline to process an uploaded document.
type DocumentJob struct {
	DocumentID uuid.UUID `json:"document_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
}

// Handler processes a single job. Returning an error leaves the job
// unacknowledged so the broker can redeliver it.
type Handler func(ctx context.Context, job DocumentJob) error

// Dispatcher hands document jobs to a background consumer.
type Dispatcher interface {
	Dispatch(ctx context.Context, job DocumentJob) error
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
