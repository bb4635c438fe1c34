package jobqueue

import (
	"context"
	"fmt"
)

// processMarkInvoicePaidJob runs the queued mark-paid compensation. The
// runner tolerates already-paid lifecycles, so sweeper-recovered duplicates
// complete cleanly.
func (q *Queue) processMarkInvoicePaidJob(ctx context.Context, job *Job) error {
	if q.markPaid == nil {
		return fmt.Errorf("mark-paid processor not configured")
	}

	payload, err := MarkInvoicePaidJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid mark-paid payload: %w", err)
	}
	if payload.CorrelationID == "" {
		return fmt.Errorf("mark-paid payload missing correlation id")
	}

	return q.markPaid.MarkPaidFromLifecycle(ctx, payload.CorrelationID)
}

// processAccountingSyncJob pushes one paid invoice into the accounting
// system.
func (q *Queue) processAccountingSyncJob(ctx context.Context, job *Job) error {
	if q.syncer == nil {
		return fmt.Errorf("accounting sync processor not configured")
	}

	payload, err := AccountingSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid accounting sync payload: %w", err)
	}
	if payload.InvoiceID == "" {
		return fmt.Errorf("accounting sync payload missing invoice id")
	}

	return q.syncer.SyncPaidInvoice(ctx, payload.InvoiceID)
}

// Enqueuer exposes the queue under the narrow interface the payment service
// uses for follow-up work.
type Enqueuer struct {
	queue *Queue
}

// NewEnqueuer wraps a queue for the payment service.
func NewEnqueuer(q *Queue) *Enqueuer {
	return &Enqueuer{queue: q}
}

// EnqueueMarkInvoicePaid queues the mark-paid compensation for a lifecycle.
func (e *Enqueuer) EnqueueMarkInvoicePaid(correlationID string) error {
	_, err := e.queue.EnqueueJob(JobTypeMarkInvoicePaid, MarkInvoicePaidJobPayload{
		CorrelationID: correlationID,
	}.ToMap())
	return err
}

// EnqueueAccountingSync queues the accounting export for a paid invoice.
func (e *Enqueuer) EnqueueAccountingSync(invoiceID string) error {
	_, err := e.queue.EnqueueJob(JobTypeAccountingSync, AccountingSyncJobPayload{
		InvoiceID: invoiceID,
	}.ToMap())
	return err
}
