package jobqueue

import (
	"testing"
	"time"
)

func TestMarkInvoicePaidJobPayloadRoundTrip(t *testing.T) {
	payload := MarkInvoicePaidJobPayload{CorrelationID: "corr-1"}

	restored, err := MarkInvoicePaidJobPayloadFromMap(payload.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.CorrelationID != "corr-1" {
		t.Fatalf("expected correlation id corr-1, got %q", restored.CorrelationID)
	}
}

func TestAccountingSyncJobPayloadRoundTrip(t *testing.T) {
	payload := AccountingSyncJobPayload{InvoiceID: "2001"}

	restored, err := AccountingSyncJobPayloadFromMap(payload.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.InvoiceID != "2001" {
		t.Fatalf("expected invoice id 2001, got %q", restored.InvoiceID)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	job := &Job{
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
	}

	job.MarkAsProcessing()
	if job.Status != JobStatusProcessing {
		t.Fatalf("expected processing, got %s", job.Status)
	}
	if job.ProcessedAt == nil {
		t.Fatal("expected ProcessedAt to be set")
	}

	job.MarkAsFailed("upstream timeout")
	if job.Status != JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", job.RetryCount)
	}
	if !job.IsRetryable() {
		t.Fatal("expected job to be retryable")
	}

	job.MarkAsCompleted()
	if job.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.ErrorMsg != "" {
		t.Fatalf("expected error message cleared, got %q", job.ErrorMsg)
	}
	if job.CompletedAt == nil || time.Since(*job.CompletedAt) > time.Minute {
		t.Fatal("expected fresh CompletedAt")
	}
}

func TestJobNotRetryableAfterMaxRetries(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsFailed("one")
	job.MarkAsFailed("two")
	if job.IsRetryable() {
		t.Fatal("expected job exhausted after max retries")
	}
}
