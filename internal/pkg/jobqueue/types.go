package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeMarkInvoicePaid JobType = "mark_invoice_paid"
	JobTypeAccountingSync  JobType = "accounting_sync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// MarkInvoicePaidJobPayload carries the lifecycle correlation id for the
// queued mark-paid compensation step.
type MarkInvoicePaidJobPayload struct {
	CorrelationID string `json:"correlation_id"`
}

// ToMap converts the payload to a map for storage
func (p MarkInvoicePaidJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"correlation_id": p.CorrelationID,
	}
}

// MarkInvoicePaidJobPayloadFromMap creates a payload from a map
func MarkInvoicePaidJobPayloadFromMap(data map[string]interface{}) (*MarkInvoicePaidJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload MarkInvoicePaidJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// AccountingSyncJobPayload carries the invoice id for an accounting export.
type AccountingSyncJobPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// ToMap converts the payload to a map for storage
func (p AccountingSyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"invoice_id": p.InvoiceID,
	}
}

// AccountingSyncJobPayloadFromMap creates a payload from a map
func AccountingSyncJobPayloadFromMap(data map[string]interface{}) (*AccountingSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AccountingSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
