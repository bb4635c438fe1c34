package models

import "time"

const (
	LifecycleStateCreated           = "created"
	LifecycleStatePaymentInitiated  = "payment_initiated"
	LifecycleStatePaymentAuthorized = "payment_authorized"
	LifecycleStateInvoicePaid       = "invoice_paid"
	LifecycleStateFailed            = "failed"
)

// InvoiceLifecycle makes the order payment state machine explicit. Each row
// tracks one invoice from order creation to the acknowledged mark-paid call,
// keyed by a correlation id that travels through gateway reference ids and
// queue jobs.
type InvoiceLifecycle struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CorrelationID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"correlation_id"`
	OrderID       string    `gorm:"type:varchar(50);not null;index" json:"order_id"`
	InvoiceID     string    `gorm:"type:varchar(50);not null;index" json:"invoice_id"`
	UserID        uint      `gorm:"index" json:"user_id"`
	State         string    `gorm:"type:varchar(32);not null;default:'created';index" json:"state"`
	Gateway       string    `gorm:"type:varchar(20)" json:"gateway"`
	Amount        string    `gorm:"type:varchar(20)" json:"amount"`
	Currency      string    `gorm:"type:varchar(3);default:'CZK'" json:"currency"`
	LastError     string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// lifecycleTransitions lists the allowed forward edges of the state machine.
var lifecycleTransitions = map[string][]string{
	LifecycleStateCreated:           {LifecycleStatePaymentInitiated, LifecycleStateFailed},
	LifecycleStatePaymentInitiated:  {LifecycleStatePaymentAuthorized, LifecycleStateFailed},
	LifecycleStatePaymentAuthorized: {LifecycleStateInvoicePaid, LifecycleStateFailed},
}

// CanTransition reports whether moving from the current state to next is a
// legal edge. Re-entering the same state is allowed so retried jobs stay
// idempotent.
func (l *InvoiceLifecycle) CanTransition(next string) bool {
	if l.State == next {
		return true
	}
	for _, allowed := range lifecycleTransitions[l.State] {
		if allowed == next {
			return true
		}
	}
	return false
}
