package models

import "time"

const (
	TransactionStatusPending = "pending"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

// PaymentTransaction mirrors a gateway transaction reported through a
// callback. Rows are the durable record; the Redis payment session cache is
// only a TTL-bound lookup convenience for return-URL handlers.
type PaymentTransaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Gateway        string    `gorm:"type:varchar(20);not null;index:ux_payment_transactions_gateway_txn,unique,priority:1" json:"gateway"`
	TransactionID  string    `gorm:"type:varchar(191);not null;index:ux_payment_transactions_gateway_txn,unique,priority:2" json:"transaction_id"`
	ReferenceID    string    `gorm:"type:varchar(191);not null;index" json:"reference_id"`
	InvoiceID      string    `gorm:"type:varchar(50);not null;index" json:"invoice_id"`
	Amount         string    `gorm:"type:varchar(20);not null" json:"amount"`
	Currency       string    `gorm:"type:varchar(3);not null;default:'CZK'" json:"currency"`
	Status         string    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RawPayloadJSON string    `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFinal reports whether the gateway already delivered a terminal outcome.
func (t *PaymentTransaction) IsFinal() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}
