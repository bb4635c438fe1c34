package models

import "time"

// PaymentWebhookEvent persists gateway callback payloads idempotently.
// Uniqueness over (gateway, provider_event_id) makes redelivered callbacks
// no-ops.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Gateway         string     `gorm:"type:varchar(20);not null;index:ux_payment_webhook_events_gateway_event,unique,priority:1" json:"gateway"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_payment_webhook_events_gateway_event,priority:2,unique" json:"provider_event_id"`
	PayloadJSON     string     `gorm:"type:longtext" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
