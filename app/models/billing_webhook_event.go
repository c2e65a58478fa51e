package models

import "time"

// BillingWebhookEvent records every gateway callback with deduplication
// metadata. The unique (payment_id, status) pair identifies redelivered
// webhooks; ProcessedAt and ProcessingError decide whether a redelivery is a
// harmless duplicate or a retry that still has work to do.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	PaymentID       string     `gorm:"type:varchar(191);not null;index:ux_billing_webhook_events_payment_status,unique,priority:1" json:"payment_id"`
	Status          string     `gorm:"type:varchar(32);not null;index:ux_billing_webhook_events_payment_status,unique,priority:2" json:"status"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the BillingWebhookEvent model
func (BillingWebhookEvent) TableName() string {
	return "billing_webhook_events"
}

// Processed reports whether a prior delivery of this event finished without
// error. Redeliveries of unprocessed or failed events must be handled again;
// only a completed delivery makes the redelivery a true duplicate.
func (e *BillingWebhookEvent) Processed() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
