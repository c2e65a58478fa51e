package models

import "time"

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusCancel = "cancel"
)

// PaymentLedgerEntry is one immutable billing event: a captured charge or the
// reversal written when that charge is cancelled. Rows are only ever appended;
// a cancellation is a new row with the negated amount, never an update.
type PaymentLedgerEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TransactionKey string    `gorm:"type:varchar(191);not null;index:idx_payment_ledger_txkey" json:"transaction_key"`
	UserID         string    `gorm:"type:varchar(191);not null;index:idx_payment_ledger_user" json:"user_id"`
	Amount         int64     `gorm:"not null" json:"amount"`
	Status         string    `gorm:"type:varchar(16);not null" json:"status"`
	StartAt        time.Time `gorm:"type:timestamp;not null" json:"start_at"`
	EndAt          time.Time `gorm:"type:timestamp;not null" json:"end_at"`
	EndGraceAt     time.Time `gorm:"type:timestamp;not null" json:"end_grace_at"`
	NextScheduleAt time.Time `gorm:"type:timestamp;not null" json:"next_schedule_at"`
	NextScheduleID string    `gorm:"type:varchar(191);not null" json:"next_schedule_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for the PaymentLedgerEntry model
func (PaymentLedgerEntry) TableName() string {
	return "payment_ledger_entries"
}

// IsActiveAt reports whether this entry grants subscription access at the
// given instant. Boundaries are inclusive on both ends (UTC comparison).
func (e *PaymentLedgerEntry) IsActiveAt(now time.Time) bool {
	if e.Status != PaymentStatusPaid {
		return false
	}
	return !now.Before(e.StartAt) && !now.After(e.EndGraceAt)
}

// Reversal builds the cancellation entry for this charge: same transaction
// key and period/schedule fields, negated amount, status cancel.
func (e *PaymentLedgerEntry) Reversal() *PaymentLedgerEntry {
	return &PaymentLedgerEntry{
		TransactionKey: e.TransactionKey,
		UserID:         e.UserID,
		Amount:         -e.Amount,
		Status:         PaymentStatusCancel,
		StartAt:        e.StartAt,
		EndAt:          e.EndAt,
		EndGraceAt:     e.EndGraceAt,
		NextScheduleAt: e.NextScheduleAt,
		NextScheduleID: e.NextScheduleID,
	}
}
