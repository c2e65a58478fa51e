package models

import (
	"testing"
	"time"
)

func TestPaymentLedgerEntryIsActiveAt(t *testing.T) {
	startAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	graceAt := time.Date(2026, 4, 1, 14, 59, 59, 0, time.UTC)

	entry := PaymentLedgerEntry{
		Status:     PaymentStatusPaid,
		StartAt:    startAt,
		EndAt:      startAt.Add(30 * 24 * time.Hour),
		EndGraceAt: graceAt,
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", startAt.Add(-time.Second), false},
		{"exactly at start", startAt, true},
		{"mid period", startAt.Add(15 * 24 * time.Hour), true},
		{"exactly at grace end", graceAt, true},
		{"after grace end", graceAt.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsActiveAt(tt.now); got != tt.want {
				t.Errorf("IsActiveAt(%s) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestPaymentLedgerEntryCancelledNeverActive(t *testing.T) {
	startAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := PaymentLedgerEntry{
		Status:     PaymentStatusCancel,
		StartAt:    startAt,
		EndGraceAt: startAt.Add(31 * 24 * time.Hour),
	}

	if entry.IsActiveAt(startAt.Add(24 * time.Hour)) {
		t.Error("cancel row must not grant access inside its period")
	}
}

func TestPaymentLedgerEntryReversal(t *testing.T) {
	startAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	paid := PaymentLedgerEntry{
		ID:             7,
		TransactionKey: "tx-abc",
		UserID:         "google-108234",
		Amount:         9900,
		Status:         PaymentStatusPaid,
		StartAt:        startAt,
		EndAt:          startAt.Add(30 * 24 * time.Hour),
		EndGraceAt:     startAt.Add(31 * 24 * time.Hour),
		NextScheduleAt: startAt.Add(31 * 24 * time.Hour),
		NextScheduleID: "sched-42",
	}

	rev := paid.Reversal()

	if rev.ID != 0 {
		t.Error("reversal must be a fresh row, not reuse the paid row id")
	}
	if rev.Amount != -paid.Amount {
		t.Errorf("reversal amount = %d, want %d", rev.Amount, -paid.Amount)
	}
	if rev.Status != PaymentStatusCancel {
		t.Errorf("reversal status = %q, want %q", rev.Status, PaymentStatusCancel)
	}
	if rev.TransactionKey != paid.TransactionKey || rev.UserID != paid.UserID {
		t.Error("reversal must stay on the same transaction chain and user")
	}
	if !rev.EndGraceAt.Equal(paid.EndGraceAt) || !rev.NextScheduleAt.Equal(paid.NextScheduleAt) {
		t.Error("reversal must copy the period and schedule fields unchanged")
	}
}
