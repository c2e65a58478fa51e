package models

import (
	"testing"
	"time"
)

func TestBillingWebhookEventProcessed(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name            string
		processedAt     *time.Time
		processingError string
		want            bool
	}{
		{"never attempted", nil, "", false},
		{"completed cleanly", &now, "", true},
		{"attempt failed", &now, "billing gateway lookup failed: status=502", false},
		{"error without timestamp", nil, "context deadline exceeded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := BillingWebhookEvent{
				PaymentID:       "pay-001",
				Status:          "Paid",
				ProcessedAt:     tt.processedAt,
				ProcessingError: tt.processingError,
			}
			if got := event.Processed(); got != tt.want {
				t.Errorf("Processed() = %v, want %v", got, tt.want)
			}
		})
	}
}
