package billing

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Webhook statuses as the gateway sends them.
const (
	WebhookStatusPaid      = "Paid"
	WebhookStatusCancelled = "Cancelled"
)

// Gateway is the payment gateway surface the billing service consumes.
// PortOneClient is the production implementation; tests supply fakes.
type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error)
	ScheduleCharge(ctx context.Context, req ScheduleChargeRequest) error
	ListSchedules(ctx context.Context, billingKey string, from, until time.Time) ([]ScheduleItem, error)
	CancelSchedules(ctx context.Context, scheduleIDs []string) error
	CancelCharge(ctx context.Context, paymentID, reason string) error
}

// Subscription is the resolved billing state for one user.
type Subscription struct {
	IsSubscribed   bool   `json:"isSubscribed"`
	TransactionKey string `json:"transactionKey,omitempty"`
}

// customData is the typed payload carried through the gateway round-trip.
// The gateway treats it as opaque; we use it to identify the subscriber when
// the charge comes back asynchronously.
type customData struct {
	UserID string `json:"userId"`
}

// EncodeCustomData serializes the user id for attachment to a charge.
func EncodeCustomData(userID string) string {
	raw, _ := json.Marshal(customData{UserID: userID})
	return string(raw)
}

// DecodeCustomData extracts the user id from a payment's custom data.
// Absent or malformed data is fatal for webhook processing.
func DecodeCustomData(raw string) (string, error) {
	var data customData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", ErrMissingUserID
	}
	if strings.TrimSpace(data.UserID) == "" {
		return "", ErrMissingUserID
	}
	return data.UserID, nil
}
