package billing

import (
	"errors"
	"fmt"
)

// Error taxonomy for the billing core. Controllers map these onto HTTP
// status codes; the concrete detail stays in server logs.
var (
	// ErrNotFound is returned when a ledger lookup scoped to a user finds
	// nothing. Deliberately indistinguishable from "exists but not yours".
	ErrNotFound = errors.New("billing: ledger entry not found")

	// ErrNoLedgerEntry is returned when a cancellation webhook references a
	// transaction key with no ledger history at all.
	ErrNoLedgerEntry = errors.New("billing: no ledger entry for transaction key")

	// ErrScheduleDrift is returned when the gateway schedule listing does not
	// contain the schedule recorded in the ledger. Local and gateway state
	// have diverged and need operator reconciliation.
	ErrScheduleDrift = errors.New("billing: scheduled charge not found at gateway")

	// ErrDuplicateWebhook is returned when a webhook for the same
	// (payment_id, status) pair was already recorded.
	ErrDuplicateWebhook = errors.New("billing: duplicate webhook delivery")

	// ErrMissingUserID is returned when a payment's custom data does not
	// carry the internal user id.
	ErrMissingUserID = errors.New("billing: payment custom data missing user id")
)

// ValidationError marks a malformed request body.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "billing: invalid request: " + e.Msg }

// ConfigurationError marks missing required environment configuration.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("billing: required configuration %s is not set", e.Key)
}

// Gateway operation names used in GatewayError.
const (
	GatewayOpLookup   = "lookup"
	GatewayOpSchedule = "schedule"
	GatewayOpCancel   = "cancel"
)

// GatewayError wraps a non-2xx gateway response with enough context to log.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("billing gateway %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("billing gateway %s failed: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }
