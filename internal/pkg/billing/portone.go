package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sumin-dev/Magpie/internal/pkg/env"
)

const defaultPortOneAPIBaseURL = "https://api.portone.io"

// PortOneClient wraps the PortOne V2 payment API operations the billing core
// needs: payment lookup, charge scheduling, schedule listing/cancellation and
// charge cancellation. All calls authenticate with the store API secret.
type PortOneClient struct {
	APIBaseURL string
	APISecret  string

	HTTPClient *http.Client
}

// PaymentDetails is the subset of a gateway payment object the billing core
// consumes. CustomData carries the internal user id through the gateway
// round-trip so an asynchronous charge can be correlated back to a user.
type PaymentDetails struct {
	ID             string
	TransactionKey string
	Amount         int64
	Currency       string
	OrderName      string
	BillingKey     string
	CustomerID     string
	CustomData     string
}

// ScheduleChargeRequest registers a future billing-key charge under
// ScheduleID (the payment id the gateway will assign the charge when it
// fires).
type ScheduleChargeRequest struct {
	ScheduleID string
	BillingKey string
	OrderName  string
	CustomerID string
	Amount     int64
	Currency   string
	FireAt     time.Time
	CustomData string
}

// ScheduleItem is one gateway-side registration of a future charge.
type ScheduleItem struct {
	ID        string
	PaymentID string
	FireAt    time.Time
}

// NewPortOneClientFromEnv builds a client from PORTONE_API_SECRET and an
// optional PORTONE_API_BASE_URL override. A missing secret surfaces as a
// ConfigurationError on first use rather than a silent empty header.
func NewPortOneClientFromEnv() *PortOneClient {
	return &PortOneClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("PORTONE_API_BASE_URL", defaultPortOneAPIBaseURL), "/"),
		APISecret:  strings.TrimSpace(env.GetEnv("PORTONE_API_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *PortOneClient) do(ctx context.Context, op, method, path string, query url.Values, payload any) (int, []byte, error) {
	if strings.TrimSpace(c.APISecret) == "" {
		return 0, nil, &ConfigurationError{Key: "PORTONE_API_SECRET"}
	}

	u := c.APIBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, &GatewayError{Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "PortOne "+c.APISecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, raw, nil
}

// GetPayment fetches a captured payment by id.
func (c *PortOneClient) GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, &GatewayError{Op: GatewayOpLookup, Err: errors.New("payment id is required")}
	}

	status, raw, err := c.do(ctx, GatewayOpLookup, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &GatewayError{Op: GatewayOpLookup, StatusCode: status, Body: string(raw)}
	}

	type rawResponse struct {
		ID            string `json:"id"`
		TransactionID string `json:"transactionId"`
		OrderName     string `json:"orderName"`
		BillingKey    string `json:"billingKey"`
		Currency      string `json:"currency"`
		CustomData    string `json:"customData"`
		Amount        struct {
			Total int64 `json:"total"`
		} `json:"amount"`
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	var out rawResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: GatewayOpLookup, Err: err}
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, &GatewayError{Op: GatewayOpLookup, Err: errors.New("payment response missing id")}
	}

	return &PaymentDetails{
		ID:             out.ID,
		TransactionKey: out.TransactionID,
		Amount:         out.Amount.Total,
		Currency:       out.Currency,
		OrderName:      out.OrderName,
		BillingKey:     out.BillingKey,
		CustomerID:     out.Customer.ID,
		CustomData:     out.CustomData,
	}, nil
}

// ScheduleCharge registers a future charge. The gateway requires the full
// billing key / order name / customer triple; an incomplete one is rejected
// locally before the call goes out.
func (c *PortOneClient) ScheduleCharge(ctx context.Context, req ScheduleChargeRequest) error {
	if strings.TrimSpace(req.ScheduleID) == "" ||
		strings.TrimSpace(req.BillingKey) == "" ||
		strings.TrimSpace(req.OrderName) == "" ||
		strings.TrimSpace(req.CustomerID) == "" {
		return &GatewayError{Op: GatewayOpSchedule, Err: errors.New("schedule id, billing key, order name and customer id are required")}
	}

	payload := map[string]any{
		"payment": map[string]any{
			"billingKey": req.BillingKey,
			"orderName":  req.OrderName,
			"customer":   map[string]any{"id": req.CustomerID},
			"amount":     map[string]any{"total": req.Amount},
			"currency":   req.Currency,
			"customData": req.CustomData,
		},
		"timeToPay": req.FireAt.UTC().Format(time.RFC3339),
	}

	status, raw, err := c.do(ctx, GatewayOpSchedule, http.MethodPost,
		"/payments/"+url.PathEscape(req.ScheduleID)+"/schedule", nil, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &GatewayError{Op: GatewayOpSchedule, StatusCode: status, Body: string(raw)}
	}
	return nil
}

// ListSchedules returns schedule items whose fire time falls in
// [from, until]. The gateway cannot look a schedule up by id in all cases, so
// callers search by the approximate time recorded in the ledger.
func (c *PortOneClient) ListSchedules(ctx context.Context, billingKey string, from, until time.Time) ([]ScheduleItem, error) {
	q := url.Values{}
	q.Set("billingKey", billingKey)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("until", until.UTC().Format(time.RFC3339))

	status, raw, err := c.do(ctx, GatewayOpLookup, http.MethodGet, "/payment-schedules", q, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &GatewayError{Op: GatewayOpLookup, StatusCode: status, Body: string(raw)}
	}

	type rawResponse struct {
		Items []struct {
			ID        string    `json:"id"`
			PaymentID string    `json:"paymentId"`
			TimeToPay time.Time `json:"timeToPay"`
		} `json:"items"`
	}
	var out rawResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &GatewayError{Op: GatewayOpLookup, Err: err}
	}

	items := make([]ScheduleItem, 0, len(out.Items))
	for _, item := range out.Items {
		items = append(items, ScheduleItem{
			ID:        item.ID,
			PaymentID: item.PaymentID,
			FireAt:    item.TimeToPay,
		})
	}
	return items, nil
}

// CancelSchedules revokes pending schedule registrations. Empty input is a
// no-op so callers need not special-case "nothing to cancel".
func (c *PortOneClient) CancelSchedules(ctx context.Context, scheduleIDs []string) error {
	if len(scheduleIDs) == 0 {
		return nil
	}

	payload := map[string]any{"scheduleIds": scheduleIDs}
	status, raw, err := c.do(ctx, GatewayOpCancel, http.MethodDelete, "/payment-schedules", nil, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &GatewayError{Op: GatewayOpCancel, StatusCode: status, Body: string(raw)}
	}
	return nil
}

// CancelCharge cancels an already-captured charge. A 409 whose error type
// reports the payment as already cancelled counts as success, which makes
// user-triggered cancellation safe to retry.
func (c *PortOneClient) CancelCharge(ctx context.Context, paymentID, reason string) error {
	if strings.TrimSpace(paymentID) == "" {
		return &GatewayError{Op: GatewayOpCancel, Err: errors.New("payment id is required")}
	}

	payload := map[string]any{"reason": reason}
	status, raw, err := c.do(ctx, GatewayOpCancel, http.MethodPost,
		"/payments/"+url.PathEscape(paymentID)+"/cancel", nil, payload)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusConflict && isAlreadyCancelled(raw) {
		return nil
	}
	return &GatewayError{Op: GatewayOpCancel, StatusCode: status, Body: string(raw)}
}

func isAlreadyCancelled(raw []byte) bool {
	var body struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	return strings.EqualFold(body.Type, "PAYMENT_ALREADY_CANCELLED")
}

// String implements fmt.Stringer without leaking the API secret into logs.
func (c *PortOneClient) String() string {
	return fmt.Sprintf("PortOneClient{base=%s}", c.APIBaseURL)
}
