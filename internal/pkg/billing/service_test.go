package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumin-dev/Magpie/app/models"
)

type fakeRepository struct {
	entries []models.PaymentLedgerEntry
	events  map[string]*models.BillingWebhookEvent
	nextID  uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{events: make(map[string]*models.BillingWebhookEvent)}
}

func (r *fakeRepository) AppendEntry(entry *models.PaymentLedgerEntry) error {
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeRepository) ListEntriesByUser(userID string) ([]models.PaymentLedgerEntry, error) {
	var out []models.PaymentLedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeRepository) LatestEntryByTransactionKey(transactionKey string) (*models.PaymentLedgerEntry, error) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TransactionKey == transactionKey {
			entry := r.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrNoLedgerEntry
}

func (r *fakeRepository) FindEntryByUserAndTransactionKey(userID, transactionKey string) (*models.PaymentLedgerEntry, error) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID && r.entries[i].TransactionKey == transactionKey {
			entry := r.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	key := event.PaymentID + "|" + event.Status
	if stored, ok := r.events[key]; ok {
		return false, stored, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[key] = event
	return true, event, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range r.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return nil
}

type fakeGateway struct {
	payment     *PaymentDetails
	getErr      error
	scheduleErr error
	listItems   []ScheduleItem
	listErr     error

	scheduled        []ScheduleChargeRequest
	cancelledIDs     []string
	cancelledCharges []string
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	if g.getErr != nil {
		return nil, g.getErr
	}
	return g.payment, nil
}

func (g *fakeGateway) ScheduleCharge(ctx context.Context, req ScheduleChargeRequest) error {
	if g.scheduleErr != nil {
		return g.scheduleErr
	}
	g.scheduled = append(g.scheduled, req)
	return nil
}

func (g *fakeGateway) ListSchedules(ctx context.Context, billingKey string, from, until time.Time) ([]ScheduleItem, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.listItems, nil
}

func (g *fakeGateway) CancelSchedules(ctx context.Context, scheduleIDs []string) error {
	g.cancelledIDs = append(g.cancelledIDs, scheduleIDs...)
	return nil
}

func (g *fakeGateway) CancelCharge(ctx context.Context, paymentID, reason string) error {
	g.cancelledCharges = append(g.cancelledCharges, paymentID)
	return nil
}

func testPayment() *PaymentDetails {
	return &PaymentDetails{
		ID:             "pay-001",
		TransactionKey: "tx-abc",
		Amount:         9900,
		Currency:       "KRW",
		OrderName:      "Magpie monthly subscription",
		BillingKey:     "bk-77",
		CustomerID:     "google-108234",
		CustomData:     EncodeCustomData("google-108234"),
	}
}

func newTestService(repo Repository, gw Gateway, now time.Time) *Service {
	svc := NewService(repo, gw, NewCalculator(9), nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestHandlePaidWebhook(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(repo, gw, now)

	require.NoError(t, svc.HandlePaidWebhook(context.Background(), "pay-001"))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, "tx-abc", entry.TransactionKey)
	assert.Equal(t, "google-108234", entry.UserID)
	assert.Equal(t, int64(9900), entry.Amount)
	assert.Equal(t, models.PaymentStatusPaid, entry.Status)
	assert.Equal(t, now, entry.StartAt)
	assert.Equal(t, now.Add(30*24*time.Hour), entry.EndAt)
	assert.True(t, entry.EndGraceAt.After(entry.EndAt))

	require.Len(t, gw.scheduled, 1)
	scheduled := gw.scheduled[0]
	assert.Equal(t, entry.NextScheduleID, scheduled.ScheduleID)
	assert.Equal(t, entry.NextScheduleAt, scheduled.FireAt)
	assert.Equal(t, "bk-77", scheduled.BillingKey)
	assert.Equal(t, EncodeCustomData("google-108234"), scheduled.CustomData)
}

func TestHandlePaidWebhookKeepsLedgerOnScheduleFailure(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{
		payment:     testPayment(),
		scheduleErr: &GatewayError{Op: GatewayOpSchedule, StatusCode: 502, Body: "bad gateway"},
	}
	svc := newTestService(repo, gw, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	err := svc.HandlePaidWebhook(context.Background(), "pay-001")
	require.Error(t, err)

	// The paid period is owed to the subscriber even without a renewal.
	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.PaymentStatusPaid, repo.entries[0].Status)
}

func TestHandlePaidWebhookMissingUserID(t *testing.T) {
	payment := testPayment()
	payment.CustomData = ""
	repo := newFakeRepository()
	svc := newTestService(repo, &fakeGateway{payment: payment}, time.Now())

	err := svc.HandlePaidWebhook(context.Background(), "pay-001")
	assert.ErrorIs(t, err, ErrMissingUserID)
	assert.Empty(t, repo.entries)
}

func TestHandleCancelledWebhook(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(repo, gw, now)

	require.NoError(t, svc.HandlePaidWebhook(context.Background(), "pay-001"))
	paid := repo.entries[0]

	gw.listItems = []ScheduleItem{
		{ID: "sched-row-1", PaymentID: "unrelated", FireAt: paid.NextScheduleAt},
		{ID: "sched-row-2", PaymentID: paid.NextScheduleID, FireAt: paid.NextScheduleAt},
	}

	require.NoError(t, svc.HandleCancelledWebhook(context.Background(), "pay-001"))

	require.Len(t, repo.entries, 2)
	reversal := repo.entries[1]
	assert.Equal(t, paid.TransactionKey, reversal.TransactionKey)
	assert.Equal(t, -paid.Amount, reversal.Amount)
	assert.Equal(t, models.PaymentStatusCancel, reversal.Status)
	assert.Equal(t, paid.EndGraceAt, reversal.EndGraceAt)

	assert.Equal(t, []string{"sched-row-2"}, gw.cancelledIDs)
}

func TestHandleCancelledWebhookScheduleDrift(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	svc := newTestService(repo, gw, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, svc.HandlePaidWebhook(context.Background(), "pay-001"))
	gw.listItems = nil

	err := svc.HandleCancelledWebhook(context.Background(), "pay-001")
	assert.ErrorIs(t, err, ErrScheduleDrift)

	// The reversal is already written; only the gateway-side revocation is missing.
	require.Len(t, repo.entries, 2)
	assert.Equal(t, models.PaymentStatusCancel, repo.entries[1].Status)
	assert.Empty(t, gw.cancelledIDs)
}

func TestHandleCancelledWebhookWithoutHistory(t *testing.T) {
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	svc := newTestService(repo, gw, time.Now())

	err := svc.HandleCancelledWebhook(context.Background(), "pay-001")
	assert.ErrorIs(t, err, ErrNoLedgerEntry)
}

func TestSubscriptionStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	paidEntry := func(txKey string, startAt, graceAt time.Time) models.PaymentLedgerEntry {
		return models.PaymentLedgerEntry{
			TransactionKey: txKey,
			UserID:         "user-1",
			Amount:         9900,
			Status:         models.PaymentStatusPaid,
			StartAt:        startAt,
			EndAt:          startAt.Add(30 * 24 * time.Hour),
			EndGraceAt:     graceAt,
		}
	}

	tests := []struct {
		name    string
		entries []models.PaymentLedgerEntry
		want    Subscription
	}{
		{
			name:    "no history",
			entries: nil,
			want:    Subscription{IsSubscribed: false},
		},
		{
			name: "active period",
			entries: []models.PaymentLedgerEntry{
				paidEntry("tx-1", now.Add(-24*time.Hour), now.Add(30*24*time.Hour)),
			},
			want: Subscription{IsSubscribed: true, TransactionKey: "tx-1"},
		},
		{
			name: "starts exactly now",
			entries: []models.PaymentLedgerEntry{
				paidEntry("tx-1", now, now.Add(31*24*time.Hour)),
			},
			want: Subscription{IsSubscribed: true, TransactionKey: "tx-1"},
		},
		{
			name: "grace ends exactly now",
			entries: []models.PaymentLedgerEntry{
				paidEntry("tx-1", now.Add(-31*24*time.Hour), now),
			},
			want: Subscription{IsSubscribed: true, TransactionKey: "tx-1"},
		},
		{
			name: "grace already over",
			entries: []models.PaymentLedgerEntry{
				paidEntry("tx-1", now.Add(-40*24*time.Hour), now.Add(-time.Second)),
			},
			want: Subscription{IsSubscribed: false},
		},
		{
			name: "not started yet",
			entries: []models.PaymentLedgerEntry{
				paidEntry("tx-1", now.Add(time.Second), now.Add(31*24*time.Hour)),
			},
			want: Subscription{IsSubscribed: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			for i := range tt.entries {
				require.NoError(t, repo.AppendEntry(&tt.entries[i]))
			}
			svc := newTestService(repo, &fakeGateway{}, now)

			sub, err := svc.SubscriptionStatus(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, *sub)
		})
	}
}

func TestSubscriptionStatusCancelledChainRetired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	svc := newTestService(repo, gw, now)

	require.NoError(t, svc.HandlePaidWebhook(context.Background(), "pay-001"))

	statusNow := now.Add(24 * time.Hour)
	svc.now = func() time.Time { return statusNow }

	sub, err := svc.SubscriptionStatus(context.Background(), "google-108234")
	require.NoError(t, err)
	assert.True(t, sub.IsSubscribed)

	paid := repo.entries[0]
	gw.listItems = []ScheduleItem{{ID: "s1", PaymentID: paid.NextScheduleID}}
	require.NoError(t, svc.HandleCancelledWebhook(context.Background(), "pay-001"))

	// The newer cancel row retires the chain even inside the paid window.
	sub, err = svc.SubscriptionStatus(context.Background(), "google-108234")
	require.NoError(t, err)
	assert.False(t, sub.IsSubscribed)
}

func TestSubscriptionStatusNewestChainWins(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepository()

	older := models.PaymentLedgerEntry{
		TransactionKey: "tx-old", UserID: "user-1", Amount: 9900,
		Status:  models.PaymentStatusPaid,
		StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(28 * 24 * time.Hour),
		EndGraceAt: now.Add(29 * 24 * time.Hour),
	}
	newer := models.PaymentLedgerEntry{
		TransactionKey: "tx-new", UserID: "user-1", Amount: 9900,
		Status:  models.PaymentStatusPaid,
		StartAt: now.Add(-24 * time.Hour), EndAt: now.Add(29 * 24 * time.Hour),
		EndGraceAt: now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.AppendEntry(&older))
	require.NoError(t, repo.AppendEntry(&newer))

	svc := newTestService(repo, &fakeGateway{}, now)
	sub, err := svc.SubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, sub.IsSubscribed)
	assert.Equal(t, "tx-new", sub.TransactionKey)
}

func TestCancelSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	svc := newTestService(repo, gw, now)

	require.NoError(t, svc.HandlePaidWebhook(context.Background(), "pay-001"))

	require.NoError(t, svc.CancelSubscription(context.Background(), "google-108234", "tx-abc"))
	assert.Equal(t, []string{"tx-abc"}, gw.cancelledCharges)

	// The ledger is untouched: the reversal arrives via the cancellation webhook.
	assert.Len(t, repo.entries, 1)
}

func TestCancelSubscriptionForeignKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	gw := &fakeGateway{payment: testPayment()}
	svc := newTestService(repo, gw, now)

	require.NoError(t, svc.HandlePaidWebhook(context.Background(), "pay-001"))

	err := svc.CancelSubscription(context.Background(), "someone-else", "tx-abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, gw.cancelledCharges)
}

func TestRecordWebhookEventDedup(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, &fakeGateway{}, time.Now())
	ctx := context.Background()

	process, first, err := svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusPaid, `{"payment_id":"pay-001"}`)
	require.NoError(t, err)
	assert.True(t, process)

	// A redelivery before the first attempt finished still needs processing.
	process, second, err := svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusPaid, `{"payment_id":"pay-001"}`)
	require.NoError(t, err)
	assert.True(t, process)
	assert.Equal(t, first.ID, second.ID)

	require.NoError(t, svc.MarkWebhookProcessed(ctx, first.ID, nil))

	// Only a completed delivery turns the redelivery into a duplicate.
	process, third, err := svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusPaid, `{"payment_id":"pay-001"}`)
	require.NoError(t, err)
	assert.False(t, process)
	assert.Equal(t, first.ID, third.ID)

	// The same payment id with a different status is a distinct event.
	process, _, err = svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusCancelled, `{"payment_id":"pay-001"}`)
	require.NoError(t, err)
	assert.True(t, process)
}

func TestPaidWebhookRetryAfterGatewayOutage(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	gw := &fakeGateway{getErr: &GatewayError{Op: GatewayOpLookup, StatusCode: 502, Body: "bad gateway"}}
	svc := newTestService(repo, gw, now)
	ctx := context.Background()

	process, event, err := svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusPaid, "{}")
	require.NoError(t, err)
	require.True(t, process)

	procErr := svc.HandlePaidWebhook(ctx, "pay-001")
	require.Error(t, procErr)
	require.NoError(t, svc.MarkWebhookProcessed(ctx, event.ID, procErr))
	assert.Empty(t, repo.entries)

	// The gateway redelivers once healthy. The failed attempt must not count
	// as a duplicate or the captured charge never reaches the ledger.
	gw.getErr = nil
	gw.payment = testPayment()

	process, event, err = svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusPaid, "{}")
	require.NoError(t, err)
	require.True(t, process)

	require.NoError(t, svc.HandlePaidWebhook(ctx, "pay-001"))
	require.NoError(t, svc.MarkWebhookProcessed(ctx, event.ID, nil))

	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.PaymentStatusPaid, repo.entries[0].Status)

	// Delivery after a completed run is the real duplicate.
	process, _, err = svc.RecordWebhookEvent(ctx, "pay-001", WebhookStatusPaid, "{}")
	require.NoError(t, err)
	assert.False(t, process)
}

func TestGetServiceReturnsSharedInstance(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakeGateway{}, time.Now())
	defaultService = svc
	t.Cleanup(func() { defaultService = nil })

	assert.Same(t, svc, GetService())
	assert.Same(t, GetService(), GetService())
}

func TestMarkWebhookProcessedStoresError(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, &fakeGateway{}, time.Now())
	ctx := context.Background()

	_, event, err := svc.RecordWebhookEvent(ctx, "pay-009", WebhookStatusPaid, "{}")
	require.NoError(t, err)

	require.NoError(t, svc.MarkWebhookProcessed(ctx, event.ID, errors.New("gateway timeout")))
	assert.NotNil(t, event.ProcessedAt)
	assert.Equal(t, "gateway timeout", event.ProcessingError)
}
