package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sumin-dev/Magpie/app/models"
	"github.com/sumin-dev/Magpie/internal/pkg/cache"
	"github.com/sumin-dev/Magpie/internal/pkg/mail"
)

const cancelReasonUserRequested = "user requested subscription cancellation"

// scheduleSearchWindow bounds the gateway schedule listing around the
// recorded next_schedule_at when hunting for the schedule to cancel.
const scheduleSearchWindow = 24 * time.Hour

// Service implements the subscription billing workflow: reconciling gateway
// webhooks into the payment ledger, scheduling the next recurring charge,
// resolving subscription status and orchestrating user cancellation.
type Service struct {
	repo    Repository
	gateway Gateway
	calc    *Calculator
	locker  *Locker

	now func() time.Time
}

// NewService wires a billing service from its collaborators. locker may be
// nil, in which case webhook processing runs without the per-key lease.
func NewService(repo Repository, gateway Gateway, calc *Calculator, locker *Locker) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		calc:    calc,
		locker:  locker,
		now:     time.Now,
	}
}

// NewServiceFromDB builds the production service: GORM repository, PortOne
// client from env, env-configured calculator and a Redis-backed lock.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(
		NewRepository(db),
		NewPortOneClientFromEnv(),
		NewCalculatorFromEnv(),
		NewLocker(cache.GetClient()),
	)
}

var defaultService *Service

// Setup builds the shared billing service. Call once at startup after the
// database and cache connections exist; the gateway HTTP client and the
// Redis locker are then reused across all requests.
func Setup(db *gorm.DB) {
	defaultService = NewServiceFromDB(db)
}

// GetService returns the shared billing service wired by Setup.
func GetService() *Service {
	return defaultService
}

// RecordWebhookEvent persists the delivery for dedup. process=false means a
// prior delivery of this (payment_id, status) pair already completed and the
// redelivery must be acknowledged without touching the ledger again.
// Redeliveries of an attempt that failed mid-flight come back with
// process=true: the gateway retry is the only repair path for a charge that
// was captured but never reached the ledger.
func (s *Service) RecordWebhookEvent(ctx context.Context, paymentID, status, payload string) (process bool, event *models.BillingWebhookEvent, err error) {
	_ = ctx
	candidate := &models.BillingWebhookEvent{
		PaymentID:   paymentID,
		Status:      status,
		PayloadJSON: payload,
	}
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(candidate)
	if err != nil {
		return false, nil, err
	}
	if !created && stored.Processed() {
		return false, stored, nil
	}
	return true, stored, nil
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(eventID, errMsg)
}

// HandlePaidWebhook reconciles a captured charge: it fetches the payment,
// identifies the subscriber from the custom data, appends the paid ledger
// row and registers the next recurring charge with the gateway.
//
// The ledger write happens before the gateway scheduling call. If scheduling
// fails the paid row stays: the subscriber keeps the period they paid for and
// the missing schedule is an operational gap surfaced in the returned error.
func (s *Service) HandlePaidWebhook(ctx context.Context, paymentID string) error {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	userID, err := DecodeCustomData(payment.CustomData)
	if err != nil {
		return fmt.Errorf("payment %s: %w", paymentID, err)
	}

	release, err := s.acquireLock(ctx, payment.TransactionKey)
	if err != nil {
		return err
	}
	defer release()

	startAt := s.now().UTC()
	endAt, endGraceAt := s.calc.Period(startAt)
	nextScheduleAt := s.calc.NextScheduleAt(endAt)
	nextScheduleID := uuid.NewString()

	entry := &models.PaymentLedgerEntry{
		TransactionKey: payment.TransactionKey,
		UserID:         userID,
		Amount:         payment.Amount,
		Status:         models.PaymentStatusPaid,
		StartAt:        startAt,
		EndAt:          endAt,
		EndGraceAt:     endGraceAt,
		NextScheduleAt: nextScheduleAt,
		NextScheduleID: nextScheduleID,
	}
	if err := s.repo.AppendEntry(entry); err != nil {
		return fmt.Errorf("billing: ledger append for payment %s: %w", paymentID, err)
	}

	err = s.gateway.ScheduleCharge(ctx, ScheduleChargeRequest{
		ScheduleID: nextScheduleID,
		BillingKey: payment.BillingKey,
		OrderName:  payment.OrderName,
		CustomerID: payment.CustomerID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		FireAt:     nextScheduleAt,
		CustomData: payment.CustomData,
	})
	if err != nil {
		// The paid row is kept: the period is owed to the subscriber. The
		// chain simply has no scheduled renewal until an operator re-arms it.
		log.Printf("billing: next charge for tx %s is UNSCHEDULED, manual follow-up required: %v", payment.TransactionKey, err)
		_ = mail.SendOpsAlert(
			fmt.Sprintf("[billing] renewal unscheduled for tx %s", payment.TransactionKey),
			fmt.Sprintf("Scheduling the next charge for payment %s (tx %s) failed: %v.<br>The paid period is recorded; the renewal must be re-armed manually.", paymentID, payment.TransactionKey, err),
		)
		return err
	}
	return nil
}

// HandleCancelledWebhook reconciles a gateway-confirmed cancellation: it
// appends the reversal row and revokes the already-registered next charge.
//
// The reversal, once written, is permanent even if the schedule cancellation
// afterwards fails. The ledger favors audit completeness; divergence from
// gateway scheduling state surfaces as an error for operator reconciliation.
func (s *Service) HandleCancelledWebhook(ctx context.Context, paymentID string) error {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	release, err := s.acquireLock(ctx, payment.TransactionKey)
	if err != nil {
		return err
	}
	defer release()

	prev, err := s.repo.LatestEntryByTransactionKey(payment.TransactionKey)
	if err != nil {
		return fmt.Errorf("billing: cancellation for payment %s: %w", paymentID, err)
	}

	if err := s.repo.AppendEntry(prev.Reversal()); err != nil {
		return fmt.Errorf("billing: reversal append for tx %s: %w", prev.TransactionKey, err)
	}

	from := prev.NextScheduleAt.Add(-scheduleSearchWindow)
	until := prev.NextScheduleAt.Add(scheduleSearchWindow)
	items, err := s.gateway.ListSchedules(ctx, payment.BillingKey, from, until)
	if err != nil {
		return err
	}

	var scheduleID string
	for _, item := range items {
		if item.PaymentID == prev.NextScheduleID {
			scheduleID = item.ID
			break
		}
	}
	if scheduleID == "" {
		return fmt.Errorf("billing: tx %s schedule %s: %w", prev.TransactionKey, prev.NextScheduleID, ErrScheduleDrift)
	}

	return s.gateway.CancelSchedules(ctx, []string{scheduleID})
}

// SubscriptionStatus resolves whether a user currently holds an active
// subscription. Read-only and safe to call repeatedly.
//
// Entries are grouped by transaction key; within each group only the newest
// row counts (a cancel row written after a paid row retires the chain). A
// group is active when its surviving row is paid and now lies inside
// [start_at, end_grace_at], boundaries inclusive.
func (s *Service) SubscriptionStatus(ctx context.Context, userID string) (*Subscription, error) {
	_ = ctx
	entries, err := s.repo.ListEntriesByUser(userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	seen := make(map[string]struct{}, len(entries))
	var active []models.PaymentLedgerEntry
	for _, entry := range entries {
		// Input is sorted newest-first, so first-seen per key is the latest.
		if _, ok := seen[entry.TransactionKey]; ok {
			continue
		}
		seen[entry.TransactionKey] = struct{}{}
		if entry.IsActiveAt(now) {
			active = append(active, entry)
		}
	}

	if len(active) == 0 {
		return &Subscription{IsSubscribed: false}, nil
	}
	if len(active) > 1 {
		// Should not happen in normal operation; keep the newest and flag it.
		log.Printf("billing: user %s has %d simultaneously active subscription chains", userID, len(active))
	}
	return &Subscription{
		IsSubscribed:   true,
		TransactionKey: active[0].TransactionKey,
	}, nil
}

// CancelSubscription is the user-initiated side of cancellation. It only
// triggers the gateway-side charge cancellation; the ledger reversal and
// schedule revocation arrive later via the gateway's cancellation webhook.
//
// The ledger lookup is scoped to the caller, so a transaction key belonging
// to another user yields ErrNotFound rather than revealing its existence.
func (s *Service) CancelSubscription(ctx context.Context, userID, transactionKey string) error {
	entry, err := s.repo.FindEntryByUserAndTransactionKey(userID, transactionKey)
	if err != nil {
		return err
	}
	return s.gateway.CancelCharge(ctx, entry.TransactionKey, cancelReasonUserRequested)
}

func (s *Service) acquireLock(ctx context.Context, transactionKey string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, transactionKey)
}
