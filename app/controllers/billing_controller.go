package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sumin-dev/Magpie/internal/pkg/billing"
	"github.com/sumin-dev/Magpie/internal/pkg/env"
	"github.com/sumin-dev/Magpie/internal/pkg/security"
	"github.com/sumin-dev/Magpie/internal/pkg/usercontext"
)

// billingWebhookRequest is the gateway's callback body.
type billingWebhookRequest struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

type cancelSubscriptionRequest struct {
	TransactionKey string `json:"transactionKey"`
}

// HandleBillingWebhook processes gateway payment notifications. The gateway
// retries failed deliveries on its own; this endpoint never retries itself
// and answers a redelivery with success only when the prior attempt actually
// completed. A redelivery after a mid-flight failure is processed again, so
// the retry can still land the ledger row for a captured charge.
func HandleBillingWebhook(c *fiber.Ctx) error {
	// Signature verification only runs when a shared secret is configured;
	// local development talks to the endpoint without one.
	if secret := env.GetEnv("PORTONE_WEBHOOK_SECRET", ""); secret != "" {
		err := security.VerifyWebhookSignature(
			secret,
			c.Get("webhook-id"),
			c.Get("webhook-timestamp"),
			c.Get("webhook-signature"),
			c.BodyRaw(),
		)
		if err != nil {
			log.Printf("billing webhook: signature rejected: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false})
		}
	}

	var req billingWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false})
	}
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" || (req.Status != billing.WebhookStatusPaid && req.Status != billing.WebhookStatusCancelled) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false})
	}

	svc := billing.GetService()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	process, stored, err := svc.RecordWebhookEvent(ctx, req.PaymentID, req.Status, string(c.BodyRaw()))
	if err != nil {
		log.Printf("billing webhook: event persist failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false})
	}
	if !process {
		// Redelivered (payment_id, status) pair whose prior run completed.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "duplicate": true})
	}

	var procErr error
	switch req.Status {
	case billing.WebhookStatusPaid:
		procErr = svc.HandlePaidWebhook(ctx, req.PaymentID)
	case billing.WebhookStatusCancelled:
		procErr = svc.HandleCancelledWebhook(ctx, req.PaymentID)
	}
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, procErr)

	if procErr != nil {
		log.Printf("billing webhook: processing payment %s status %s failed: %v", req.PaymentID, req.Status, procErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleSubscriptionStatus reports whether the caller holds an active
// subscription. Internal errors degrade to "not subscribed" so the page the
// client is building never blocks on billing trouble.
func HandleSubscriptionStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn || userCtx.ProviderUserID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "login required"})
	}

	svc := billing.GetService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := svc.SubscriptionStatus(ctx, userCtx.ProviderUserID)
	if err != nil {
		log.Printf("billing status: resolve for user %s failed: %v", userCtx.ProviderUserID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success":      true,
			"isSubscribed": false,
			"message":      "subscription status unavailable",
		})
	}

	resp := fiber.Map{
		"success":      true,
		"isSubscribed": sub.IsSubscribed,
		"message":      "ok",
	}
	if sub.IsSubscribed {
		resp["transactionKey"] = sub.TransactionKey
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// HandleSubscriptionCancel triggers gateway-side cancellation of the
// caller's own subscription. The ledger reversal and schedule revocation
// arrive asynchronously via the gateway's cancellation webhook.
func HandleSubscriptionCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn || userCtx.ProviderUserID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false})
	}

	var req cancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.TransactionKey) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false})
	}

	svc := billing.GetService()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	err := svc.CancelSubscription(ctx, userCtx.ProviderUserID, strings.TrimSpace(req.TransactionKey))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			// Not owned by the caller or never existed; both look the same.
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false})
		}
		log.Printf("billing cancel: user %s tx %s failed: %v", userCtx.ProviderUserID, req.TransactionKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
