package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/sumin-dev/Magpie/app/controllers"
	"github.com/sumin-dev/Magpie/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Billing: the webhook is called by the payment gateway, not a browser
	// session. Status and cancel require the caller's own session.
	v1.Post("/billing/webhook", controllers.HandleBillingWebhook)
	v1.Get("/billing/subscription", middleware.RequireAPISessionAuth, controllers.HandleSubscriptionStatus)
	v1.Post("/billing/cancel", middleware.RequireAPISessionAuth, controllers.HandleSubscriptionCancel)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
