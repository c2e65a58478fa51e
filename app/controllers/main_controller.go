package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sumin-dev/Magpie/app/models"
	"github.com/sumin-dev/Magpie/internal/pkg/billing"
	"github.com/sumin-dev/Magpie/internal/pkg/database"
	"github.com/sumin-dev/Magpie/internal/pkg/env"
	"github.com/sumin-dev/Magpie/internal/pkg/statistics"
	"github.com/sumin-dev/Magpie/internal/pkg/usercontext"
)

// HandleStart renders the landing page with the latest published issues.
func HandleStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var latest []models.Magazine
	_ = database.DB.Where("published = ?", true).Order("issue_number DESC").Limit(6).Find(&latest).Error

	return c.Render("index", fiber.Map{
		"Title":      "Magpie",
		"Magazines":  latest,
		"Stats":      statistics.GetStatisticsData(),
		"IsLoggedIn": userCtx.IsLoggedIn,
		"IsEditor":   userCtx.IsEditor,
	}, "layouts/main")
}

// HandlePricing renders the subscription pricing page.
func HandlePricing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	return c.Render("pricing", fiber.Map{
		"Title":      "Pricing",
		"PriceKRW":   subscriptionPriceKRW(),
		"IsLoggedIn": userCtx.IsLoggedIn,
	}, "layouts/main")
}

// HandleSubscribePage renders the checkout page with the gateway parameters
// the browser SDK needs to run the first billing-key charge. The customData
// carries the provider subject so the Paid webhook can identify the user.
func HandleSubscribePage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	return c.Render("subscribe", fiber.Map{
		"Title":      "Subscribe",
		"StoreID":    env.GetEnv("PORTONE_STORE_ID", ""),
		"ChannelKey": env.GetEnv("PORTONE_CHANNEL_KEY", ""),
		"OrderName":  env.GetEnv("SUBSCRIPTION_ORDER_NAME", "Magpie monthly subscription"),
		"PriceKRW":   subscriptionPriceKRW(),
		"CustomData": billing.EncodeCustomData(userCtx.ProviderUserID),
		"CustomerID": userCtx.ProviderUserID,
		"IsLoggedIn": userCtx.IsLoggedIn,
	}, "layouts/main")
}

func subscriptionPriceKRW() int64 {
	price := int64(9900)
	if v := env.GetEnv("SUBSCRIPTION_PRICE_KRW", ""); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			price = parsed
		}
	}
	return price
}
