package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/sumin-dev/Magpie/app/models"
	"github.com/sumin-dev/Magpie/internal/pkg/billing"
	"github.com/sumin-dev/Magpie/internal/pkg/database"
	"github.com/sumin-dev/Magpie/internal/pkg/entitlements"
	"github.com/sumin-dev/Magpie/internal/pkg/metrics/counter"
	"github.com/sumin-dev/Magpie/internal/pkg/usercontext"
)

// HandleMagazineIndex renders the public issue list (teasers only).
func HandleMagazineIndex(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var magazines []models.Magazine
	result := database.DB.Preload("User").Where("published = ?", true).Order("issue_number DESC, created_at DESC").Find(&magazines)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch magazines")
	}

	return c.Render("magazines/index", fiber.Map{
		"Title":      "Issues",
		"Magazines":  magazines,
		"IsLoggedIn": userCtx.IsLoggedIn,
		"IsEditor":   userCtx.IsEditor,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}

// HandleMagazineShow renders one issue. The full content is gated behind an
// active subscription; everyone else gets the teaser with a subscribe prompt.
func HandleMagazineShow(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	slug := c.Params("slug")

	var magazine models.Magazine
	result := database.DB.Preload("User").Where("slug = ? AND published = ?", slug, true).First(&magazine)
	if result.Error != nil {
		return c.Status(fiber.StatusNotFound).SendString("Issue not found")
	}

	isSubscribed := false
	if !userCtx.IsEditor && userCtx.IsLoggedIn && userCtx.ProviderUserID != "" {
		svc := billing.GetService()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if sub, err := svc.SubscriptionStatus(ctx, userCtx.ProviderUserID); err == nil {
			isSubscribed = sub.IsSubscribed
		} else {
			// Degrade to teaser rather than blocking the page.
			log.Printf("magazine show: subscription check for %s failed: %v", userCtx.ProviderUserID, err)
		}
	}

	role := models.ROLE_READER
	if userCtx.IsEditor {
		role = models.ROLE_EDITOR
	}
	access := entitlements.ForIssue(role, userCtx.IsLoggedIn, isSubscribed)

	if err := counter.AddMagazineView(magazine.ID); err != nil {
		log.Printf("magazine show: view counter for %s failed: %v", slug, err)
	}

	return c.Render("magazines/show", fiber.Map{
		"Title":        magazine.Title,
		"Magazine":     magazine,
		"CanRead":      access.FullContent,
		"TeaserReason": access.TeaserReason,
		"IsLoggedIn":   userCtx.IsLoggedIn,
		"IsEditor":     userCtx.IsEditor,
		"Flash":        flash.Get(c),
	}, "layouts/main")
}
