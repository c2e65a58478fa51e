package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"github.com/sujit-baniya/flash"

	"github.com/sumin-dev/Magpie/app/models"
	"github.com/sumin-dev/Magpie/internal/pkg/database"
	"github.com/sumin-dev/Magpie/internal/pkg/usercontext"
)

// HandleEditorMagazineList shows all issues, drafts included.
func HandleEditorMagazineList(c *fiber.Ctx) error {
	var magazines []models.Magazine
	if err := database.DB.Order("issue_number DESC, created_at DESC").Find(&magazines).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch magazines")
	}
	return c.Render("editor/magazines", fiber.Map{
		"Title":     "Manage issues",
		"Magazines": magazines,
		"IsEditor":  true,
		"CSRFToken": c.Locals("csrf"),
		"Flash":     flash.Get(c),
	}, "layouts/main")
}

// HandleEditorMagazineNew renders the create form.
func HandleEditorMagazineNew(c *fiber.Ctx) error {
	return c.Render("editor/magazine_form", fiber.Map{
		"Title":     "New issue",
		"IsEditor":  true,
		"CSRFToken": c.Locals("csrf"),
	}, "layouts/main")
}

// HandleEditorMagazineCreate persists a new issue.
func HandleEditorMagazineCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	magazine := models.Magazine{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Summary:     strings.TrimSpace(c.FormValue("summary")),
		Content:     c.FormValue("content"),
		IssueNumber: parseIssueNumber(c.FormValue("issue_number")),
		Published:   c.FormValue("published") == "on",
		UserID:      userCtx.UserID,
	}
	magazine.Slug = slug.Make(magazine.Title)

	if err := validateMagazine(&magazine); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": err.Error()}).Redirect("/editor/magazines/new")
	}
	if err := database.DB.Create(&magazine).Error; err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not save the issue"}).Redirect("/editor/magazines/new")
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Issue created"}).Redirect("/editor/magazines")
}

// HandleEditorMagazineEdit renders the edit form for one issue.
func HandleEditorMagazineEdit(c *fiber.Ctx) error {
	var magazine models.Magazine
	if err := database.DB.Where("slug = ?", c.Params("slug")).First(&magazine).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Issue not found")
	}
	return c.Render("editor/magazine_form", fiber.Map{
		"Title":     "Edit issue",
		"Magazine":  magazine,
		"IsEditor":  true,
		"CSRFToken": c.Locals("csrf"),
		"Flash":     flash.Get(c),
	}, "layouts/main")
}

// HandleEditorMagazineUpdate applies form changes to one issue.
func HandleEditorMagazineUpdate(c *fiber.Ctx) error {
	var magazine models.Magazine
	if err := database.DB.Where("slug = ?", c.Params("slug")).First(&magazine).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Issue not found")
	}

	magazine.Title = strings.TrimSpace(c.FormValue("title"))
	magazine.Summary = strings.TrimSpace(c.FormValue("summary"))
	magazine.Content = c.FormValue("content")
	magazine.IssueNumber = parseIssueNumber(c.FormValue("issue_number"))
	magazine.Published = c.FormValue("published") == "on"
	magazine.Slug = slug.Make(magazine.Title)

	if err := validateMagazine(&magazine); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": err.Error()}).Redirect("/editor/magazines")
	}
	if err := database.DB.Save(&magazine).Error; err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not update the issue"}).Redirect("/editor/magazines")
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Issue updated"}).Redirect("/editor/magazines")
}

// HandleEditorMagazineDelete soft-deletes one issue.
func HandleEditorMagazineDelete(c *fiber.Ctx) error {
	var magazine models.Magazine
	if err := database.DB.Where("slug = ?", c.Params("slug")).First(&magazine).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Issue not found")
	}
	if err := database.DB.Delete(&magazine).Error; err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not delete the issue"}).Redirect("/editor/magazines")
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Issue deleted"}).Redirect("/editor/magazines")
}

func validateMagazine(m *models.Magazine) error {
	if len(m.Title) < 3 {
		return fiber.NewError(fiber.StatusBadRequest, "title must be at least 3 characters")
	}
	if strings.TrimSpace(m.Content) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "content is required")
	}
	return nil
}

func parseIssueNumber(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
