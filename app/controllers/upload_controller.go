package controllers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/sumin-dev/Magpie/app/models"
	"github.com/sumin-dev/Magpie/internal/pkg/constants"
	"github.com/sumin-dev/Magpie/internal/pkg/database"
	"github.com/sumin-dev/Magpie/internal/pkg/storage"
	"github.com/sumin-dev/Magpie/internal/pkg/upload"
)

const coverThumbWidth = 480

// HandleCoverUpload replaces the cover image of one issue. The original is
// stored under uploads/covers, a resized thumbnail next to it, and the
// original is archived to S3 when the archive is enabled.
func HandleCoverUpload(c *fiber.Ctx) error {
	var magazine models.Magazine
	if err := database.DB.Where("slug = ?", c.Params("slug")).First(&magazine).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Issue not found")
	}

	fileHeader, err := c.FormFile("cover")
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "No cover file provided"}).Redirect("/editor/magazines")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not read the uploaded file"}).Redirect("/editor/magazines")
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	src.Close()

	if _, err := upload.ValidateImageBySniff(fileHeader.Filename, head[:n]); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": err.Error()}).Redirect("/editor/magazines")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	coverName := fmt.Sprintf("%s%s", magazine.Slug, ext)
	coverPath := filepath.Join(constants.CoversPath, coverName)

	if err := os.MkdirAll(constants.CoversPath, 0755); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not store the cover"}).Redirect("/editor/magazines")
	}
	if err := c.SaveFile(fileHeader, coverPath); err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not store the cover"}).Redirect("/editor/magazines")
	}

	thumbPath, err := createCoverThumbnail(coverPath, magazine.Slug)
	if err != nil {
		log.Errorf("[Upload] Thumbnail generation failed for %s: %v", coverPath, err)
		// Keep the full-size cover even when the thumbnail cannot be built
		thumbPath = ""
	}

	magazine.CoverPath = "/" + filepath.ToSlash(coverPath)
	if thumbPath != "" {
		magazine.ThumbPath = "/" + filepath.ToSlash(thumbPath)
	}
	if err := database.DB.Save(&magazine).Error; err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not update the issue"}).Redirect("/editor/magazines")
	}

	go archiveCover(coverPath, magazine.Slug, ext)

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Cover updated"}).Redirect("/editor/magazines")
}

// createCoverThumbnail writes a width-bounded JPEG thumbnail next to the cover.
func createCoverThumbnail(coverPath, slug string) (string, error) {
	img, err := imaging.Open(coverPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open cover: %w", err)
	}

	thumb := imaging.Resize(img, coverThumbWidth, 0, imaging.Lanczos)
	thumbPath := filepath.Join(constants.CoversPath, fmt.Sprintf("%s_thumb.jpg", slug))
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return thumbPath, nil
}

// archiveCover pushes the original cover to the S3 archive when enabled.
// Failures are logged only; the local copy stays authoritative.
func archiveCover(coverPath, slug, ext string) {
	cfg, err := storage.LoadConfig()
	if err != nil {
		log.Errorf("[Upload] Archive config invalid: %v", err)
		return
	}
	if !cfg.IsEnabled() {
		return
	}

	client, err := storage.NewClient(cfg)
	if err != nil {
		log.Errorf("[Upload] Archive client init failed: %v", err)
		return
	}

	now := time.Now()
	objectKey := cfg.GetObjectKey(slug, ext, now.Year(), int(now.Month()))
	if _, err := client.UploadFile(coverPath, objectKey); err != nil {
		log.Errorf("[Upload] Archiving cover %s failed: %v", coverPath, err)
	}
}
