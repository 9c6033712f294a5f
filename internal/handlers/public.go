package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/storafe/backend/internal/models"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/utils"
	"gorm.io/gorm"
)

type PublicHandler struct {
	DB      *gorm.DB
	Backend storage.Backend
}

func NewPublicHandler(db *gorm.DB, backend storage.Backend) *PublicHandler {
	return &PublicHandler{DB: db, Backend: backend}
}

// Get serves a public file without authentication. Private and nonexistent
// files both answer 404. Object-storage backends redirect to the permanent
// public URL; the local backend streams the bytes directly.
func (h *PublicHandler) Get(c *fiber.Ctx) error {
	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.File
	if err := h.DB.First(&file, "id = ? AND is_public = ?", fileID, true).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}

	if url := h.Backend.PublicURL(file.FilePath); url != "" {
		return c.Redirect(url, fiber.StatusTemporaryRedirect)
	}

	ref, err := h.Backend.DownloadRef(c.Context(), file.FilePath, file.OriginalName)
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "file content missing")
	}
	if ref.URL != "" {
		return c.Redirect(ref.URL, fiber.StatusTemporaryRedirect)
	}
	return c.SendFile(ref.LocalPath)
}
