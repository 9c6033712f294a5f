package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/storafe/backend/internal/middleware"
	"github.com/storafe/backend/internal/services"
	"github.com/storafe/backend/pkg/logger"
	"github.com/storafe/backend/pkg/utils"
)

type BulkHandler struct {
	Bulk *services.BulkService
}

func NewBulkHandler(bulk *services.BulkService) *BulkHandler {
	return &BulkHandler{Bulk: bulk}
}

type bulkSelectionRequest struct {
	FileIDs   []string `json:"fileIDs"`
	FolderIDs []string `json:"folderIDs"`
}

type bulkTargetRequest struct {
	bulkSelectionRequest
	TargetFolderID *string `json:"targetFolderID"`
}

func (h *BulkHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req bulkSelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	fileIDs, folderIDs, err := parseSelection(req)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid id in selection")
	}

	result, err := h.Bulk.Delete(c.Context(), currentUser.ID, fileIDs, folderIDs)
	if err != nil {
		return bulkError(c, err, "failed deleting selection")
	}

	logger.InfoWithUser(currentUser.ID.String(), "bulk_delete", map[string]interface{}{
		"deleted_files":   result.DeletedFiles,
		"deleted_folders": result.DeletedFolders,
	})

	return utils.Success(c, fiber.StatusOK, result)
}

func (h *BulkHandler) Move(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req bulkTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	fileIDs, folderIDs, err := parseSelection(req.bulkSelectionRequest)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid id in selection")
	}
	targetID, err := parseOptionalUUID(req.TargetFolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid targetFolderID")
	}

	result, err := h.Bulk.Move(c.Context(), currentUser.ID, fileIDs, folderIDs, targetID)
	if err != nil {
		return bulkError(c, err, "failed moving selection")
	}

	logger.InfoWithUser(currentUser.ID.String(), "bulk_move", map[string]interface{}{
		"moved_files":   result.MovedFiles,
		"moved_folders": result.MovedFolders,
	})

	return utils.Success(c, fiber.StatusOK, result)
}

func (h *BulkHandler) Copy(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req bulkTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	fileIDs, folderIDs, err := parseSelection(req.bulkSelectionRequest)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid id in selection")
	}
	targetID, err := parseOptionalUUID(req.TargetFolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid targetFolderID")
	}

	result, err := h.Bulk.Copy(c.Context(), currentUser.ID, fileIDs, folderIDs, targetID)
	if err != nil {
		return bulkError(c, err, "failed copying selection")
	}

	logger.InfoWithUser(currentUser.ID.String(), "bulk_copy", map[string]interface{}{
		"copied_files":   result.CopiedFiles,
		"copied_folders": result.CopiedFolders,
	})

	return utils.Success(c, fiber.StatusOK, result)
}

func parseSelection(req bulkSelectionRequest) ([]uuid.UUID, []uuid.UUID, error) {
	fileIDs, err := parseUUIDList(req.FileIDs)
	if err != nil {
		return nil, nil, err
	}
	folderIDs, err := parseUUIDList(req.FolderIDs)
	if err != nil {
		return nil, nil, err
	}
	return fileIDs, folderIDs, nil
}

func bulkError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrEmptySelection):
		return utils.Error(c, fiber.StatusBadRequest, "selection is empty")
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, "item not found")
	case errors.Is(err, services.ErrSelfParent):
		return utils.Error(c, fiber.StatusBadRequest, "cannot move a folder into itself")
	case errors.Is(err, services.ErrIntoOwnSubtree):
		return utils.Error(c, fiber.StatusBadRequest, "cannot move a folder into its own subtree")
	case errors.Is(err, services.ErrQuotaExceeded):
		return utils.Error(c, fiber.StatusBadRequest, "storage quota exceeded")
	default:
		return utils.Error(c, fiber.StatusInternalServerError, fallback)
	}
}
