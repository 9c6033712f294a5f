package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storafe/backend/internal/middleware"
	"github.com/storafe/backend/internal/services"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/logger"
	"github.com/storafe/backend/pkg/utils"
	"gorm.io/gorm"
)

type FoldersHandler struct {
	DB      *gorm.DB
	Folders *services.FolderService
	Backend storage.Backend
}

func NewFoldersHandler(db *gorm.DB, folders *services.FolderService, backend storage.Backend) *FoldersHandler {
	return &FoldersHandler{DB: db, Folders: folders, Backend: backend}
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentID"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if strings.Contains(name, "/") {
		return utils.Error(c, fiber.StatusBadRequest, "name cannot contain '/'")
	}

	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
	}

	folder, err := h.Folders.Create(c.Context(), currentUser.ID, name, parentID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "parent folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating folder")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_created", map[string]interface{}{
		"folder_id":   folder.ID.String(),
		"folder_path": folder.Path,
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

func (h *FoldersHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	folder, err := h.Folders.Get(c.Context(), currentUser.ID, folderID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching folder")
	}

	return utils.Success(c, fiber.StatusOK, folder)
}

type renameFolderRequest struct {
	Name string `json:"name"`
}

func (h *FoldersHandler) Rename(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req renameFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if strings.Contains(name, "/") {
		return utils.Error(c, fiber.StatusBadRequest, "name cannot contain '/'")
	}

	folder, err := h.Folders.Rename(c.Context(), currentUser.ID, folderID, name)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed renaming folder")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_renamed", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"new_path":  folder.Path,
	})

	return utils.Success(c, fiber.StatusOK, folder)
}

type moveFolderRequest struct {
	TargetFolderID *string `json:"targetFolderID"`
}

func (h *FoldersHandler) Move(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req moveFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	targetID, err := parseOptionalUUID(req.TargetFolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid targetFolderID")
	}

	folder, err := h.Folders.Move(c.Context(), currentUser.ID, folderID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		case errors.Is(err, services.ErrSelfParent):
			return utils.Error(c, fiber.StatusBadRequest, "cannot move a folder into itself")
		case errors.Is(err, services.ErrIntoOwnSubtree):
			return utils.Error(c, fiber.StatusBadRequest, "cannot move a folder into its own subtree")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed moving folder")
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_moved", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"new_path":  folder.Path,
	})

	return utils.Success(c, fiber.StatusOK, folder)
}

func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	keys, err := h.Folders.DeleteTree(c.Context(), currentUser.ID, folderID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting folder")
	}

	for _, key := range keys {
		if err := h.Backend.Delete(c.Context(), key); err != nil {
			logger.WarnWithUser(currentUser.ID.String(), "folder_delete_object_cleanup_failed", map[string]interface{}{
				"key": key,
			})
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_deleted", map[string]interface{}{
		"folder_id":     folderID.String(),
		"objects_freed": len(keys),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "folder deleted"})
}
