package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storafe/backend/internal/middleware"
	"github.com/storafe/backend/internal/models"
	"github.com/storafe/backend/internal/services"
	"github.com/storafe/backend/pkg/utils"
	"gorm.io/gorm"
)

type BrowseHandler struct {
	DB      *gorm.DB
	Folders *services.FolderService
}

func NewBrowseHandler(db *gorm.DB, folders *services.FolderService) *BrowseHandler {
	return &BrowseHandler{DB: db, Folders: folders}
}

type browseFolderView struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
	Path string  `json:"path"`
}

type browseResponse struct {
	Folder     browseFolderView `json:"folder"`
	Subfolders []models.Folder  `json:"subfolders"`
	Files      []models.File    `json:"files"`
}

// Browse lists a folder's direct children. Without a folder_id it serves a
// virtual root node: the caller's top-level folders and unfiled files.
func (h *BrowseHandler) Browse(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	view := browseFolderView{Name: "root", Path: "/"}
	folderFilter := "parent_folder_id IS NULL"
	var filterArgs []interface{}

	raw := strings.TrimSpace(c.Query("folder_id"))
	if raw != "" {
		folderID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folder_id")
		}
		folder, err := h.Folders.Get(c.Context(), currentUser.ID, folderID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return utils.Error(c, fiber.StatusNotFound, "folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed fetching folder")
		}
		id := folder.ID.String()
		view = browseFolderView{ID: &id, Name: folder.Name, Path: folder.Path}
		folderFilter = "parent_folder_id = ?"
		filterArgs = []interface{}{folder.ID}
	}

	var subfolders []models.Folder
	query := h.DB.Where("owner_id = ?", currentUser.ID).Where(folderFilter, filterArgs...)
	if err := query.Order("name ASC").Find(&subfolders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folders")
	}

	var files []models.File
	query = h.DB.Where("owner_id = ?", currentUser.ID).Where(folderFilter, filterArgs...)
	if err := query.Order("original_name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, browseResponse{
		Folder:     view,
		Subfolders: subfolders,
		Files:      files,
	})
}
