package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/storafe/backend/internal/middleware"
	"github.com/storafe/backend/internal/models"
	"github.com/storafe/backend/internal/services"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/logger"
	"github.com/storafe/backend/pkg/utils"
	"gorm.io/gorm"
)

type FilesHandler struct {
	DB          *gorm.DB
	Backend     storage.Backend
	Ledger      *services.QuotaLedger
	Permissions *services.PermissionService
}

func NewFilesHandler(db *gorm.DB, backend storage.Backend, ledger *services.QuotaLedger, permissions *services.PermissionService) *FilesHandler {
	return &FilesHandler{DB: db, Backend: backend, Ledger: ledger, Permissions: permissions}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	var parentID *uuid.UUID
	parentIDRaw := strings.TrimSpace(c.FormValue("parentFolderID"))
	if parentIDRaw != "" {
		parsed, parseErr := parseUUID(parentIDRaw)
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parentFolderID")
		}
		parentID = &parsed

		var parent models.Folder
		if err := h.DB.First(&parent, "id = ? AND owner_id = ?", parsed, currentUser.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.Error(c, fiber.StatusNotFound, "parent folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed validating parent folder")
		}
	}

	if err := h.Ledger.EnsureCapacity(c.Context(), h.DB, currentUser.ID, fileHeader.Size); err != nil {
		if errors.Is(err, services.ErrQuotaExceeded) {
			return utils.Error(c, fiber.StatusBadRequest, "storage quota exceeded")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking quota")
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Hash while the bytes stream into the backend, one pass.
	hasher := sha256.New()
	obj, err := h.Backend.Save(c.Context(), io.TeeReader(stream, hasher), fileHeader.Size, currentUser.ID.String(), filename)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing file")
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	entry := models.File{
		OriginalName:   filename,
		Filename:       obj.Name,
		FilePath:       obj.Key,
		Size:           fileHeader.Size,
		MimeType:       contentType,
		HashSHA256:     hash,
		ParentFolderID: parentID,
		OwnerID:        currentUser.ID,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.File
		dupErr := tx.First(&existing, "hash_sha256 = ?", hash).Error
		if dupErr == nil {
			return services.ErrDuplicateFile
		}
		if !errors.Is(dupErr, gorm.ErrRecordNotFound) {
			return dupErr
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return h.Ledger.Adjust(tx, currentUser.ID, entry.Size)
	})
	if err != nil {
		if cleanupErr := h.Backend.Delete(c.Context(), obj.Key); cleanupErr != nil {
			logger.Warn("upload_rollback_cleanup_failed", map[string]interface{}{
				"key": obj.Key,
			})
		}
		if errors.Is(err, services.ErrDuplicateFile) {
			return utils.Error(c, fiber.StatusConflict, "identical file already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":    entry.ID.String(),
		"file_name":  filename,
		"file_size":  entry.Size,
		"mime_type":  contentType,
		"request_id": getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	ref, err := h.Backend.DownloadRef(c.Context(), file.FilePath, file.OriginalName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectMissing) {
			return utils.Error(c, fiber.StatusNotFound, "file content missing")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed preparing download")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_downloaded", map[string]interface{}{
		"file_id": file.ID.String(),
	})

	if ref.URL != "" {
		return c.Redirect(ref.URL, fiber.StatusTemporaryRedirect)
	}
	return c.Download(ref.LocalPath, file.OriginalName)
}

func (h *FilesHandler) Info(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("file_id = ?", file.ID).Delete(&models.FilePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(file).Error; err != nil {
			return err
		}
		return h.Ledger.Adjust(tx, currentUser.ID, -file.Size)
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}

	if err := h.Backend.Delete(c.Context(), file.FilePath); err != nil {
		logger.WarnWithUser(currentUser.ID.String(), "file_delete_object_cleanup_failed", map[string]interface{}{
			"key": file.FilePath,
		})
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"file_id": file.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file deleted"})
}

type renameFileRequest struct {
	Name string `json:"name"`
}

func (h *FilesHandler) Rename(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var req renameFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	if err := h.DB.Model(file).Update("original_name", name).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed renaming file")
	}
	file.OriginalName = name

	return utils.Success(c, fiber.StatusOK, file)
}

type moveFileRequest struct {
	TargetFolderID *string `json:"targetFolderID"`
}

func (h *FilesHandler) Move(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var req moveFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	targetID, err := parseOptionalUUID(req.TargetFolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid targetFolderID")
	}
	if targetID != nil {
		var target models.Folder
		if err := h.DB.First(&target, "id = ? AND owner_id = ?", *targetID, currentUser.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.Error(c, fiber.StatusNotFound, "target folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed validating target folder")
		}
	}

	if err := h.DB.Model(file).Update("parent_folder_id", targetID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed moving file")
	}
	file.ParentFolderID = targetID

	return utils.Success(c, fiber.StatusOK, file)
}

type shareFileRequest struct {
	Email          string  `json:"email"`
	PermissionType string  `json:"permissionType"`
	ExpiresAt      *string `json:"expiresAt"`
}

func (h *FilesHandler) Share(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req shareFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	permType := models.PermissionType(strings.ToLower(strings.TrimSpace(req.PermissionType)))
	if permType != models.PermissionRead && permType != models.PermissionWrite {
		return utils.Error(c, fiber.StatusBadRequest, "permissionType must be read or write")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var grantee models.User
	if err := h.DB.First(&grantee, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed resolving user")
	}
	if grantee.ID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot share a file with yourself")
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && strings.TrimSpace(*req.ExpiresAt) != "" {
		parsed, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(*req.ExpiresAt))
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "expiresAt must be RFC3339")
		}
		expiresAt = &parsed
	}

	perm, err := h.Permissions.Grant(c.Context(), currentUser.ID, fileID, grantee.ID, permType, expiresAt)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed sharing file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_shared", map[string]interface{}{
		"file_id":    fileID.String(),
		"grantee_id": grantee.ID.String(),
		"permission": string(permType),
	})

	return utils.Success(c, fiber.StatusCreated, perm)
}

type visibilityRequest struct {
	IsPublic bool `json:"isPublic"`
}

func (h *FilesHandler) Visibility(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, status, msg := h.loadOwnedFile(c, currentUser.ID)
	if file == nil {
		return utils.Error(c, status, msg)
	}

	var req visibilityRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.IsPublic {
		if err := h.Backend.MakePublic(c.Context(), file.FilePath); err != nil {
			if errors.Is(err, storage.ErrObjectMissing) {
				return utils.Error(c, fiber.StatusNotFound, "file content missing")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed publishing file")
		}
	}

	if err := h.DB.Model(file).Update("is_public", req.IsPublic).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating visibility")
	}
	file.IsPublic = req.IsPublic

	response := fiber.Map{"file": file}
	if req.IsPublic {
		if url := h.Backend.PublicURL(file.FilePath); url != "" {
			response["publicURL"] = url
		}
	}
	return utils.Success(c, fiber.StatusOK, response)
}

// loadFile resolves the :id param and enforces read access. Inaccessible
// and nonexistent files are indistinguishable to the caller.
func (h *FilesHandler) loadFile(c *fiber.Ctx, userID uuid.UUID) (*models.File, int, string) {
	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, fiber.StatusBadRequest, "invalid file id"
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		return nil, fiber.StatusNotFound, "file not found"
	}
	if !h.Permissions.CanRead(c.Context(), userID, &file) {
		return nil, fiber.StatusNotFound, "file not found"
	}
	return &file, 0, ""
}

func (h *FilesHandler) loadOwnedFile(c *fiber.Ctx, userID uuid.UUID) (*models.File, int, string) {
	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, fiber.StatusBadRequest, "invalid file id"
	}

	var file models.File
	if err := h.DB.First(&file, "id = ? AND owner_id = ?", fileID, userID).Error; err != nil {
		return nil, fiber.StatusNotFound, "file not found"
	}
	return &file, 0, ""
}
