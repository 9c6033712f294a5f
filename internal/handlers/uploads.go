package handlers

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storafe/backend/internal/middleware"
	"github.com/storafe/backend/internal/services"
	"github.com/storafe/backend/pkg/logger"
	"github.com/storafe/backend/pkg/utils"
)

type UploadsHandler struct {
	Uploads *services.UploadService
}

func NewUploadsHandler(uploads *services.UploadService) *UploadsHandler {
	return &UploadsHandler{Uploads: uploads}
}

type initiateUploadRequest struct {
	Filename  string `json:"filename"`
	TotalSize int64  `json:"totalSize"`
}

func (h *UploadsHandler) Initiate(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req initiateUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "filename is required")
	}
	if req.TotalSize <= 0 {
		return utils.Error(c, fiber.StatusBadRequest, "totalSize must be positive")
	}

	session, err := h.Uploads.Initiate(c.Context(), currentUser.ID, filename, req.TotalSize)
	if err != nil {
		if errors.Is(err, services.ErrQuotaExceeded) {
			return utils.Error(c, fiber.StatusBadRequest, "storage quota exceeded")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed initiating upload")
	}

	logger.InfoWithUser(currentUser.ID.String(), "upload_initiated", map[string]interface{}{
		"session_token": session.SessionToken,
		"filename":      filename,
		"total_size":    req.TotalSize,
	})

	return utils.Success(c, fiber.StatusCreated, session)
}

func (h *UploadsHandler) Chunk(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	token := strings.TrimSpace(c.Get("X-Session-Token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("session_token"))
	}
	if token == "" {
		return utils.Error(c, fiber.StatusBadRequest, "session token is required")
	}

	body := c.Body()
	if len(body) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "chunk body is empty")
	}

	session, err := h.Uploads.AppendChunk(c.Context(), currentUser.ID, token, bytes.NewReader(body))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return utils.Error(c, fiber.StatusNotFound, "upload session not found")
		case errors.Is(err, services.ErrSessionCompleted):
			return utils.Error(c, fiber.StatusBadRequest, "upload session already completed")
		case errors.Is(err, services.ErrSessionExpired):
			return utils.Error(c, fiber.StatusBadRequest, "upload session expired")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed writing chunk")
		}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"uploadedSize": session.UploadedSize,
		"totalSize":    session.TotalSize,
		"status":       session.Status,
	})
}

type completeUploadRequest struct {
	SessionToken   string  `json:"sessionToken"`
	ParentFolderID *string `json:"parentFolderID"`
	MimeType       string  `json:"mimeType"`
}

func (h *UploadsHandler) Complete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req completeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	token := strings.TrimSpace(req.SessionToken)
	if token == "" {
		return utils.Error(c, fiber.StatusBadRequest, "sessionToken is required")
	}

	parentID, err := parseOptionalUUID(req.ParentFolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentFolderID")
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := h.Uploads.Complete(c.Context(), currentUser.ID, token, parentID, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return utils.Error(c, fiber.StatusNotFound, "upload session not found")
		case errors.Is(err, services.ErrSessionCompleted):
			return utils.Error(c, fiber.StatusBadRequest, "upload session already completed")
		case errors.Is(err, services.ErrSessionExpired):
			return utils.Error(c, fiber.StatusBadRequest, "upload session expired")
		case errors.Is(err, services.ErrUploadIncomplete):
			return utils.Error(c, fiber.StatusBadRequest, "upload is missing bytes")
		case errors.Is(err, services.ErrQuotaExceeded):
			return utils.Error(c, fiber.StatusBadRequest, "storage quota exceeded")
		case errors.Is(err, services.ErrDuplicateFile):
			return utils.Error(c, fiber.StatusConflict, "identical file already exists")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed completing upload")
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "upload_completed", map[string]interface{}{
		"file_id":   file.ID.String(),
		"file_size": file.Size,
	})

	return utils.Success(c, fiber.StatusCreated, file)
}
