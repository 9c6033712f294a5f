package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storafe/backend/internal/models"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/logger"
	"gorm.io/gorm"
)

// copyFileInto duplicates a single file's bytes and row under a new parent.
// The hash column is globally unique, so the copy records the source hash
// with a random suffix. Returns the number of bytes added, 0 when the
// source object is missing and the file is skipped.
func (b *BulkService) copyFileInto(ctx context.Context, tx *gorm.DB, src *models.File, destParentID *uuid.UUID) (int64, error) {
	obj, err := b.Backend.Duplicate(ctx, src.FilePath, src.OwnerID.String(), src.OriginalName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectMissing) {
			logger.Warn("copy_source_object_missing", map[string]interface{}{
				"file_id": src.ID.String(),
				"key":     src.FilePath,
			})
			return 0, nil
		}
		return 0, err
	}

	copied := models.File{
		OriginalName:   src.OriginalName,
		Filename:       obj.Name,
		FilePath:       obj.Key,
		Size:           src.Size,
		MimeType:       src.MimeType,
		HashSHA256:     src.HashSHA256 + "-" + uuid.New().String(),
		ParentFolderID: destParentID,
		OwnerID:        src.OwnerID,
	}
	if err := tx.Create(&copied).Error; err != nil {
		return 0, err
	}
	return copied.Size, nil
}

type copyFrame struct {
	src            *models.Folder
	destParentID   *uuid.UUID
	destParentPath string
}

// copyFolderTree duplicates a folder subtree iteratively with an explicit
// stack. A visited set guards against path corruption producing a cycle.
// Returns the total bytes added by copied files.
func (b *BulkService) copyFolderTree(ctx context.Context, tx *gorm.DB, root *models.Folder, destParentID *uuid.UUID, destParentPath string) (int64, error) {
	var added int64
	visited := map[uuid.UUID]bool{}
	stack := []copyFrame{{src: root, destParentID: destParentID, destParentPath: destParentPath}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[frame.src.ID] {
			continue
		}
		visited[frame.src.ID] = true

		dest := models.Folder{
			Name:           frame.src.Name,
			Path:           childPath(frame.destParentPath, frame.src.Name),
			ParentFolderID: frame.destParentID,
			OwnerID:        frame.src.OwnerID,
		}
		if err := tx.Create(&dest).Error; err != nil {
			return 0, err
		}

		var files []models.File
		if err := tx.Where("parent_folder_id = ?", frame.src.ID).Find(&files).Error; err != nil {
			return 0, err
		}
		for i := range files {
			size, err := b.copyFileInto(ctx, tx, &files[i], &dest.ID)
			if err != nil {
				return 0, err
			}
			added += size
		}

		var children []models.Folder
		if err := tx.Where("parent_folder_id = ?", frame.src.ID).Find(&children).Error; err != nil {
			return 0, err
		}
		for i := range children {
			stack = append(stack, copyFrame{
				src:            &children[i],
				destParentID:   &dest.ID,
				destParentPath: dest.Path,
			})
		}
	}

	return added, nil
}
