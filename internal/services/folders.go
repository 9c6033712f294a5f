package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/storafe/backend/internal/models"
	"gorm.io/gorm"
)

// FolderService owns the materialized-path hierarchy. Every folder row
// carries its full path ("/docs/reports"); renames and moves rewrite the
// path prefix of the whole subtree inside one transaction.
type FolderService struct {
	DB     *gorm.DB
	Ledger *QuotaLedger
}

func NewFolderService(db *gorm.DB, ledger *QuotaLedger) *FolderService {
	return &FolderService{DB: db, Ledger: ledger}
}

// childPath joins a parent path and a folder name. The root parent path is
// "/", which would produce a double slash; collapse it.
func childPath(parentPath, name string) string {
	return strings.ReplaceAll(parentPath+"/"+name, "//", "/")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// subtreePattern builds a LIKE pattern matching the strict descendants of
// path. Folder names may contain "%" and "_" (only "/" is rejected), so the
// prefix is escaped to keep those literal; queries using the pattern must
// carry an ESCAPE '\' clause.
func subtreePattern(path string) string {
	return likeEscaper.Replace(path) + "/%"
}

// rewriteSubtreePaths swaps oldPath for newPath on every descendant of a
// folder. substr is 1-indexed and character based, matching the path
// column's text semantics on both postgres and sqlite.
func rewriteSubtreePaths(tx *gorm.DB, ownerID uuid.UUID, oldPath, newPath string) error {
	prefixLen := utf8.RuneCountInString(oldPath)
	return tx.Model(&models.Folder{}).
		Where(`owner_id = ? AND path LIKE ? ESCAPE '\'`, ownerID, subtreePattern(oldPath)).
		Update("path", gorm.Expr("? || substr(path, ?)", newPath, prefixLen+1)).Error
}

func (s *FolderService) Get(ctx context.Context, ownerID, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := s.DB.WithContext(ctx).
		First(&folder, "id = ? AND owner_id = ?", folderID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &folder, nil
}

// Create makes a folder under parentID, or at the root when parentID is nil.
func (s *FolderService) Create(ctx context.Context, ownerID uuid.UUID, name string, parentID *uuid.UUID) (*models.Folder, error) {
	parentPath := "/"
	if parentID != nil {
		parent, err := s.Get(ctx, ownerID, *parentID)
		if err != nil {
			return nil, err
		}
		parentPath = parent.Path
	}

	folder := &models.Folder{
		Name:           name,
		Path:           childPath(parentPath, name),
		ParentFolderID: parentID,
		OwnerID:        ownerID,
	}
	if err := s.DB.WithContext(ctx).Create(folder).Error; err != nil {
		return nil, err
	}
	return folder, nil
}

// Rename changes the folder's name and rewrites the subtree's paths.
func (s *FolderService) Rename(ctx context.Context, ownerID, folderID uuid.UUID, newName string) (*models.Folder, error) {
	var renamed *models.Folder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := s.getOwnedTx(tx, ownerID, folderID)
		if err != nil {
			return err
		}

		parentPath := "/"
		if folder.ParentFolderID != nil {
			var parent models.Folder
			if err := tx.First(&parent, "id = ?", *folder.ParentFolderID).Error; err != nil {
				return err
			}
			parentPath = parent.Path
		}

		oldPath := folder.Path
		folder.Name = newName
		folder.Path = childPath(parentPath, newName)
		if err := tx.Model(folder).Updates(map[string]interface{}{
			"name": folder.Name,
			"path": folder.Path,
		}).Error; err != nil {
			return err
		}

		if err := rewriteSubtreePaths(tx, ownerID, oldPath, folder.Path); err != nil {
			return err
		}
		renamed = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// Move reparents a folder. Moving into itself or any of its descendants is
// rejected before anything is written.
func (s *FolderService) Move(ctx context.Context, ownerID, folderID uuid.UUID, newParentID *uuid.UUID) (*models.Folder, error) {
	var moved *models.Folder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := s.moveInTx(tx, ownerID, folderID, newParentID)
		if err != nil {
			return err
		}
		moved = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// moveInTx carries the move logic so bulk operations can run several moves
// inside a single transaction.
func (s *FolderService) moveInTx(tx *gorm.DB, ownerID, folderID uuid.UUID, newParentID *uuid.UUID) (*models.Folder, error) {
	folder, err := s.getOwnedTx(tx, ownerID, folderID)
	if err != nil {
		return nil, err
	}

	parentPath := "/"
	if newParentID != nil {
		if *newParentID == folder.ID {
			return nil, ErrSelfParent
		}
		var parent models.Folder
		if err := tx.First(&parent, "id = ? AND owner_id = ?", *newParentID, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if strings.HasPrefix(parent.Path, folder.Path+"/") {
			return nil, ErrIntoOwnSubtree
		}
		parentPath = parent.Path
	}

	oldPath := folder.Path
	folder.ParentFolderID = newParentID
	folder.Path = childPath(parentPath, folder.Name)
	if err := tx.Model(folder).Updates(map[string]interface{}{
		"parent_folder_id": folder.ParentFolderID,
		"path":             folder.Path,
	}).Error; err != nil {
		return nil, err
	}

	if err := rewriteSubtreePaths(tx, ownerID, oldPath, folder.Path); err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteTree removes a folder, every descendant folder, and every file in
// the subtree. It debits the quota ledger for all removed bytes and returns
// the storage keys whose backing objects the caller should delete after the
// transaction commits.
func (s *FolderService) DeleteTree(ctx context.Context, ownerID, folderID uuid.UUID) (keys []string, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := s.getOwnedTx(tx, ownerID, folderID)
		if err != nil {
			return err
		}

		folderIDs, err := subtreeFolderIDs(tx, ownerID, folder)
		if err != nil {
			return err
		}

		var files []models.File
		if err := tx.Where("parent_folder_id IN ?", folderIDs).Find(&files).Error; err != nil {
			return err
		}

		var freed int64
		for _, f := range files {
			freed += f.Size
			keys = append(keys, f.FilePath)
		}

		if len(files) > 0 {
			if err := purgeFiles(tx, files); err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("id IN ?", folderIDs).Delete(&models.Folder{}).Error; err != nil {
			return err
		}

		return s.Ledger.Adjust(tx, ownerID, -freed)
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// purgeFiles hard-deletes file rows together with any grants on them.
func purgeFiles(tx *gorm.DB, files []models.File) error {
	ids := make([]uuid.UUID, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	if err := tx.Unscoped().Where("file_id IN ?", ids).Delete(&models.FilePermission{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id IN ?", ids).Delete(&models.File{}).Error
}

// subtreeFolderIDs resolves the folder itself plus every descendant by
// path prefix.
func subtreeFolderIDs(tx *gorm.DB, ownerID uuid.UUID, folder *models.Folder) ([]uuid.UUID, error) {
	var descendants []models.Folder
	err := tx.Where(`owner_id = ? AND path LIKE ? ESCAPE '\'`, ownerID, subtreePattern(folder.Path)).
		Find(&descendants).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(descendants)+1)
	ids = append(ids, folder.ID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *FolderService) getOwnedTx(tx *gorm.DB, ownerID, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := tx.First(&folder, "id = ? AND owner_id = ?", folderID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &folder, nil
}
