package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/storafe/backend/internal/models"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/logger"
	"gorm.io/gorm"
)

// BulkService coordinates multi-item delete, move, and copy. Each request
// runs in one transaction: any invalid item rolls the whole batch back.
type BulkService struct {
	DB      *gorm.DB
	Backend storage.Backend
	Ledger  *QuotaLedger
	Folders *FolderService
}

func NewBulkService(db *gorm.DB, backend storage.Backend, ledger *QuotaLedger, folders *FolderService) *BulkService {
	return &BulkService{DB: db, Backend: backend, Ledger: ledger, Folders: folders}
}

// BulkResult counts the directly named items an operation touched, not the
// descendants swept along with them.
type BulkResult struct {
	DeletedFiles   int `json:"deleted_files,omitempty"`
	DeletedFolders int `json:"deleted_folders,omitempty"`
	MovedFiles     int `json:"moved_files,omitempty"`
	MovedFolders   int `json:"moved_folders,omitempty"`
	CopiedFiles    int `json:"copied_files,omitempty"`
	CopiedFolders  int `json:"copied_folders,omitempty"`
}

// Delete removes the named files and folder subtrees, debiting the quota
// ledger for every byte freed including files deep inside named folders.
// Storage objects are removed only after the transaction commits.
func (b *BulkService) Delete(ctx context.Context, ownerID uuid.UUID, fileIDs, folderIDs []uuid.UUID) (*BulkResult, error) {
	if len(fileIDs) == 0 && len(folderIDs) == 0 {
		return nil, ErrEmptySelection
	}

	var keys []string
	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var freed int64

		for _, id := range fileIDs {
			file, err := ownedFile(tx, ownerID, id)
			if err != nil {
				return err
			}
			freed += file.Size
			keys = append(keys, file.FilePath)
			if err := purgeFiles(tx, []models.File{*file}); err != nil {
				return err
			}
		}

		// Resolve every named folder before deleting any. A selection may
		// name both an ancestor and its descendant; deleting the ancestor
		// first would make the descendant unresolvable mid-batch.
		seen := make(map[uuid.UUID]bool, len(folderIDs))
		named := make([]*models.Folder, 0, len(folderIDs))
		for _, id := range folderIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			folder, err := b.Folders.getOwnedTx(tx, ownerID, id)
			if err != nil {
				return err
			}
			named = append(named, folder)
		}

		// Folders nested under another named folder are swept with that
		// ancestor's subtree.
		roots := make([]*models.Folder, 0, len(named))
		for _, folder := range named {
			nested := false
			for _, other := range named {
				if other.ID != folder.ID && strings.HasPrefix(folder.Path, other.Path+"/") {
					nested = true
					break
				}
			}
			if !nested {
				roots = append(roots, folder)
			}
		}

		for _, folder := range roots {
			ids, err := subtreeFolderIDs(tx, ownerID, folder)
			if err != nil {
				return err
			}

			var files []models.File
			if err := tx.Where("parent_folder_id IN ?", ids).Find(&files).Error; err != nil {
				return err
			}
			for _, f := range files {
				freed += f.Size
				keys = append(keys, f.FilePath)
			}
			if len(files) > 0 {
				if err := purgeFiles(tx, files); err != nil {
					return err
				}
			}
			if err := tx.Unscoped().Where("id IN ?", ids).Delete(&models.Folder{}).Error; err != nil {
				return err
			}
		}

		return b.Ledger.Adjust(tx, ownerID, -freed)
	})
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if err := b.Backend.Delete(ctx, key); err != nil {
			logger.Warn("bulk_delete_object_cleanup_failed", map[string]interface{}{
				"key": key,
			})
		}
	}

	return &BulkResult{
		DeletedFiles:   len(fileIDs),
		DeletedFolders: len(folderIDs),
	}, nil
}

// Move reparents the named files and folders under targetID (nil means the
// root). Folder moves reuse the path engine so subtree paths stay correct.
func (b *BulkService) Move(ctx context.Context, ownerID uuid.UUID, fileIDs, folderIDs []uuid.UUID, targetID *uuid.UUID) (*BulkResult, error) {
	if len(fileIDs) == 0 && len(folderIDs) == 0 {
		return nil, ErrEmptySelection
	}

	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if targetID != nil {
			if _, err := b.Folders.getOwnedTx(tx, ownerID, *targetID); err != nil {
				return err
			}
		}

		if len(fileIDs) > 0 {
			res := tx.Model(&models.File{}).
				Where("id IN ? AND owner_id = ?", fileIDs, ownerID).
				Update("parent_folder_id", targetID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(fileIDs)) {
				return ErrNotFound
			}
		}

		for _, id := range folderIDs {
			if _, err := b.Folders.moveInTx(tx, ownerID, id, targetID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BulkResult{
		MovedFiles:   len(fileIDs),
		MovedFolders: len(folderIDs),
	}, nil
}

// Copy duplicates the named files and folder subtrees under targetID. Files
// whose backing object has gone missing are skipped rather than failing the
// batch. Copied bytes are charged to the quota ledger.
func (b *BulkService) Copy(ctx context.Context, ownerID uuid.UUID, fileIDs, folderIDs []uuid.UUID, targetID *uuid.UUID) (*BulkResult, error) {
	if len(fileIDs) == 0 && len(folderIDs) == 0 {
		return nil, ErrEmptySelection
	}

	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		targetPath := "/"
		if targetID != nil {
			target, err := b.Folders.getOwnedTx(tx, ownerID, *targetID)
			if err != nil {
				return err
			}
			targetPath = target.Path
		}

		var added int64
		for _, id := range fileIDs {
			file, err := ownedFile(tx, ownerID, id)
			if err != nil {
				return err
			}
			size, err := b.copyFileInto(ctx, tx, file, targetID)
			if err != nil {
				return err
			}
			added += size
		}

		for _, id := range folderIDs {
			folder, err := b.Folders.getOwnedTx(tx, ownerID, id)
			if err != nil {
				return err
			}
			if targetID != nil {
				if folder.ID == *targetID {
					return ErrSelfParent
				}
				if strings.HasPrefix(targetPath, folder.Path+"/") {
					return ErrIntoOwnSubtree
				}
			}
			size, err := b.copyFolderTree(ctx, tx, folder, targetID, targetPath)
			if err != nil {
				return err
			}
			added += size
		}

		return b.Ledger.Adjust(tx, ownerID, added)
	})
	if err != nil {
		return nil, err
	}

	return &BulkResult{
		CopiedFiles:   len(fileIDs),
		CopiedFolders: len(folderIDs),
	}, nil
}

func ownedFile(tx *gorm.DB, ownerID, fileID uuid.UUID) (*models.File, error) {
	var file models.File
	err := tx.First(&file, "id = ? AND owner_id = ?", fileID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}
