package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storafe/backend/internal/models"
	"gorm.io/gorm"
)

// PermissionService answers per-file access questions. Owners can do
// anything with their files; other users need an unexpired grant, and
// public files are readable by anyone.
type PermissionService struct {
	DB *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{DB: db}
}

func (p *PermissionService) CanRead(ctx context.Context, userID uuid.UUID, file *models.File) bool {
	if file.OwnerID == userID || file.IsPublic {
		return true
	}
	return p.hasGrant(ctx, userID, file.ID, models.PermissionRead)
}

func (p *PermissionService) CanWrite(ctx context.Context, userID uuid.UUID, file *models.File) bool {
	if file.OwnerID == userID {
		return true
	}
	return p.hasGrant(ctx, userID, file.ID, models.PermissionWrite)
}

// hasGrant checks for an unexpired grant at or above the required level.
// Write implies read.
func (p *PermissionService) hasGrant(ctx context.Context, userID, fileID uuid.UUID, required models.PermissionType) bool {
	var grants []models.FilePermission
	err := p.DB.WithContext(ctx).
		Where("file_id = ? AND user_id = ?", fileID, userID).
		Find(&grants).Error
	if err != nil {
		return false
	}

	now := time.Now()
	for _, grant := range grants {
		if grant.Expired(now) {
			continue
		}
		if grant.PermissionType == required || grant.PermissionType == models.PermissionWrite {
			return true
		}
	}
	return false
}

// Grant gives userID access to the owner's file, replacing any existing
// grant for the same user.
func (p *PermissionService) Grant(ctx context.Context, ownerID, fileID, userID uuid.UUID, permType models.PermissionType, expiresAt *time.Time) (*models.FilePermission, error) {
	var file models.File
	err := p.DB.WithContext(ctx).First(&file, "id = ? AND owner_id = ?", fileID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var grantee models.User
	err = p.DB.WithContext(ctx).First(&grantee, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var perm *models.FilePermission
	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("file_id = ? AND user_id = ?", fileID, userID).
			Delete(&models.FilePermission{}).Error; err != nil {
			return err
		}
		perm = &models.FilePermission{
			FileID:         fileID,
			UserID:         userID,
			PermissionType: permType,
			GrantedBy:      ownerID,
			ExpiresAt:      expiresAt,
		}
		return tx.Create(perm).Error
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}
