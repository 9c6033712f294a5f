package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/storafe/backend/internal/models"
	"gorm.io/gorm"
)

// QuotaLedger tracks per-owner storage consumption on users.used_storage.
// Adjustments run inside the caller's transaction so the ledger stays
// consistent with the file rows that justify it.
type QuotaLedger struct{}

func NewQuotaLedger() *QuotaLedger {
	return &QuotaLedger{}
}

// Adjust applies a signed delta to the owner's used storage. The update is
// a single SQL expression so concurrent adjustments never lose increments.
func (q *QuotaLedger) Adjust(tx *gorm.DB, ownerID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	return tx.Model(&models.User{}).
		Where("id = ?", ownerID).
		Update("used_storage", gorm.Expr("used_storage + ?", delta)).Error
}

// EnsureCapacity fails with ErrQuotaExceeded when adding size bytes would
// push the owner past their quota.
func (q *QuotaLedger) EnsureCapacity(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, size int64) error {
	var user models.User
	if err := tx.WithContext(ctx).First(&user, "id = ?", ownerID).Error; err != nil {
		return err
	}
	if user.UsedStorage+size > user.StorageQuota {
		return ErrQuotaExceeded
	}
	return nil
}
