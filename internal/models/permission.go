package models

import (
	"time"

	"github.com/google/uuid"
)

type PermissionType string

const (
	PermissionRead  PermissionType = "read"
	PermissionWrite PermissionType = "write"
)

// FilePermission grants read or write capability on a single file to a user
// other than the owner. Owner access is implicit and never stored as a row.
type FilePermission struct {
	BaseModel
	FileID         uuid.UUID      `json:"fileID" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID      `json:"userID" gorm:"type:uuid;not null;index"`
	PermissionType PermissionType `json:"permissionType" gorm:"type:varchar(50);not null"`
	GrantedBy      uuid.UUID      `json:"grantedBy" gorm:"type:uuid;not null"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`

	File    File `json:"-" gorm:"foreignKey:FileID;references:ID"`
	User    User `json:"-" gorm:"foreignKey:UserID;references:ID"`
	Granter User `json:"-" gorm:"foreignKey:GrantedBy;references:ID"`
}

func (FilePermission) TableName() string {
	return "file_permissions"
}

// Expired reports whether the grant has lapsed at the given instant.
func (p *FilePermission) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
