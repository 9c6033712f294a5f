package models

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// DefaultStorageQuota is the byte ceiling assigned to new accounts (10 GiB).
const DefaultStorageQuota int64 = 10 * 1024 * 1024 * 1024

type User struct {
	BaseModel
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'user'"`

	// StorageQuota is the owner's byte ceiling; UsedStorage is maintained
	// incrementally and must always equal the summed size of the owner's
	// live file rows.
	StorageQuota int64 `json:"storageQuota" gorm:"not null;default:10737418240"`
	UsedStorage  int64 `json:"usedStorage" gorm:"not null;default:0"`

	Files   []File   `json:"-" gorm:"foreignKey:OwnerID"`
	Folders []Folder `json:"-" gorm:"foreignKey:OwnerID"`
}
