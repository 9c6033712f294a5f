package models

import "github.com/google/uuid"

type File struct {
	BaseModel
	OriginalName string `json:"originalName" gorm:"type:varchar(255);not null"`
	// Filename is the generated, storage-unique name; FilePath is the opaque
	// backend key the bytes live under. Files locate via ParentFolderID and
	// carry no materialized path of their own.
	Filename       string     `json:"filename" gorm:"type:varchar(255);not null"`
	FilePath       string     `json:"-" gorm:"type:text;not null"`
	Size           int64      `json:"size" gorm:"not null"`
	MimeType       string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	HashSHA256     string     `json:"hashSHA256" gorm:"type:varchar(128);uniqueIndex;not null"`
	ParentFolderID *uuid.UUID `json:"parentFolderID,omitempty" gorm:"type:uuid;index"`
	OwnerID        uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	IsPublic       bool       `json:"isPublic" gorm:"not null;default:false"`

	UploadSessionID *uuid.UUID `json:"uploadSessionID,omitempty" gorm:"type:uuid"`

	// Inert metadata columns: present in the schema, untouched by business
	// logic.
	IsEncrypted      bool     `json:"isEncrypted" gorm:"not null;default:false"`
	CompressionRatio *float64 `json:"compressionRatio,omitempty"`
	ThumbnailPath    *string  `json:"thumbnailPath,omitempty" gorm:"type:text"`
	VirusScanStatus  string   `json:"virusScanStatus" gorm:"type:varchar(50);default:'pending'"`

	Owner        User             `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	ParentFolder *Folder          `json:"-" gorm:"foreignKey:ParentFolderID"`
	Permissions  []FilePermission `json:"-" gorm:"foreignKey:FileID"`
}

func (File) TableName() string {
	return "files"
}
