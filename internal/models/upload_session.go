package models

import (
	"time"

	"github.com/google/uuid"
)

type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
)

// UploadSession tracks a chunked upload against a token. The staged bytes
// live at TempFilePath until completion relocates them into the backend.
type UploadSession struct {
	BaseModel
	UserID       uuid.UUID    `json:"userID" gorm:"type:uuid;not null;index"`
	SessionToken string       `json:"sessionToken" gorm:"type:varchar(255);uniqueIndex;not null"`
	Filename     string       `json:"filename" gorm:"type:varchar(255);not null"`
	TotalSize    int64        `json:"totalSize" gorm:"not null"`
	UploadedSize int64        `json:"uploadedSize" gorm:"not null;default:0"`
	TempFilePath string       `json:"-" gorm:"type:text;not null"`
	Status       UploadStatus `json:"status" gorm:"type:varchar(50);not null;default:'pending'"`
	ExpiresAt    time.Time    `json:"expiresAt" gorm:"not null"`

	Owner User `json:"-" gorm:"foreignKey:UserID;references:ID"`
}

func (UploadSession) TableName() string {
	return "upload_sessions"
}

// Expired reports whether the session has passed its 24-hour horizon.
func (s *UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
