package models

import "github.com/google/uuid"

// Folder carries a materialized path: the slash-delimited concatenation of
// ancestor names from the root down to this folder. A root-level folder has
// path "/<name>", and every descendant's path is prefixed by this folder's
// path plus "/". Renames and moves rewrite the whole prefix range in one
// transaction (see services.FolderService).
type Folder struct {
	BaseModel
	Name           string     `json:"name" gorm:"type:varchar(255);not null"`
	Path           string     `json:"path" gorm:"type:text;not null;index"`
	ParentFolderID *uuid.UUID `json:"parentFolderID,omitempty" gorm:"type:uuid;index"`
	OwnerID        uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`

	ParentFolder *Folder  `json:"-" gorm:"foreignKey:ParentFolderID"`
	Subfolders   []Folder `json:"subfolders,omitempty" gorm:"foreignKey:ParentFolderID"`
	Files        []File   `json:"files,omitempty" gorm:"foreignKey:ParentFolderID"`
	Owner        User     `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
}

func (Folder) TableName() string {
	return "folders"
}
