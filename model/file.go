package model

import (
	"time"

	"gorm.io/gorm"
)

// File is an uploaded document or media asset within a folder. The bytes
// live in object storage under StorageKey; the serve endpoint streams them.
type File struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	FolderID   uint           `gorm:"not null;index" json:"folder_id"`
	Name       string         `gorm:"not null" json:"name"`
	MimeType   string         `gorm:"type:varchar(100)" json:"mime_type"`
	StorageKey string         `gorm:"uniqueIndex;not null" json:"-"`
	Size       int64          `json:"size"`
	PageCount  int            `gorm:"default:0" json:"page_count"` // PDFs only
	UploadedBy uint           `gorm:"index" json:"uploaded_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Folder Folder `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for File
func (File) TableName() string {
	return "files"
}

// IsVideo reports whether playback-based activity accounting applies
func (f File) IsVideo() bool {
	return len(f.MimeType) >= 6 && f.MimeType[:6] == "video/"
}
