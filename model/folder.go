package model

import (
	"time"

	"gorm.io/gorm"
)

// Folder groups files for one class-section-subject scope
type Folder struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"not null" json:"name"`
	CourseClassName string         `gorm:"type:varchar(100);not null;index:idx_folder_scope" json:"courseClassName"`
	SectionName     string         `gorm:"type:varchar(100);not null;index:idx_folder_scope" json:"sectionName"`
	SubjectName     string         `gorm:"type:varchar(100);not null;index:idx_folder_scope" json:"subjectName"`
	OwnerID         uint           `gorm:"index" json:"owner_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Owner User   `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL" json:"-"`
	Files []File `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"files,omitempty"`
}

// TableName specifies the table name for Folder
func (Folder) TableName() string {
	return "folders"
}
