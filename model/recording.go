package model

import (
	"time"

	"gorm.io/gorm"
)

// RecordingStatus represents the lifecycle state of a screen recording
type RecordingStatus string

const (
	RecordingStatusRecording RecordingStatus = "recording"
	RecordingStatusStopped   RecordingStatus = "stopped"
	RecordingStatusFailed    RecordingStatus = "failed"
)

// Recording tracks one screen-recording capture for a teacher session.
// The replay layer only consumes the stored output, never the capture
// control flow.
type Recording struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	TeacherSessionID uint            `gorm:"not null;index" json:"teacher_session_id"`
	Status           RecordingStatus `gorm:"type:varchar(20);not null;default:'recording'" json:"status"`
	StorageKey       string          `gorm:"type:varchar(255)" json:"-"`
	FileName         string          `gorm:"type:varchar(255)" json:"file_name"`
	Duration         int64           `gorm:"default:0" json:"duration_ms"`
	StartedAt        time.Time       `gorm:"not null" json:"started_at"`
	StoppedAt        *time.Time      `json:"stopped_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	TeacherSession TeacherSession `gorm:"foreignKey:TeacherSessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Recording
func (Recording) TableName() string {
	return "recordings"
}
