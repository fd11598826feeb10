package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReplayEvent is a single captured DOM interaction. The payload is kept
// opaque; only the replay rewriter ever looks inside Data.
type ReplayEvent struct {
	Type      int             `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// RecordedSession is one candidate batch of captured interaction events,
// produced by the in-browser recorder for a bounded recording window.
type RecordedSession struct {
	ID        string        `json:"id"`
	StartTime int64         `json:"startTime"` // Unix milliseconds
	EndTime   int64         `json:"endTime"`
	Duration  int64         `json:"duration"` // milliseconds
	Events    []ReplayEvent `json:"events"`
}

// ReplaySection is the single reconciled recording attached to one
// file-open/close window. Its ID is deterministic for a given
// (session, file, openedAt) so retried submissions stay idempotent.
type ReplaySection struct {
	ID        string        `json:"id"`
	StartTime int64         `json:"startTime"`
	EndTime   int64         `json:"endTime"`
	Duration  int64         `json:"duration"`
	Events    []ReplayEvent `json:"events"`
}

// SectionSummary is the degraded cache form of a ReplaySection with the
// event payloads stripped.
type SectionSummary struct {
	ID          string `json:"id"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	Duration    int64  `json:"duration"`
	EventsCount int    `json:"eventsCount"`
}

// Summarize strips the events from a section, keeping only timing metadata.
func (s ReplaySection) Summarize() SectionSummary {
	return SectionSummary{
		ID:          s.ID,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Duration:    s.Duration,
		EventsCount: len(s.Events),
	}
}

// FileAccessEntry is one file-open/close record within a teacher's login
// session. EntryID is assigned by the server on first persist; until then
// the (FileID, OpenedAt) pair identifies the entry.
type FileAccessEntry struct {
	EntryID    string `json:"_id,omitempty"`
	FileID     uint   `json:"fileId"`
	FileName   string `json:"fileName"`
	FolderID   uint   `json:"folderId"`
	AccessedAt int64  `json:"accessedAt"`
	OpenedAt   int64  `json:"openedAt"`
	ClosedAt   int64  `json:"closedAt,omitempty"`
	Duration   int64  `json:"duration"`
	ActiveTime int64  `json:"activeTime,omitempty"`
	IdleTime   int64  `json:"idleTime,omitempty"`
}

// IsClosed reports whether the entry has completed its open/close cycle.
func (e FileAccessEntry) IsClosed() bool {
	return e.ClosedAt != 0
}

// Accounting is the active/idle split for one viewing window.
type Accounting struct {
	ActiveMs int64 `json:"activeTime"`
	IdleMs   int64 `json:"idleTime"`
}

// SessionRef identifies the backend session a tracking flow writes to.
// It is built once at teacher login and threaded explicitly.
type SessionRef struct {
	SessionID uint   `json:"sessionId"`
	Token     string `json:"sessionToken"`
}

// TeacherSession aggregates the file access log and replay sections for one
// teacher login session. The two arrays live in JSONB; clients only ever
// send incremental slices and the server merges them in.
type TeacherSession struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	Username        string         `gorm:"not null;index" json:"username"`
	SessionToken    string         `gorm:"uniqueIndex;not null;type:varchar(64)" json:"sessionToken"`
	CourseClassName string         `gorm:"type:varchar(100)" json:"courseClassName"`
	SectionName     string         `gorm:"type:varchar(100)" json:"sectionName"`
	SubjectName     string         `gorm:"type:varchar(100)" json:"subjectName"`
	FileAccessLog   datatypes.JSON `gorm:"type:jsonb" json:"-"`
	Sections        datatypes.JSON `gorm:"type:jsonb" json:"-"`
	StartedAt       time.Time      `gorm:"not null" json:"startedAt"`
	EndedAt         *time.Time     `json:"endedAt,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for TeacherSession
func (TeacherSession) TableName() string {
	return "teacher_sessions"
}

// AccessLog decodes the stored file access log. A missing column decodes to
// an empty slice.
func (s *TeacherSession) AccessLog() ([]FileAccessEntry, error) {
	if len(s.FileAccessLog) == 0 {
		return nil, nil
	}
	var entries []FileAccessEntry
	if err := json.Unmarshal(s.FileAccessLog, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SetAccessLog encodes entries into the JSONB column.
func (s *TeacherSession) SetAccessLog(entries []FileAccessEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	s.FileAccessLog = datatypes.JSON(data)
	return nil
}

// SectionList decodes the stored replay sections.
func (s *TeacherSession) SectionList() ([]ReplaySection, error) {
	if len(s.Sections) == 0 {
		return nil, nil
	}
	var sections []ReplaySection
	if err := json.Unmarshal(s.Sections, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// SetSectionList encodes sections into the JSONB column.
func (s *TeacherSession) SetSectionList(sections []ReplaySection) error {
	data, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	s.Sections = datatypes.JSON(data)
	return nil
}

// TeacherSessionRecord is the decoded, wire-level form of a TeacherSession,
// returned from the update endpoint and mirrored into the Redis cache.
type TeacherSessionRecord struct {
	ID              uint              `json:"id"`
	Username        string            `json:"username"`
	SessionToken    string            `json:"sessionToken"`
	CourseClassName string            `json:"courseClassName,omitempty"`
	SectionName     string            `json:"sectionName,omitempty"`
	SubjectName     string            `json:"subjectName,omitempty"`
	FileAccessLog   []FileAccessEntry `json:"fileAccessLog"`
	Sections        []ReplaySection   `json:"section"`
	StartedAt       time.Time         `json:"startedAt"`
	EndedAt         *time.Time        `json:"endedAt,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// ToRecord decodes the JSONB columns into a full record.
func (s *TeacherSession) ToRecord() (*TeacherSessionRecord, error) {
	log, err := s.AccessLog()
	if err != nil {
		return nil, err
	}
	sections, err := s.SectionList()
	if err != nil {
		return nil, err
	}
	return &TeacherSessionRecord{
		ID:              s.ID,
		Username:        s.Username,
		SessionToken:    s.SessionToken,
		CourseClassName: s.CourseClassName,
		SectionName:     s.SectionName,
		SubjectName:     s.SubjectName,
		FileAccessLog:   log,
		Sections:        sections,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

// SessionUpdate is the partial update body accepted by
// PUT /teacher-sessions/:id. FileAccessLog and Sections carry only the
// new/updated slices, never the full accumulated arrays.
type SessionUpdate struct {
	Username        string            `json:"username" validate:"required"`
	SessionToken    string            `json:"sessionToken" validate:"required"`
	CourseClassName string            `json:"courseClassName,omitempty"`
	SectionName     string            `json:"sectionName,omitempty"`
	SubjectName     string            `json:"subjectName,omitempty"`
	FileAccessLog   []FileAccessEntry `json:"fileAccessLog,omitempty"`
	Sections        []ReplaySection   `json:"section,omitempty"`
}

// Redis key patterns for session tracking state
const (
	// RedisKeySessionCache mirrors the full (or degraded) session record
	// Usage: fmt.Sprintf(RedisKeySessionCache, sessionID)
	RedisKeySessionCache = "teacherSession:%d"

	// RedisKeyCandidateSessions holds recorded candidate sessions awaiting
	// reconciliation, cleared after a successful submission
	// Usage: fmt.Sprintf(RedisKeyCandidateSessions, sessionID)
	RedisKeyCandidateSessions = "rrweb_sessions:%d"

	// RedisKeyVideoActiveTime / IdleTime / TotalOpenTime persist in-progress
	// accumulator counters so a reload does not silently lose them
	// Usage: fmt.Sprintf(RedisKeyVideoActiveTime, sessionID)
	RedisKeyVideoActiveTime    = "tracking:%d:videoActiveTime"
	RedisKeyVideoIdleTime      = "tracking:%d:videoIdleTime"
	RedisKeyVideoTotalOpenTime = "tracking:%d:videoTotalOpenTime"
)
