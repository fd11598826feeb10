package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/services/tracking"
	"github.com/classboard/classboard-api/utils/cache"
	"github.com/classboard/classboard-api/utils/ids"
)

var (
	ErrSessionNotFound = errors.New("teacher session not found")
	ErrTokenMismatch   = errors.New("session token does not match")
)

const (
	// DefaultCacheLimitBytes is the soft ceiling for one cached session
	// record. Above it the cached form degrades stage by stage.
	DefaultCacheLimitBytes = 5 * 1024 * 1024

	cacheTTL = 24 * time.Hour

	// degraded stage 3 keeps only the most recent log entries
	truncatedLogEntries = 100
)

// Service manages teacher session records: one row per login session,
// accumulating the file access log and replay sections as JSONB.
type Service struct {
	db         *gorm.DB
	cache      *cache.RedisCache
	cacheLimit int
}

// NewService creates a session service. cacheLimitBytes <= 0 selects the
// default.
func NewService(db *gorm.DB, redisCache *cache.RedisCache, cacheLimitBytes int) *Service {
	if cacheLimitBytes <= 0 {
		cacheLimitBytes = DefaultCacheLimitBytes
	}
	return &Service{db: db, cache: redisCache, cacheLimit: cacheLimitBytes}
}

// Start creates a new session row for a teacher login and returns the
// reference the client threads through every tracking call.
func (s *Service) Start(ctx context.Context, user *model.User) (*model.TeacherSession, model.SessionRef, error) {
	token, err := ids.NewSessionToken()
	if err != nil {
		return nil, model.SessionRef{}, err
	}
	sess := &model.TeacherSession{
		UserID:       user.ID,
		Username:     user.Username,
		SessionToken: token,
		StartedAt:    time.Now(),
	}
	if err := sess.SetAccessLog([]model.FileAccessEntry{}); err != nil {
		return nil, model.SessionRef{}, err
	}
	if err := sess.SetSectionList([]model.ReplaySection{}); err != nil {
		return nil, model.SessionRef{}, err
	}

	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, model.SessionRef{}, fmt.Errorf("failed to create teacher session: %w", err)
	}

	return sess, model.SessionRef{SessionID: sess.ID, Token: sess.SessionToken}, nil
}

// Get returns the full decoded record for a session
func (s *Service) Get(ctx context.Context, sessionID uint) (*model.TeacherSessionRecord, error) {
	var sess model.TeacherSession
	if err := s.db.WithContext(ctx).First(&sess, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess.ToRecord()
}

// GetByToken returns the record matching a session token
func (s *Service) GetByToken(ctx context.Context, token string) (*model.TeacherSessionRecord, error) {
	var sess model.TeacherSession
	if err := s.db.WithContext(ctx).Where("session_token = ?", token).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess.ToRecord()
}

// ListForUser returns the most recent sessions for a teacher, newest first
func (s *Service) ListForUser(ctx context.Context, userID uint, limit int) ([]model.TeacherSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var sessions []model.TeacherSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// End marks a session finished. Late update submissions are still accepted
// afterwards; a close request may outlive the logout that ends the session.
func (s *Service) End(ctx context.Context, sessionID uint) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&model.TeacherSession{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Update("ended_at", &now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ApplyUpdate merges one incremental update into a session row. The update
// carries only the new/changed log entries and sections; this is the single
// place where they are folded into the accumulated arrays.
//
// Log entries merge through deduplication so a retried submission cannot
// double an entry. Sections append only when their id is not already
// present, which together with deterministic section ids makes retries
// idempotent. Runs under a row lock; two concurrent closes for different
// files serialize here instead of overwriting each other.
func (s *Service) ApplyUpdate(ctx context.Context, sessionID uint, upd model.SessionUpdate) (*model.TeacherSessionRecord, error) {
	var record *model.TeacherSessionRecord

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess model.TeacherSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sess, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if upd.SessionToken != sess.SessionToken {
			return ErrTokenMismatch
		}

		existing, err := sess.AccessLog()
		if err != nil {
			return fmt.Errorf("failed to decode access log: %w", err)
		}
		merged := tracking.Deduplicate(append(existing, upd.FileAccessLog...))
		for i := range merged {
			if merged[i].EntryID == "" {
				merged[i].EntryID = uuid.NewString()
			}
		}
		if err := sess.SetAccessLog(merged); err != nil {
			return err
		}

		sections, err := sess.SectionList()
		if err != nil {
			return fmt.Errorf("failed to decode sections: %w", err)
		}
		known := make(map[string]bool, len(sections))
		for _, sec := range sections {
			known[sec.ID] = true
		}
		for _, sec := range upd.Sections {
			if known[sec.ID] {
				continue
			}
			sections = append(sections, sec)
			known[sec.ID] = true
		}
		if err := sess.SetSectionList(sections); err != nil {
			return err
		}

		if upd.CourseClassName != "" {
			sess.CourseClassName = upd.CourseClassName
		}
		if upd.SectionName != "" {
			sess.SectionName = upd.SectionName
		}
		if upd.SubjectName != "" {
			sess.SubjectName = upd.SubjectName
		}

		if err := tx.Save(&sess).Error; err != nil {
			return fmt.Errorf("failed to save teacher session: %w", err)
		}

		record, err = sess.ToRecord()
		return err
	})
	if err != nil {
		return nil, err
	}

	s.CacheRecord(ctx, record)
	return record, nil
}

// CacheEntry is the Redis mirror of a session record. Degraded stages
// replace the heavy arrays and note what was dropped.
type CacheEntry struct {
	model.TeacherSessionRecord
	SectionSummaries []model.SectionSummary `json:"sectionSummaries,omitempty"`
	Degraded         string                 `json:"degraded,omitempty"`
}

// CacheRecord mirrors a session record into Redis, degrading the cached
// form until it fits under the size limit. Caching never fails the caller;
// the database row is the source of truth and the worst outcome is a cache
// miss.
//
// Stages, tried in order until one fits:
//  1. the full record
//  2. sections replaced by event-less summaries
//  3. summaries plus the access log truncated to the most recent entries
//  4. metadata only
func (s *Service) CacheRecord(ctx context.Context, record *model.TeacherSessionRecord) {
	if record == nil {
		return
	}
	key := fmt.Sprintf(model.RedisKeySessionCache, record.ID)

	c, data, err := buildCacheEntry(record, s.cacheLimit)
	if err != nil {
		log.Printf("Warning: failed to encode session %d for caching: %v", record.ID, err)
		return
	}
	if c.Degraded != "" {
		log.Printf("Warning: session %d cached degraded (%s, %d bytes)", record.ID, c.Degraded, len(data))
	}
	if err := s.cache.Set(ctx, key, data, cacheTTL); err != nil {
		log.Printf("Warning: failed to cache session %d: %v", record.ID, err)
	}
}

// buildCacheEntry selects the first cached form of a record that fits under
// the limit. The last stage is used even when it does not fit; a too-large
// metadata entry is still more useful than no cache at all.
func buildCacheEntry(record *model.TeacherSessionRecord, limit int) (CacheEntry, []byte, error) {
	summaries := make([]model.SectionSummary, 0, len(record.Sections))
	for _, sec := range record.Sections {
		summaries = append(summaries, sec.Summarize())
	}

	stages := []func() CacheEntry{
		func() CacheEntry {
			return CacheEntry{TeacherSessionRecord: *record}
		},
		func() CacheEntry {
			c := CacheEntry{TeacherSessionRecord: *record, Degraded: "sections-summarized"}
			c.Sections = nil
			c.SectionSummaries = summaries
			return c
		},
		func() CacheEntry {
			c := CacheEntry{TeacherSessionRecord: *record, Degraded: "log-truncated"}
			c.Sections = nil
			c.SectionSummaries = summaries
			if len(c.FileAccessLog) > truncatedLogEntries {
				c.FileAccessLog = c.FileAccessLog[len(c.FileAccessLog)-truncatedLogEntries:]
			}
			return c
		},
	}

	for _, build := range stages {
		c := build()
		data, err := json.Marshal(c)
		if err != nil {
			return CacheEntry{}, nil, err
		}
		if len(data) <= limit {
			return c, data, nil
		}
	}

	c := CacheEntry{TeacherSessionRecord: *record, Degraded: "metadata-only"}
	c.Sections = nil
	c.FileAccessLog = nil
	data, err := json.Marshal(c)
	return c, data, err
}

// CachedRecord returns the Redis mirror of a session, if present. Callers
// fall back to Get on a miss or a degraded entry.
func (s *Service) CachedRecord(ctx context.Context, sessionID uint) (*CacheEntry, error) {
	var c CacheEntry
	key := fmt.Sprintf(model.RedisKeySessionCache, sessionID)
	if err := s.cache.GetJSON(ctx, key, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
