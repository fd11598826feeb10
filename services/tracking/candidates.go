package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/classboard/classboard-api/model"
)

// Cache is the subset of the Redis wrapper the tracking package relies on.
// Satisfied by utils/cache.RedisCache.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Expire(ctx context.Context, key string, expiration time.Duration) error
	RPushJSON(ctx context.Context, key string, value interface{}) error
	LRangeAll(ctx context.Context, key string) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// CandidateTTL bounds how long unreconciled recorded sessions survive in
// Redis before a cleanup job may drop them.
const CandidateTTL = 24 * time.Hour

// CandidateStore keeps recorded candidate sessions awaiting reconciliation.
// The list is cleared after each successful submission.
type CandidateStore struct {
	cache Cache
}

// NewCandidateStore creates a candidate store backed by Redis
func NewCandidateStore(redisCache Cache) *CandidateStore {
	return &CandidateStore{cache: redisCache}
}

func candidateKey(sessionID uint) string {
	return fmt.Sprintf(model.RedisKeyCandidateSessions, sessionID)
}

// Add appends a recorded session to the candidate list
func (s *CandidateStore) Add(ctx context.Context, sessionID uint, rec model.RecordedSession) error {
	key := candidateKey(sessionID)
	if err := s.cache.RPushJSON(ctx, key, rec); err != nil {
		return fmt.Errorf("failed to store candidate session: %w", err)
	}
	s.cache.Expire(ctx, key, CandidateTTL)
	return nil
}

// List returns all candidate sessions for a teacher session. Entries that
// fail to decode are skipped with a warning; one corrupt candidate should
// not block reconciliation of the rest.
func (s *CandidateStore) List(ctx context.Context, sessionID uint) ([]model.RecordedSession, error) {
	raw, err := s.cache.LRangeAll(ctx, candidateKey(sessionID))
	if err != nil {
		return nil, err
	}

	candidates := make([]model.RecordedSession, 0, len(raw))
	for _, item := range raw {
		var rec model.RecordedSession
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			log.Printf("Warning: skipping undecodable candidate session for session %d: %v", sessionID, err)
			continue
		}
		candidates = append(candidates, rec)
	}
	return candidates, nil
}

// Count returns the number of stored candidates
func (s *CandidateStore) Count(ctx context.Context, sessionID uint) (int64, error) {
	return s.cache.LLen(ctx, candidateKey(sessionID))
}

// Clear drops the candidate list after a successful submission
func (s *CandidateStore) Clear(ctx context.Context, sessionID uint) error {
	return s.cache.Delete(ctx, candidateKey(sessionID))
}
