package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/utils/auth"
)

const (
	// staleWindowAge is how long a viewing window may stay open before the
	// sweeper assumes the client died without closing it
	staleWindowAge = 6 * time.Hour

	// idleReplayAge is how long a replay viewer may go silent before its
	// instance is disposed
	idleReplayAge = time.Hour

	// abandonedSessionAge is how long a login session may run before the
	// daily cleanup force-ends it
	abandonedSessionAge = 24 * time.Hour

	// cronLogRetention is how long completed cron job logs are kept
	cronLogRetention = 30 * 24 * time.Hour
)

// CloseStaleWindows force-closes viewing windows abandoned by dead clients.
// Runs every 15 minutes; each close goes through the normal reconcile and
// submit path so the accumulated accounting is not lost.
func (m *CronManager) CloseStaleWindows() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "close_stale_windows"

	closed := m.tracker.CloseStale(ctx, staleWindowAge)
	if closed == 0 {
		m.logJobComplete(jobName, "No stale windows found")
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Force-closed %d stale windows", closed))
}

// PruneIdleReplays disposes replay instances whose viewer went away without
// calling dispose. Runs every 30 minutes.
func (m *CronManager) PruneIdleReplays() {
	jobName := "prune_idle_replays"

	pruned := m.registry.PruneIdle(idleReplayAge)
	if pruned == 0 {
		m.logJobComplete(jobName, "No idle replays found")
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Disposed %d idle replay instances", pruned))
}

// CleanupExpiredTokens removes expired entries from the token blacklist.
// Runs hourly.
func (m *CronManager) CleanupExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_expired_tokens"

	if err := auth.NewBlacklistService(m.db).CleanupExpiredTokens(ctx); err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to cleanup expired tokens: %w", err))
		return
	}
	m.logJobComplete(jobName, "Expired blacklist entries removed")
}

// CleanupOldData ends teacher sessions abandoned without a logout and trims
// old cron job logs. Runs daily at 2 AM.
func (m *CronManager) CleanupOldData() {
	jobName := "cleanup_old_data"

	now := time.Now()
	sessionCutoff := now.Add(-abandonedSessionAge)

	result := m.db.Model(&model.TeacherSession{}).
		Where("ended_at IS NULL AND started_at < ?", sessionCutoff).
		Update("ended_at", &now)
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to end abandoned sessions: %w", result.Error))
		return
	}
	endedSessions := result.RowsAffected

	logCutoff := now.Add(-cronLogRetention)
	logResult := m.db.
		Where("started_at < ? AND status != ?", logCutoff, "running").
		Delete(&model.CronJobLog{})
	if logResult.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to trim cron job logs: %w", logResult.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf(
		"Ended %d abandoned sessions, removed %d old cron logs",
		endedSessions, logResult.RowsAffected,
	))
}
