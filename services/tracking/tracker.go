package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/classboard/classboard-api/model"
)

var (
	ErrWindowAlreadyOpen = errors.New("a viewing window is already open for this file")
	ErrWindowNotFound    = errors.New("no open viewing window for this file")
)

// Viewer event types posted by the dashboard while a window is open
const (
	EventPlay      = "play"
	EventPause     = "pause"
	EventSeek      = "seek"
	EventEnded     = "ended"
	EventMouseMove = "mousemove"
	EventTick      = "tick"
)

// counterTTL bounds the persisted accumulator counters
const counterTTL = 24 * time.Hour

// SessionStore persists incremental session updates. Implemented by the
// session service; declared here so the tracker does not depend on it.
type SessionStore interface {
	ApplyUpdate(ctx context.Context, sessionID uint, upd model.SessionUpdate) (*model.TeacherSessionRecord, error)
}

// Config carries the tracking tunables. The idle threshold and merge
// buffer are product decisions, not derived invariants, so they are
// configuration rather than constants.
type Config struct {
	IdleThresholdMs  int64
	MergeBufferMs    int64
	PayloadWarnBytes int
}

// window is the state of one open file-viewing window
type window struct {
	ref      model.SessionRef
	username string
	fileID   uint
	fileName string
	folderID uint
	openedAt int64
	acc      *Accumulator
	log      []model.FileAccessEntry
}

type windowKey struct {
	sessionID uint
	fileID    uint
}

// Tracker owns the open viewing windows for all active teacher sessions.
// It is the session-scoped replacement for what would otherwise be
// module-level mutable recorder state: every window is created on open and
// disposed on close, stale ones are swept by a cron job.
type Tracker struct {
	mu         sync.Mutex
	windows    map[windowKey]*window
	cache      Cache
	candidates *CandidateStore
	sessions   SessionStore
	cfg        Config
}

// NewTracker creates a tracker
func NewTracker(redisCache Cache, sessions SessionStore, cfg Config) *Tracker {
	if cfg.IdleThresholdMs <= 0 {
		cfg.IdleThresholdMs = DefaultIdleThresholdMs
	}
	if cfg.MergeBufferMs <= 0 {
		cfg.MergeBufferMs = DefaultMergeBufferMs
	}
	if cfg.PayloadWarnBytes <= 0 {
		cfg.PayloadWarnBytes = DefaultPayloadWarnBytes
	}
	return &Tracker{
		windows:    make(map[windowKey]*window),
		cache:      redisCache,
		candidates: NewCandidateStore(redisCache),
		sessions:   sessions,
		cfg:        cfg,
	}
}

// Candidates exposes the candidate store for the recording intake handler
func (t *Tracker) Candidates() *CandidateStore {
	return t.candidates
}

// OpenWindow starts tracking a file view. Only one window may be open per
// (session, file); the UI enforces a single open modal and the tracker
// rejects anything else.
func (t *Tracker) OpenWindow(ctx context.Context, ref model.SessionRef, username string, file model.File, openedAt int64) (model.FileAccessEntry, error) {
	key := windowKey{sessionID: ref.SessionID, fileID: file.ID}

	mode := ModePointer
	if file.IsVideo() {
		mode = ModeVideo
	}

	entry := model.FileAccessEntry{
		FileID:     file.ID,
		FileName:   file.Name,
		FolderID:   file.FolderID,
		AccessedAt: openedAt,
		OpenedAt:   openedAt,
	}

	t.mu.Lock()
	if _, exists := t.windows[key]; exists {
		t.mu.Unlock()
		return model.FileAccessEntry{}, ErrWindowAlreadyOpen
	}
	w := &window{
		ref:      ref,
		username: username,
		fileID:   file.ID,
		fileName: file.Name,
		folderID: file.FolderID,
		openedAt: openedAt,
		acc:      NewAccumulator(mode, openedAt, t.cfg.IdleThresholdMs),
		log:      RecordOpen(nil, entry),
	}
	t.windows[key] = w
	t.mu.Unlock()

	t.persistCounters(ctx, ref.SessionID, w.acc.Snapshot(openedAt))
	return w.log[0], nil
}

// HandleEvent feeds one viewer event into the window's accumulator and
// best-effort persists the running counters.
func (t *Tracker) HandleEvent(ctx context.Context, ref model.SessionRef, fileID uint, eventType string, ts int64) (model.Accounting, error) {
	key := windowKey{sessionID: ref.SessionID, fileID: fileID}

	t.mu.Lock()
	w, ok := t.windows[key]
	if !ok {
		t.mu.Unlock()
		return model.Accounting{}, ErrWindowNotFound
	}

	switch eventType {
	case EventPlay:
		w.acc.OnPlay(ts)
	case EventPause:
		w.acc.OnPause(ts)
	case EventSeek:
		w.acc.OnSeek(ts)
	case EventEnded:
		w.acc.OnEnded(ts)
	case EventMouseMove:
		w.acc.OnMouseActivity(ts)
	case EventTick:
		w.acc.Tick(ts)
	default:
		t.mu.Unlock()
		return model.Accounting{}, fmt.Errorf("unknown viewer event type: %s", eventType)
	}
	snapshot := w.acc.Snapshot(ts)
	t.mu.Unlock()

	t.persistCounters(ctx, ref.SessionID, snapshot)
	return snapshot, nil
}

// CloseResult is everything produced by closing one viewing window
type CloseResult struct {
	Record     *model.TeacherSessionRecord `json:"record,omitempty"`
	Entry      model.FileAccessEntry       `json:"entry"`
	Section    model.ReplaySection         `json:"section"`
	Accounting model.Accounting            `json:"accounting"`
	Warning    string                      `json:"warning,omitempty"`
}

// CloseWindow finishes a viewing window: stops the accounting, merges the
// recorded candidate sessions against the window, builds the incremental
// update and submits it. Window state, counters and candidates are cleared
// even when the submission fails; re-submission loops are worse than the
// accepted at-most-once data loss.
func (t *Tracker) CloseWindow(ctx context.Context, ref model.SessionRef, fileID uint, closedAt int64, extra []model.RecordedSession) (*CloseResult, error) {
	key := windowKey{sessionID: ref.SessionID, fileID: fileID}

	t.mu.Lock()
	w, ok := t.windows[key]
	if ok {
		delete(t.windows, key)
	}
	t.mu.Unlock()
	if !ok {
		return nil, ErrWindowNotFound
	}

	accounting := w.acc.Stop(closedAt)

	stored, err := t.candidates.List(ctx, ref.SessionID)
	if err != nil {
		log.Printf("Warning: failed to load candidate sessions for session %d: %v", ref.SessionID, err)
	}
	candidates := append(stored, extra...)

	section := Merge(candidates, ref.Token, fileID, w.openedAt, closedAt, t.cfg.MergeBufferMs)

	result := &CloseResult{
		Section:    section,
		Accounting: accounting,
	}
	if len(section.Events) == 0 {
		result.Warning = "no recorded interaction events for this window"
		log.Printf("Warning: session %d file %d closed with no recorded events", ref.SessionID, fileID)
	}

	_, closedEntry := RecordClose(w.log, model.FileAccessEntry{
		FileID:     fileID,
		FileName:   w.fileName,
		FolderID:   w.folderID,
		AccessedAt: w.openedAt,
		OpenedAt:   w.openedAt,
		ClosedAt:   closedAt,
		Duration:   accounting.ActiveMs + accounting.IdleMs,
		ActiveTime: accounting.ActiveMs,
		IdleTime:   accounting.IdleMs,
	})
	result.Entry = closedEntry

	payload := BuildUpdatePayload(ref, w.username, closedEntry, section)
	if size, err := PayloadSize(payload); err == nil && size > t.cfg.PayloadWarnBytes {
		log.Printf("Warning: session %d update payload is %d bytes (ceiling %d); sending anyway", ref.SessionID, size, t.cfg.PayloadWarnBytes)
	}

	record, submitErr := t.sessions.ApplyUpdate(ctx, ref.SessionID, payload)

	// clear recorder state regardless of the submission outcome
	if err := t.candidates.Clear(ctx, ref.SessionID); err != nil {
		log.Printf("Warning: failed to clear candidate sessions for session %d: %v", ref.SessionID, err)
	}
	t.resetCounters(ctx, ref.SessionID)

	if submitErr != nil {
		log.Printf("Error: failed to submit session %d update for file %d: %v", ref.SessionID, fileID, submitErr)
		return result, fmt.Errorf("failed to persist session update: %w", submitErr)
	}

	result.Record = record
	return result, nil
}

// CloseStale force-closes windows that have been open longer than maxAge.
// Invoked from a cron job; a window left behind by a dead client would
// otherwise pin its accumulator forever.
func (t *Tracker) CloseStale(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	t.mu.Lock()
	var stale []*window
	for key, w := range t.windows {
		if w.openedAt < cutoff {
			stale = append(stale, w)
			delete(t.windows, key)
		}
	}
	t.mu.Unlock()

	now := time.Now().UnixMilli()
	for _, w := range stale {
		// re-register briefly so CloseWindow can pop it
		t.mu.Lock()
		t.windows[windowKey{sessionID: w.ref.SessionID, fileID: w.fileID}] = w
		t.mu.Unlock()
		if _, err := t.CloseWindow(ctx, w.ref, w.fileID, now, nil); err != nil {
			log.Printf("Warning: failed to force-close stale window (session %d, file %d): %v", w.ref.SessionID, w.fileID, err)
		}
	}
	return len(stale)
}

// OpenWindowCount reports the number of currently open windows
func (t *Tracker) OpenWindowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

func (t *Tracker) persistCounters(ctx context.Context, sessionID uint, acc model.Accounting) {
	total := acc.ActiveMs + acc.IdleMs
	keys := map[string]int64{
		fmt.Sprintf(model.RedisKeyVideoActiveTime, sessionID):    acc.ActiveMs,
		fmt.Sprintf(model.RedisKeyVideoIdleTime, sessionID):      acc.IdleMs,
		fmt.Sprintf(model.RedisKeyVideoTotalOpenTime, sessionID): total,
	}
	for k, v := range keys {
		if err := t.cache.Set(ctx, k, v, counterTTL); err != nil {
			// best-effort: losing a counter snapshot is acceptable
			log.Printf("Warning: failed to persist counter %s: %v", k, err)
			return
		}
	}
}

func (t *Tracker) resetCounters(ctx context.Context, sessionID uint) {
	t.persistCounters(ctx, sessionID, model.Accounting{})
}
