package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/classboard/classboard-api/model"
)

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	lists  map[string][]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, lists: map[string][]string{}}
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeCache) Expire(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func (f *fakeCache) RPushJSON(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], string(data))
	return nil
}

func (f *fakeCache) LRangeAll(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[key], nil
}

func (f *fakeCache) LLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
		delete(f.lists, key)
	}
	return nil
}

func (f *fakeCache) value(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

type fakeSessions struct {
	mu      sync.Mutex
	updates []model.SessionUpdate
	err     error
}

func (f *fakeSessions) ApplyUpdate(_ context.Context, sessionID uint, upd model.SessionUpdate) (*model.TeacherSessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	if f.err != nil {
		return nil, f.err
	}
	return &model.TeacherSessionRecord{ID: sessionID, SessionToken: upd.SessionToken}, nil
}

func (f *fakeSessions) submitted() []model.SessionUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func testTracker(cfg Config) (*Tracker, *fakeCache, *fakeSessions) {
	fc := newFakeCache()
	fs := &fakeSessions{}
	return NewTracker(fc, fs, cfg), fc, fs
}

var testFile = model.File{ID: 3, FolderID: 1, Name: "algebra.pdf", MimeType: "application/pdf"}

func TestCloseWindowSubmitsMergedUpdate(t *testing.T) {
	tracker, _, sessions := testTracker(Config{})
	ctx := context.Background()
	ref := model.SessionRef{SessionID: 12, Token: "tok"}

	if _, err := tracker.OpenWindow(ctx, ref, "t.one", testFile, 1000); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if _, err := tracker.HandleEvent(ctx, ref, testFile.ID, EventMouseMove, 2000); err != nil {
		t.Fatalf("unexpected event error: %v", err)
	}
	err := tracker.Candidates().Add(ctx, ref.SessionID, model.RecordedSession{
		ID:        "c1",
		StartTime: 1500,
		EndTime:   2500,
		Duration:  1000,
		Events:    []model.ReplayEvent{{Type: 3, Timestamp: 1500}},
	})
	if err != nil {
		t.Fatalf("unexpected candidate error: %v", err)
	}

	result, err := tracker.CloseWindow(ctx, ref, testFile.ID, 5000, nil)
	if err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if result.Record == nil {
		t.Fatal("expected the persisted record back")
	}
	if !result.Entry.IsClosed() || result.Entry.Duration != 4000 {
		t.Errorf("expected closed entry spanning 4000ms, got %+v", result.Entry)
	}
	if len(result.Section.Events) != 1 {
		t.Errorf("expected stored candidate merged into the section, got %d events", len(result.Section.Events))
	}

	upd := sessions.submitted()
	if len(upd) != 1 || len(upd[0].FileAccessLog) != 1 || len(upd[0].Sections) != 1 {
		t.Fatalf("expected one incremental update, got %+v", upd)
	}
	if count, _ := tracker.Candidates().Count(ctx, ref.SessionID); count != 0 {
		t.Errorf("expected candidates cleared after close, got %d", count)
	}
	if tracker.OpenWindowCount() != 0 {
		t.Errorf("expected no open windows after close, got %d", tracker.OpenWindowCount())
	}
}

func TestCloseWindowOversizedPayloadStillSent(t *testing.T) {
	// the payload ceiling is a warning threshold, never a truncation point
	tracker, _, sessions := testTracker(Config{PayloadWarnBytes: 1})
	ctx := context.Background()
	ref := model.SessionRef{SessionID: 12, Token: "tok"}

	if _, err := tracker.OpenWindow(ctx, ref, "t.one", testFile, 1000); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	result, err := tracker.CloseWindow(ctx, ref, testFile.ID, 5000, nil)
	if err != nil {
		t.Fatalf("expected oversized payload submitted anyway, got %v", err)
	}
	if result.Record == nil || len(sessions.submitted()) != 1 {
		t.Errorf("expected one submission despite the size warning")
	}
}

func TestCloseWindowClearsStateOnSubmitFailure(t *testing.T) {
	tracker, cache, sessions := testTracker(Config{})
	sessions.err = errors.New("database unavailable")
	ctx := context.Background()
	ref := model.SessionRef{SessionID: 12, Token: "tok"}

	if _, err := tracker.OpenWindow(ctx, ref, "t.one", testFile, 1000); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := tracker.Candidates().Add(ctx, ref.SessionID, model.RecordedSession{
		ID: "c1", StartTime: 1500, EndTime: 2500,
		Events: []model.ReplayEvent{{Type: 3, Timestamp: 1500}},
	}); err != nil {
		t.Fatalf("unexpected candidate error: %v", err)
	}

	result, err := tracker.CloseWindow(ctx, ref, testFile.ID, 5000, nil)
	if err == nil {
		t.Fatal("expected the submit failure surfaced")
	}
	// the partial result still comes back so the caller can report the loss
	if result == nil || result.Entry.Duration != 4000 {
		t.Fatalf("expected partial result despite failure, got %+v", result)
	}

	// recorder state is gone regardless: no retry loop
	if count, _ := tracker.Candidates().Count(ctx, ref.SessionID); count != 0 {
		t.Errorf("expected candidates cleared after failed submit, got %d", count)
	}
	activeKey := fmt.Sprintf(model.RedisKeyVideoActiveTime, ref.SessionID)
	if got := cache.value(activeKey); got != "0" {
		t.Errorf("expected counters reset after failed submit, got %q", got)
	}
	if _, err := tracker.CloseWindow(ctx, ref, testFile.ID, 6000, nil); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("expected window gone after failed close, got %v", err)
	}
}

func TestOpenWindowRejectsSecondOpen(t *testing.T) {
	tracker, _, _ := testTracker(Config{})
	ctx := context.Background()
	ref := model.SessionRef{SessionID: 12, Token: "tok"}

	if _, err := tracker.OpenWindow(ctx, ref, "t.one", testFile, 1000); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if _, err := tracker.OpenWindow(ctx, ref, "t.one", testFile, 2000); !errors.Is(err, ErrWindowAlreadyOpen) {
		t.Errorf("expected ErrWindowAlreadyOpen, got %v", err)
	}
}

func TestHandleEventWithoutWindow(t *testing.T) {
	tracker, _, _ := testTracker(Config{})
	ref := model.SessionRef{SessionID: 12, Token: "tok"}

	if _, err := tracker.HandleEvent(context.Background(), ref, 99, EventTick, 1000); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("expected ErrWindowNotFound, got %v", err)
	}
}
