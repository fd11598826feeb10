package tracking

import (
	"testing"

	"github.com/classboard/classboard-api/model"
)

func TestRecordOpenDuplicateGuard(t *testing.T) {
	entry := model.FileAccessEntry{FileID: 3, FileName: "algebra.pdf", OpenedAt: 1000}

	log := RecordOpen(nil, entry)
	log = RecordOpen(log, entry) // duplicate open event
	if len(log) != 1 {
		t.Fatalf("expected 1 entry after duplicate open, got %d", len(log))
	}
	if log[0].IsClosed() {
		t.Error("open entry must not carry a close time")
	}
}

func TestRecordOpenStripsCloseState(t *testing.T) {
	// an open record is an open record even if the caller hands over a
	// pre-populated entry
	entry := model.FileAccessEntry{FileID: 3, OpenedAt: 1000, ClosedAt: 5000, Duration: 4000}
	log := RecordOpen(nil, entry)
	if log[0].ClosedAt != 0 || log[0].Duration != 0 {
		t.Errorf("expected close state stripped, got %+v", log[0])
	}
}

func TestRecordCloseCompletesInPlace(t *testing.T) {
	open := model.FileAccessEntry{EntryID: "srv-1", FileID: 3, FileName: "algebra.pdf", OpenedAt: 1000}
	log := RecordOpen(nil, open)

	closed := model.FileAccessEntry{FileID: 3, OpenedAt: 1000, ClosedAt: 6000, ActiveTime: 4000, IdleTime: 1000}
	log, got := RecordClose(log, closed)

	if len(log) != 1 {
		t.Fatalf("expected in-place completion, got %d entries", len(log))
	}
	if got.EntryID != "srv-1" {
		t.Errorf("expected server id preserved, got %q", got.EntryID)
	}
	if got.Duration != 5000 {
		t.Errorf("expected derived duration 5000, got %d", got.Duration)
	}
	if got.FileName != "algebra.pdf" {
		t.Errorf("expected file name preserved, got %q", got.FileName)
	}
	if got.ActiveTime != 4000 || got.IdleTime != 1000 {
		t.Errorf("expected accounting carried over, got %+v", got)
	}
}

func TestRecordCloseSynthesizesMissingOpen(t *testing.T) {
	closed := model.FileAccessEntry{FileID: 9, OpenedAt: 1000, ClosedAt: 3000}
	log, got := RecordClose(nil, closed)
	if len(log) != 1 {
		t.Fatalf("expected synthesized entry, got %d", len(log))
	}
	if !got.IsClosed() || got.Duration != 2000 {
		t.Errorf("expected complete synthesized entry, got %+v", got)
	}
}

func TestDeduplicatePreference(t *testing.T) {
	entries := []model.FileAccessEntry{
		// same server id, the closed one must win
		{EntryID: "a", FileID: 1, OpenedAt: 100},
		{EntryID: "a", FileID: 1, OpenedAt: 100, ClosedAt: 500, Duration: 400},
		// same composite key, the one with a server id must win even though
		// the id-less one has a larger duration
		{FileID: 2, OpenedAt: 200, ClosedAt: 900, Duration: 700},
		{EntryID: "b", FileID: 2, OpenedAt: 200, ClosedAt: 600, Duration: 400},
		// distinct identity, survives untouched
		{FileID: 3, OpenedAt: 300},
	}

	got := Deduplicate(entries)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	byFile := map[uint]model.FileAccessEntry{}
	for _, e := range got {
		byFile[e.FileID] = e
	}
	if e := byFile[1]; !e.IsClosed() {
		t.Errorf("expected closed duplicate to survive for file 1, got %+v", e)
	}
	if e := byFile[2]; e.EntryID != "b" {
		t.Errorf("expected entry with server id to survive for file 2, got %+v", e)
	}
	if _, ok := byFile[3]; !ok {
		t.Error("expected untouched entry for file 3")
	}
}

func TestDeduplicateLargerDurationWins(t *testing.T) {
	entries := []model.FileAccessEntry{
		{FileID: 1, OpenedAt: 100, ClosedAt: 400, Duration: 300},
		{FileID: 1, OpenedAt: 100, ClosedAt: 900, Duration: 800},
	}
	got := Deduplicate(entries)
	if len(got) != 1 || got[0].Duration != 800 {
		t.Fatalf("expected single entry with duration 800, got %+v", got)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	entries := []model.FileAccessEntry{
		{EntryID: "a", FileID: 1, OpenedAt: 100, ClosedAt: 200, Duration: 100},
		{FileID: 1, OpenedAt: 100},
		{FileID: 2, OpenedAt: 300},
	}

	once := Deduplicate(entries)
	twice := Deduplicate(once)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("second pass changed entry %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestBuildUpdatePayloadIsIncremental(t *testing.T) {
	ref := model.SessionRef{SessionID: 12, Token: "tok"}
	entry := model.FileAccessEntry{FileID: 3, OpenedAt: 1000, ClosedAt: 2000, Duration: 1000}
	section := model.ReplaySection{ID: "abc", StartTime: 1000, EndTime: 2000}

	upd := BuildUpdatePayload(ref, "t.one", entry, section)
	if upd.SessionToken != "tok" || upd.Username != "t.one" {
		t.Errorf("unexpected payload identity: %+v", upd)
	}
	// one window closed means exactly one entry and one section, the server
	// owns the accumulated arrays
	if len(upd.FileAccessLog) != 1 || len(upd.Sections) != 1 {
		t.Errorf("expected single-element arrays, got %d entries and %d sections",
			len(upd.FileAccessLog), len(upd.Sections))
	}
}

func TestPayloadSize(t *testing.T) {
	upd := BuildUpdatePayload(model.SessionRef{SessionID: 1, Token: "tok"}, "u",
		model.FileAccessEntry{FileID: 1, OpenedAt: 1}, model.ReplaySection{ID: "s"})

	size, err := PayloadSize(upd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size <= 0 {
		t.Errorf("expected positive size, got %d", size)
	}
	if size >= DefaultPayloadWarnBytes {
		t.Errorf("tiny payload above warn threshold: %d", size)
	}
}
