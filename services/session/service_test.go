package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/classboard/classboard-api/model"
)

func cacheTestRecord(logEntries, sections, eventsPerSection int) *model.TeacherSessionRecord {
	record := &model.TeacherSessionRecord{
		ID:           12,
		Username:     "t.one",
		SessionToken: strings.Repeat("ab", 32),
	}
	for i := 0; i < logEntries; i++ {
		record.FileAccessLog = append(record.FileAccessLog, model.FileAccessEntry{
			FileID:   uint(i + 1),
			FileName: "material.pdf",
			OpenedAt: int64(1000 * (i + 1)),
			ClosedAt: int64(1000*(i+1) + 500),
			Duration: 500,
		})
	}
	for i := 0; i < sections; i++ {
		sec := model.ReplaySection{
			ID:        strings.Repeat("c", 24),
			StartTime: int64(1000 * (i + 1)),
			EndTime:   int64(1000*(i+1) + 500),
			Duration:  500,
		}
		for j := 0; j < eventsPerSection; j++ {
			sec.Events = append(sec.Events, model.ReplayEvent{
				Type:      3,
				Timestamp: sec.StartTime + int64(j),
				Data:      json.RawMessage(`{"source":1,"positions":[{"x":100,"y":200}]}`),
			})
		}
		record.Sections = append(record.Sections, sec)
	}
	return record
}

func TestBuildCacheEntryFullRecordFits(t *testing.T) {
	record := cacheTestRecord(2, 1, 3)

	c, data, err := buildCacheEntry(record, 1<<20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Degraded != "" {
		t.Errorf("expected full record cached, got degraded %q", c.Degraded)
	}
	if len(c.Sections) != 1 || len(c.Sections[0].Events) != 3 {
		t.Errorf("expected section events kept, got %+v", c.Sections)
	}
	if len(data) == 0 {
		t.Error("expected encoded payload")
	}
}

func TestBuildCacheEntrySummarizesSections(t *testing.T) {
	// heavy section events push the full form over the limit; summaries fit
	record := cacheTestRecord(2, 5, 200)

	full, _ := json.Marshal(CacheEntry{TeacherSessionRecord: *record})
	c, data, err := buildCacheEntry(record, len(full)-1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Degraded != "sections-summarized" {
		t.Fatalf("expected sections-summarized stage, got %q", c.Degraded)
	}
	if c.Sections != nil {
		t.Error("expected raw sections dropped")
	}
	if len(c.SectionSummaries) != 5 {
		t.Fatalf("expected 5 section summaries, got %d", len(c.SectionSummaries))
	}
	if c.SectionSummaries[0].EventsCount != 200 {
		t.Errorf("expected summaries to keep the event count, got %d", c.SectionSummaries[0].EventsCount)
	}
	if len(data) > len(full) {
		t.Error("expected the degraded form to be smaller than the full record")
	}
}

func TestBuildCacheEntryTruncatesLog(t *testing.T) {
	// the access log itself is too big; only the most recent entries survive
	record := cacheTestRecord(truncatedLogEntries+50, 0, 0)

	// size the limit to exactly fit the truncated form and nothing larger
	target := CacheEntry{TeacherSessionRecord: *record, Degraded: "log-truncated"}
	target.Sections = nil
	target.FileAccessLog = target.FileAccessLog[50:]
	fitted, _ := json.Marshal(target)

	c, _, err := buildCacheEntry(record, len(fitted))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Degraded != "log-truncated" {
		t.Fatalf("expected log-truncated stage, got %q", c.Degraded)
	}
	if len(c.FileAccessLog) != truncatedLogEntries {
		t.Fatalf("expected log cut to %d entries, got %d", truncatedLogEntries, len(c.FileAccessLog))
	}
	// most recent entries, not the oldest
	if c.FileAccessLog[0].FileID != uint(51) {
		t.Errorf("expected oldest entries dropped, first surviving file id is %d", c.FileAccessLog[0].FileID)
	}
}

func TestBuildCacheEntryMetadataFallback(t *testing.T) {
	// a limit nothing fits under still yields the metadata-only stage
	record := cacheTestRecord(10, 2, 10)

	c, data, err := buildCacheEntry(record, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Degraded != "metadata-only" {
		t.Fatalf("expected metadata-only stage, got %q", c.Degraded)
	}
	if c.Sections != nil || c.FileAccessLog != nil {
		t.Error("expected both arrays dropped")
	}
	if c.SessionToken != record.SessionToken || c.Username != record.Username {
		t.Error("expected identity metadata preserved")
	}
	if len(data) == 0 {
		t.Error("expected encoded payload even over the limit")
	}
}

func TestBuildCacheEntryDoesNotMutateRecord(t *testing.T) {
	record := cacheTestRecord(5, 2, 10)

	if _, _, err := buildCacheEntry(record, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Sections) != 2 || len(record.FileAccessLog) != 5 {
		t.Errorf("cache staging mutated the source record: %d sections, %d entries",
			len(record.Sections), len(record.FileAccessLog))
	}
}
