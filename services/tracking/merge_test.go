package tracking

import (
	"testing"

	"github.com/classboard/classboard-api/model"
)

func makeCandidate(id string, start, end int64, eventCount int) model.RecordedSession {
	events := make([]model.ReplayEvent, eventCount)
	for i := range events {
		events[i] = model.ReplayEvent{Type: 3, Timestamp: start + int64(i)}
	}
	return model.RecordedSession{
		ID:        id,
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
		Events:    events,
	}
}

func TestMergeOverlappingCandidates(t *testing.T) {
	candidates := []model.RecordedSession{
		makeCandidate("a", 1000, 5000, 3),
		makeCandidate("b", 4000, 9000, 2),
	}

	section := Merge(candidates, "tok", 42, 2000, 8000, 0)
	if len(section.Events) != 5 {
		t.Fatalf("expected 5 merged events, got %d", len(section.Events))
	}
	// bounds extend to the candidate extrema beyond the window
	if section.StartTime != 1000 {
		t.Errorf("expected start 1000, got %d", section.StartTime)
	}
	if section.EndTime != 9000 {
		t.Errorf("expected end 9000, got %d", section.EndTime)
	}
	if section.Duration != 8000 {
		t.Errorf("expected duration 8000, got %d", section.Duration)
	}
}

func TestMergeRespectsBuffer(t *testing.T) {
	// candidate ends 10s before the window opens; included only because
	// the buffer is 30s
	candidates := []model.RecordedSession{
		makeCandidate("early", 1000, 5000, 2),
	}

	section := Merge(candidates, "tok", 1, 15000, 20000, DefaultMergeBufferMs)
	if len(section.Events) != 2 {
		t.Errorf("expected candidate within buffer to merge, got %d events", len(section.Events))
	}

	// with a 1s buffer the same candidate falls outside the window, but the
	// fallback still keeps its events rather than dropping them
	section = Merge(candidates, "tok", 1, 15000, 20000, 1000)
	if len(section.Events) != 2 {
		t.Errorf("expected fallback to keep all events, got %d", len(section.Events))
	}
	if section.StartTime != 1000 || section.EndTime != 5000 {
		t.Errorf("expected fallback bounds from candidates, got [%d, %d]", section.StartTime, section.EndTime)
	}
}

func TestMergeNoEvents(t *testing.T) {
	section := Merge(nil, "tok", 7, 1000, 4000, 0)
	if len(section.Events) != 0 {
		t.Fatalf("expected empty section, got %d events", len(section.Events))
	}
	if section.Events == nil {
		t.Error("expected non-nil events slice for JSON encoding")
	}
	if section.StartTime != 1000 || section.EndTime != 4000 || section.Duration != 3000 {
		t.Errorf("expected window bounds on empty section, got %+v", section)
	}
}

func TestMergeSkipsEventlessCandidates(t *testing.T) {
	candidates := []model.RecordedSession{
		makeCandidate("empty", 1000, 2000, 0),
		makeCandidate("full", 1500, 2500, 1),
	}

	section := Merge(candidates, "tok", 1, 1000, 3000, 0)
	if len(section.Events) != 1 {
		t.Errorf("expected only the non-empty candidate, got %d events", len(section.Events))
	}
}

func TestMergeDeterministicID(t *testing.T) {
	first := Merge(nil, "tok", 42, 2000, 8000, 0)
	second := Merge([]model.RecordedSession{makeCandidate("a", 2500, 3000, 1)}, "tok", 42, 2000, 9999, 0)

	if first.ID == "" {
		t.Fatal("expected a section id")
	}
	// the id depends only on (token, file, window start) so a retried close
	// with more data still targets the same section
	if first.ID != second.ID {
		t.Errorf("expected identical ids, got %s and %s", first.ID, second.ID)
	}

	other := Merge(nil, "tok", 43, 2000, 8000, 0)
	if other.ID == first.ID {
		t.Error("expected different file to produce a different id")
	}
}

func TestMergePreservesProducerOrder(t *testing.T) {
	a := makeCandidate("a", 1000, 2000, 2)
	b := makeCandidate("b", 500, 1500, 2) // earlier bounds, listed second

	section := Merge([]model.RecordedSession{a, b}, "tok", 1, 800, 2200, 0)
	if len(section.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(section.Events))
	}
	// events are concatenated in candidate order, never re-sorted
	if section.Events[0].Timestamp != 1000 {
		t.Errorf("expected first candidate's events first, got timestamp %d", section.Events[0].Timestamp)
	}
}
