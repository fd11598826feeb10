package tracking

import (
	"encoding/json"

	"github.com/classboard/classboard-api/model"
)

// DefaultPayloadWarnBytes is the soft ceiling for a serialized update
// payload. Above it a warning is logged but nothing is truncated
// client-side: the server decides what, if anything, to drop.
const DefaultPayloadWarnBytes = 9 * 1024 * 1024

type entryKey struct {
	fileID   uint
	openedAt int64
}

func keyOf(e model.FileAccessEntry) entryKey {
	return entryKey{fileID: e.FileID, openedAt: e.OpenedAt}
}

// moreComplete reports whether a should survive over b when both carry the
// same identity. Preference: has a server id, then has a close time, then
// the larger duration.
func moreComplete(a, b model.FileAccessEntry) bool {
	if (a.EntryID != "") != (b.EntryID != "") {
		return a.EntryID != ""
	}
	if a.IsClosed() != b.IsClosed() {
		return a.IsClosed()
	}
	return a.Duration > b.Duration
}

// RecordOpen appends an open-state entry unless an open entry for the same
// (fileID, openedAt) already exists. Guards against duplicate-open races.
func RecordOpen(log []model.FileAccessEntry, entry model.FileAccessEntry) []model.FileAccessEntry {
	for _, e := range log {
		if keyOf(e) == keyOf(entry) && !e.IsClosed() {
			return log
		}
	}
	entry.ClosedAt = 0
	entry.Duration = 0
	return append(log, entry)
}

// RecordClose locates the matching open entry by (fileID, openedAt) and
// completes it in place, preserving any server-assigned id. If no open
// entry exists, a complete entry is synthesized instead.
// Returns the updated log and the closed entry.
func RecordClose(log []model.FileAccessEntry, closed model.FileAccessEntry) ([]model.FileAccessEntry, model.FileAccessEntry) {
	if closed.Duration == 0 {
		d := closed.ClosedAt - closed.OpenedAt
		if d > 0 {
			closed.Duration = d
		}
	}

	for i, e := range log {
		if keyOf(e) == keyOf(closed) && !e.IsClosed() {
			e.ClosedAt = closed.ClosedAt
			e.Duration = closed.Duration
			e.ActiveTime = closed.ActiveTime
			e.IdleTime = closed.IdleTime
			if e.FileName == "" {
				e.FileName = closed.FileName
			}
			log[i] = e
			return log, e
		}
	}

	// no open entry found, keep the data anyway
	return append(log, closed), closed
}

// Deduplicate collapses a log so that exactly one entry survives per
// identity, preferring the most complete duplicate. Two phases: first by
// server-assigned id, then the result plus id-less entries by the
// (fileID, openedAt) composite key. Entries reach the log from different
// paths (local optimistic state, server-echoed state) with partially
// overlapping identity, which is why a single-keyed pass is not enough.
// Running the pass twice yields the same result as running it once.
func Deduplicate(entries []model.FileAccessEntry) []model.FileAccessEntry {
	if len(entries) <= 1 {
		return entries
	}

	// phase 1: collapse by server id
	byID := make(map[string]int)
	phase1 := make([]model.FileAccessEntry, 0, len(entries))
	for _, e := range entries {
		if e.EntryID == "" {
			phase1 = append(phase1, e)
			continue
		}
		if idx, ok := byID[e.EntryID]; ok {
			if moreComplete(e, phase1[idx]) {
				phase1[idx] = e
			}
			continue
		}
		byID[e.EntryID] = len(phase1)
		phase1 = append(phase1, e)
	}

	// phase 2: collapse by composite key
	byKey := make(map[entryKey]int)
	result := make([]model.FileAccessEntry, 0, len(phase1))
	for _, e := range phase1 {
		k := keyOf(e)
		if idx, ok := byKey[k]; ok {
			if moreComplete(e, result[idx]) {
				result[idx] = e
			}
			continue
		}
		byKey[k] = len(result)
		result = append(result, e)
	}

	return result
}

// BuildUpdatePayload constructs the incremental update for one closed
// window: only the single latest log entry and the single new section,
// never the accumulated arrays. The server appends and merges.
func BuildUpdatePayload(ref model.SessionRef, username string, entry model.FileAccessEntry, section model.ReplaySection) model.SessionUpdate {
	return model.SessionUpdate{
		Username:      username,
		SessionToken:  ref.Token,
		FileAccessLog: []model.FileAccessEntry{entry},
		Sections:      []model.ReplaySection{section},
	}
}

// PayloadSize returns the serialized size of an update payload in bytes.
func PayloadSize(upd model.SessionUpdate) (int, error) {
	data, err := json.Marshal(upd)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
