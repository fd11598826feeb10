package tracking

import (
	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/utils/ids"
)

// DefaultMergeBufferMs is the tolerance applied around the viewing window
// when matching candidate recordings against it. Recorder start-up and
// clock drift routinely push candidate bounds outside the window.
const DefaultMergeBufferMs = 30000

// Merge reconciles zero or more candidate recorded sessions against one
// file-open window and returns exactly one section.
//
// Candidates overlapping the buffered window are concatenated in producer
// order; events are never re-sorted by timestamp. If nothing overlaps but
// recorded events exist, all of them are kept and the bounds derive from
// the candidates themselves: losing captured interaction data is worse
// than imprecise windowing. With no events at all, an empty section still
// records the window timing.
//
// The section id depends only on (sessionToken, fileID, windowStart), so a
// retried close produces the same id and the server-side append stays
// idempotent.
func Merge(candidates []model.RecordedSession, sessionToken string, fileID uint, windowStart, windowEnd, bufferMs int64) model.ReplaySection {
	if bufferMs <= 0 {
		bufferMs = DefaultMergeBufferMs
	}

	section := model.ReplaySection{
		ID:        ids.SectionID(sessionToken, fileID, windowStart),
		StartTime: windowStart,
		EndTime:   windowEnd,
		Events:    []model.ReplayEvent{},
	}

	var (
		included   bool
		haveEvents bool
	)
	for _, cand := range candidates {
		if len(cand.Events) == 0 {
			continue
		}
		haveEvents = true
		if cand.EndTime+bufferMs < windowStart || cand.StartTime-bufferMs > windowEnd {
			continue
		}
		if !included {
			included = true
		}
		section.Events = append(section.Events, cand.Events...)
		if cand.StartTime < section.StartTime {
			section.StartTime = cand.StartTime
		}
		if cand.EndTime > section.EndTime {
			section.EndTime = cand.EndTime
		}
	}

	if !included && haveEvents {
		// nothing matched the window: keep everything rather than dropping it
		first := true
		for _, cand := range candidates {
			if len(cand.Events) == 0 {
				continue
			}
			section.Events = append(section.Events, cand.Events...)
			if first || cand.StartTime < section.StartTime {
				section.StartTime = cand.StartTime
			}
			if first || cand.EndTime > section.EndTime {
				section.EndTime = cand.EndTime
			}
			first = false
		}
	}

	section.Duration = section.EndTime - section.StartTime
	if section.Duration < 0 {
		section.Duration = 0
	}
	return section
}
