package tracking

import (
	"github.com/classboard/classboard-api/model"
)

// Accounting mode for a viewing window
type Mode int

const (
	// ModeVideo credits played duration as active time
	ModeVideo Mode = iota
	// ModePointer credits time with fresh mouse movement as active time
	ModePointer
)

// DefaultIdleThresholdMs is the pointer-mode freshness threshold: movement
// older than this counts as idle.
const DefaultIdleThresholdMs = 2000

type pointerState int

const (
	pointerActive pointerState = iota
	pointerIdle
)

// Accumulator tracks active/idle durations for a single open viewing window.
// All timestamps are client-event Unix milliseconds; the accumulator never
// reads the wall clock, so a sequence of events always produces the same
// accounting.
type Accumulator struct {
	mode          Mode
	idleThreshold int64
	openedAt      int64

	// video mode
	playStartedAt int64 // 0 when not playing

	// pointer mode
	state         pointerState
	spanStartedAt int64
	lastMoveAt    int64

	activeMs int64
	idleMs   int64
}

// NewAccumulator creates an accumulator for a window opened at openedAt.
// idleThresholdMs <= 0 selects the default.
func NewAccumulator(mode Mode, openedAt int64, idleThresholdMs int64) *Accumulator {
	if idleThresholdMs <= 0 {
		idleThresholdMs = DefaultIdleThresholdMs
	}
	a := &Accumulator{
		mode:          mode,
		idleThreshold: idleThresholdMs,
		openedAt:      openedAt,
	}
	if mode == ModePointer {
		// the window opens under the cursor, so the first span is active
		a.state = pointerActive
		a.spanStartedAt = openedAt
		a.lastMoveAt = openedAt
	}
	return a
}

// OpenedAt returns the window open timestamp.
func (a *Accumulator) OpenedAt() int64 {
	return a.openedAt
}

// Mode returns the accounting mode.
func (a *Accumulator) Mode() Mode {
	return a.mode
}

func clampMs(d int64) int64 {
	if d < 0 {
		return 0
	}
	return d
}

// OnPlay marks playback start. Repeated plays without a pause keep the
// original play start.
func (a *Accumulator) OnPlay(ts int64) {
	if a.mode != ModeVideo {
		return
	}
	if a.playStartedAt == 0 {
		a.playStartedAt = ts
	}
}

func (a *Accumulator) flushPlay(ts int64) {
	if a.playStartedAt != 0 {
		a.activeMs += clampMs(ts - a.playStartedAt)
		a.playStartedAt = 0
	}
}

// OnPause flushes the open play span.
func (a *Accumulator) OnPause(ts int64) {
	if a.mode != ModeVideo {
		return
	}
	a.flushPlay(ts)
}

// OnSeek is accounted like a pause: the played span up to the seek counts,
// playback resumes with the next play event.
func (a *Accumulator) OnSeek(ts int64) {
	a.OnPause(ts)
}

// OnEnded flushes the final play span.
func (a *Accumulator) OnEnded(ts int64) {
	a.OnPause(ts)
}

// OnMouseActivity records pointer movement. If the movement arrives after a
// silent gap longer than the idle threshold, the elapsed gap is credited as
// idle and the active span is only credited up to the last movement.
func (a *Accumulator) OnMouseActivity(ts int64) {
	if a.mode != ModePointer {
		return
	}
	switch a.state {
	case pointerActive:
		if ts-a.lastMoveAt > a.idleThreshold {
			// missed the idle transition: split the span at the last move
			a.activeMs += clampMs(a.lastMoveAt - a.spanStartedAt)
			a.idleMs += clampMs(ts - a.lastMoveAt)
			a.spanStartedAt = ts
		}
	case pointerIdle:
		a.idleMs += clampMs(ts - a.spanStartedAt)
		a.state = pointerActive
		a.spanStartedAt = ts
	}
	a.lastMoveAt = ts
}

// Tick drives the 1 Hz accounting check. In pointer mode it detects the
// active-to-idle transition; the active span is credited only up to the
// last observed movement.
func (a *Accumulator) Tick(ts int64) {
	if a.mode != ModePointer {
		return
	}
	if a.state == pointerActive && ts-a.lastMoveAt > a.idleThreshold {
		a.activeMs += clampMs(a.lastMoveAt - a.spanStartedAt)
		a.state = pointerIdle
		a.spanStartedAt = a.lastMoveAt
	}
}

// Snapshot returns the accounting as of ts without closing the window.
// Used for the periodic counter persistence.
func (a *Accumulator) Snapshot(ts int64) model.Accounting {
	active := a.activeMs
	switch a.mode {
	case ModeVideo:
		if a.playStartedAt != 0 {
			active += clampMs(ts - a.playStartedAt)
		}
	case ModePointer:
		if a.state == pointerActive && ts-a.lastMoveAt <= a.idleThreshold {
			active += clampMs(ts - a.spanStartedAt)
		} else if a.state == pointerActive {
			active += clampMs(a.lastMoveAt - a.spanStartedAt)
		}
	}
	total := clampMs(ts - a.openedAt)
	if active > total {
		active = total
	}
	return model.Accounting{ActiveMs: active, IdleMs: total - active}
}

// Stop closes the window at ts and returns the final accounting. Idle time
// is derived from the open duration so that active + idle always equals
// closedAt - openedAt; clock skew clamps to zero instead of going negative.
func (a *Accumulator) Stop(ts int64) model.Accounting {
	switch a.mode {
	case ModeVideo:
		a.flushPlay(ts)
	case ModePointer:
		switch a.state {
		case pointerActive:
			if ts-a.lastMoveAt > a.idleThreshold {
				a.activeMs += clampMs(a.lastMoveAt - a.spanStartedAt)
			} else {
				a.activeMs += clampMs(ts - a.spanStartedAt)
			}
		case pointerIdle:
			a.idleMs += clampMs(ts - a.spanStartedAt)
		}
	}

	total := clampMs(ts - a.openedAt)
	if a.activeMs > total {
		a.activeMs = total
	}
	a.idleMs = total - a.activeMs
	return model.Accounting{ActiveMs: a.activeMs, IdleMs: a.idleMs}
}
