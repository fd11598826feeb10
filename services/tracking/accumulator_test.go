package tracking

import (
	"testing"
)

func TestPointerIdleSplitOnTick(t *testing.T) {
	// window opens under the cursor, movement for 2s, then silence
	acc := NewAccumulator(ModePointer, 0, 0)
	for _, ts := range []int64{500, 1000, 1500, 2000} {
		acc.OnMouseActivity(ts)
	}

	// 1s of silence is still within the threshold
	acc.Tick(3000)
	// 2.1s of silence crosses it; active must be credited only up to the
	// last movement, not up to the tick
	acc.Tick(4100)

	got := acc.Stop(5000)
	if got.ActiveMs != 2000 {
		t.Errorf("expected 2000ms active, got %d", got.ActiveMs)
	}
	if got.IdleMs != 3000 {
		t.Errorf("expected 3000ms idle, got %d", got.IdleMs)
	}
}

func TestPointerMissedIdleTransition(t *testing.T) {
	// no ticks at all: the idle gap is only discovered when movement resumes
	acc := NewAccumulator(ModePointer, 0, 0)
	acc.OnMouseActivity(1000)
	acc.OnMouseActivity(6000) // 5s gap

	got := acc.Stop(7000)
	if got.ActiveMs != 2000 {
		t.Errorf("expected 2000ms active, got %d", got.ActiveMs)
	}
	if got.IdleMs != 5000 {
		t.Errorf("expected 5000ms idle, got %d", got.IdleMs)
	}
}

func TestPointerContinuousMovement(t *testing.T) {
	acc := NewAccumulator(ModePointer, 0, 0)
	for ts := int64(1000); ts <= 10000; ts += 1000 {
		acc.OnMouseActivity(ts)
		acc.Tick(ts)
	}

	got := acc.Stop(10000)
	if got.ActiveMs != 10000 || got.IdleMs != 0 {
		t.Errorf("expected fully active window, got active=%d idle=%d", got.ActiveMs, got.IdleMs)
	}
}

func TestVideoPlayPauseAccounting(t *testing.T) {
	acc := NewAccumulator(ModeVideo, 0, 0)
	acc.OnPlay(1000)
	acc.OnPause(4000)
	acc.OnPlay(5000)
	acc.OnEnded(6000)

	got := acc.Stop(8000)
	if got.ActiveMs != 4000 {
		t.Errorf("expected 4000ms active, got %d", got.ActiveMs)
	}
	if got.IdleMs != 4000 {
		t.Errorf("expected 4000ms idle, got %d", got.IdleMs)
	}
}

func TestVideoRepeatedPlayKeepsOriginalStart(t *testing.T) {
	acc := NewAccumulator(ModeVideo, 0, 0)
	acc.OnPlay(1000)
	acc.OnPlay(2000) // duplicate play event, must not reset the span
	acc.OnPause(3000)

	got := acc.Stop(3000)
	if got.ActiveMs != 2000 {
		t.Errorf("expected 2000ms active, got %d", got.ActiveMs)
	}
}

func TestStopConservation(t *testing.T) {
	// whatever the event sequence, active + idle must equal the window span
	acc := NewAccumulator(ModePointer, 100, 0)
	acc.OnMouseActivity(700)
	acc.Tick(3500)
	acc.OnMouseActivity(9000)
	acc.OnMouseActivity(9300)

	opened, closed := int64(100), int64(12345)
	got := acc.Stop(closed)
	if got.ActiveMs+got.IdleMs != closed-opened {
		t.Errorf("conservation violated: active=%d idle=%d span=%d",
			got.ActiveMs, got.IdleMs, closed-opened)
	}
}

func TestVideoStillPlayingAtStop(t *testing.T) {
	acc := NewAccumulator(ModeVideo, 0, 0)
	acc.OnPlay(500)

	got := acc.Stop(4500)
	if got.ActiveMs != 4000 {
		t.Errorf("expected open play span flushed to 4000ms, got %d", got.ActiveMs)
	}
	if got.IdleMs != 500 {
		t.Errorf("expected 500ms idle, got %d", got.IdleMs)
	}
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	acc := NewAccumulator(ModeVideo, 0, 0)
	acc.OnPlay(1000)

	first := acc.Snapshot(3000)
	second := acc.Snapshot(3000)
	if first != second {
		t.Errorf("snapshot mutated state: %+v vs %+v", first, second)
	}

	final := acc.Stop(3000)
	if final.ActiveMs != first.ActiveMs {
		t.Errorf("snapshot and stop disagree: %d vs %d", first.ActiveMs, final.ActiveMs)
	}
}

func TestStopClampsClockSkew(t *testing.T) {
	// close timestamp before open must not produce negative durations
	acc := NewAccumulator(ModePointer, 5000, 0)
	got := acc.Stop(4000)
	if got.ActiveMs != 0 || got.IdleMs != 0 {
		t.Errorf("expected zeroed accounting on clock skew, got %+v", got)
	}
}
