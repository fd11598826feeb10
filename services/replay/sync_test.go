package replay

import (
	"testing"
)

func TestLoopDetection(t *testing.T) {
	s := NewSynchronizer(10.0)

	if cmd := s.OnTimeUpdate(9.5); !cmd.IsZero() {
		t.Fatalf("expected no command near the end, got %+v", cmd)
	}
	// the element wrapped around: near-end to near-zero jump
	cmd := s.OnTimeUpdate(0.1)
	if !cmd.LoopDetected || !cmd.Ended {
		t.Fatalf("expected loop detection to end the replay, got %+v", cmd)
	}
	if !cmd.Pause || !cmd.SuppressPlay || !cmd.Seek {
		t.Errorf("expected pin-to-end command, got %+v", cmd)
	}
	if cmd.SeekTo != 10.0-endEpsilon {
		t.Errorf("expected seek to %.2f, got %.2f", 10.0-endEpsilon, cmd.SeekTo)
	}
	if s.State() != StateEnded {
		t.Errorf("expected ENDED state, got %s", s.State())
	}
}

func TestTimeUpdateAtDurationEndsReplay(t *testing.T) {
	// some browsers swallow the ended event on a looping element; reaching
	// the duration must end the replay on its own
	s := NewSynchronizer(10.0)

	cmd := s.OnTimeUpdate(9.99)
	if !cmd.Ended || !cmd.Pause || !cmd.SuppressPlay {
		t.Fatalf("expected end command at the final frame, got %+v", cmd)
	}
	if s.State() != StateEnded {
		t.Fatalf("expected ENDED state, got %s", s.State())
	}
	if play := s.OnPlay(); !play.SuppressPlay {
		t.Errorf("expected play suppressed after implicit end, got %+v", play)
	}
}

func TestShortClipNeverLoops(t *testing.T) {
	// on a 3s clip the end and zero windows overlap; a wrap-around jump is
	// indistinguishable from normal playback and must not end the replay
	s := NewSynchronizer(3.0)
	s.OnTimeUpdate(2.8)
	if cmd := s.OnTimeUpdate(0.1); !cmd.IsZero() {
		t.Errorf("expected no loop detection on short clip, got %+v", cmd)
	}
	if s.State() != StatePlaying {
		t.Errorf("expected PLAYING state, got %s", s.State())
	}
}

func TestEndedStateIsSticky(t *testing.T) {
	s := NewSynchronizer(20.0)
	s.OnEnded()

	// the looping element keeps playing; every play is suppressed
	if cmd := s.OnPlay(); !cmd.SuppressPlay || !cmd.Pause {
		t.Errorf("expected suppressed play after end, got %+v", cmd)
	}
	// a timeupdate far from the end is pinned back
	if cmd := s.OnTimeUpdate(4.0); !cmd.Seek || cmd.SeekTo != 20.0-endEpsilon {
		t.Errorf("expected pin back to final frame, got %+v", cmd)
	}
	// a timeupdate already at the final frame needs nothing
	if cmd := s.OnTimeUpdate(19.96); !cmd.IsZero() {
		t.Errorf("expected no command at the final frame, got %+v", cmd)
	}
}

func TestPlayWhilePlayingIsAllowed(t *testing.T) {
	s := NewSynchronizer(20.0)
	if cmd := s.OnPlay(); !cmd.IsZero() {
		t.Errorf("expected play to pass through while playing, got %+v", cmd)
	}
}

func TestSyncDriftCorrection(t *testing.T) {
	s := NewSynchronizer(60.0)

	if cmd := s.Sync(10.0, 10.05); !cmd.IsZero() {
		t.Errorf("expected drift within tolerance to pass, got %+v", cmd)
	}
	if cmd := s.Sync(10.0, 10.2); !cmd.Seek || cmd.SeekTo != 10.0 {
		t.Errorf("expected corrective seek to master clock, got %+v", cmd)
	}
	// drift is symmetric
	if cmd := s.Sync(10.2, 10.0); !cmd.Seek || cmd.SeekTo != 10.2 {
		t.Errorf("expected corrective seek when video lags, got %+v", cmd)
	}

	// after the end the master clock no longer drives the element
	s.OnEnded()
	if cmd := s.Sync(5.0, 59.9); !cmd.IsZero() {
		t.Errorf("expected no sync after end, got %+v", cmd)
	}
}

func TestGuardTick(t *testing.T) {
	s := NewSynchronizer(30.0)

	if cmd := s.GuardTick(2.0); !cmd.IsZero() {
		t.Errorf("expected no guard action while playing, got %+v", cmd)
	}

	s.OnEnded()
	if cmd := s.GuardTick(2.0); !cmd.Seek || cmd.SeekTo != 30.0-endEpsilon {
		t.Errorf("expected guard to pin drifted element, got %+v", cmd)
	}
	if cmd := s.GuardTick(29.96); !cmd.IsZero() {
		t.Errorf("expected no guard action at final frame, got %+v", cmd)
	}
}
