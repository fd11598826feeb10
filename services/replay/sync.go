package replay

import (
	"sync"
)

// Playback state of a synchronized replay. Once a replay reaches
// StateEnded it stays there; the looping <video> element underneath keeps
// firing play/timeupdate events and every one of them must be suppressed.
type State int

const (
	StatePlaying State = iota
	StateEnded
)

func (s State) String() string {
	if s == StateEnded {
		return "ENDED"
	}
	return "PLAYING"
}

const (
	// endEpsilon is how close to the duration the frozen frame is pinned
	endEpsilon = 0.05

	// nearEndWindow and nearZeroWindow bound the loop jump detection: a
	// timeupdate moving from inside the end window to inside the zero
	// window is the element wrapping around, not a user seek
	nearEndWindow  = 1.0
	nearZeroWindow = 1.0

	// minLoopDuration guards tiny clips where end and start windows overlap
	minLoopDuration = 5.0

	// driftTolerance is the master-clock drift above which the video is
	// snapped back into sync
	driftTolerance = 0.1
)

// Command tells the replay client what to do with its video element.
// The zero value means "carry on".
type Command struct {
	Pause        bool    `json:"pause,omitempty"`
	SuppressPlay bool    `json:"suppressPlay,omitempty"`
	Seek         bool    `json:"seek,omitempty"`
	SeekTo       float64 `json:"seekTo,omitempty"`
	Ended        bool    `json:"ended,omitempty"`
	LoopDetected bool    `json:"loopDetected,omitempty"`
}

// IsZero reports whether the command asks for nothing
func (c Command) IsZero() bool {
	return c == Command{}
}

// Synchronizer arbitrates between the replay master clock and the video
// element under it. Safe for concurrent use; timeupdate posts and the
// guard tick arrive on different goroutines.
type Synchronizer struct {
	mu       sync.Mutex
	duration float64
	state    State
	lastTime float64
}

// NewSynchronizer creates a synchronizer for a replay of the given
// duration in seconds.
func NewSynchronizer(duration float64) *Synchronizer {
	return &Synchronizer{duration: duration}
}

// State returns the current playback state
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// pinToEnd builds the command that freezes the element on its final frame
func (s *Synchronizer) pinToEnd() Command {
	return Command{
		Pause:        true,
		SuppressPlay: true,
		Seek:         true,
		SeekTo:       s.duration - endEpsilon,
		Ended:        true,
	}
}

// OnTimeUpdate processes one timeupdate from the video element. Reaching
// the duration (within endEpsilon) ends the replay even when the browser
// never fires the ended event. It also detects the loop wrap-around
// (near-end to near-zero jump on a clip long enough for the two windows
// to be distinct) and, once ended, pins any stray progress back to the
// final frame.
func (s *Synchronizer) OnTimeUpdate(current float64) Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		if s.duration-current > nearEndWindow {
			return s.pinToEnd()
		}
		return Command{}
	}

	if s.duration > 0 && s.duration-current <= endEpsilon {
		s.state = StateEnded
		return s.pinToEnd()
	}

	looped := s.duration >= minLoopDuration &&
		s.duration-s.lastTime <= nearEndWindow &&
		current <= nearZeroWindow
	s.lastTime = current

	if looped {
		s.state = StateEnded
		cmd := s.pinToEnd()
		cmd.LoopDetected = true
		return cmd
	}
	return Command{}
}

// OnEnded locks the replay into the ended state
func (s *Synchronizer) OnEnded() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateEnded
	return s.pinToEnd()
}

// OnPlay processes a play event. After the replay has ended the element
// may still start playing (autoplay loop, user click on the element
// itself); those plays are suppressed.
func (s *Synchronizer) OnPlay() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return s.pinToEnd()
	}
	return Command{}
}

// Sync compares the replay master clock with the element position and
// issues a corrective seek when they drift apart.
func (s *Synchronizer) Sync(masterTime, videoTime float64) Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return Command{}
	}
	drift := masterTime - videoTime
	if drift < 0 {
		drift = -drift
	}
	if drift > driftTolerance {
		return Command{Seek: true, SeekTo: masterTime}
	}
	return Command{}
}

// GuardTick is the periodic watchdog for an ended replay: if the element
// has crept away from the final frame it is pinned back. Returns the zero
// command while the replay is still playing.
func (s *Synchronizer) GuardTick(current float64) Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEnded {
		return Command{}
	}
	if s.duration-current > nearEndWindow {
		return s.pinToEnd()
	}
	return Command{}
}
