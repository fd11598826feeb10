package replay

import (
	"testing"
	"time"

	"github.com/classboard/classboard-api/model"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	in := r.Create(model.ReplaySection{ID: "sec", Duration: 10000})

	if in.Duration != 10.0 {
		t.Errorf("expected duration 10s, got %.2f", in.Duration)
	}
	if got, err := r.Get(in.ID); err != nil || got != in {
		t.Fatalf("expected to get the created instance back, got %v (%v)", got, err)
	}

	r.Dispose(in.ID)
	if _, err := r.Get(in.ID); err != ErrReplayNotFound {
		t.Errorf("expected ErrReplayNotFound after dispose, got %v", err)
	}
	if _, ok := <-in.Commands(); ok {
		t.Error("expected command channel closed after dispose")
	}

	// disposing again must not panic (cron sweep races explicit dispose)
	r.Dispose(in.ID)
}

func TestPushAfterDisposeIsDropped(t *testing.T) {
	r := NewRegistry(nil)
	in := r.Create(model.ReplaySection{ID: "sec", Duration: 10000})

	r.Dispose(in.ID)
	// a timeupdate racing the dispose must not send on the closed channel
	in.Push(Command{Pause: true})
}

func TestPushDropsWhenQueueFull(t *testing.T) {
	r := NewRegistry(nil)
	in := r.Create(model.ReplaySection{ID: "sec", Duration: 10000})

	for i := 0; i < commandBuffer+5; i++ {
		in.Push(Command{Seek: true, SeekTo: float64(i)})
	}
	if got := len(in.commands); got != commandBuffer {
		t.Errorf("expected queue capped at %d, got %d", commandBuffer, got)
	}
}

func TestPushSkipsZeroCommand(t *testing.T) {
	r := NewRegistry(nil)
	in := r.Create(model.ReplaySection{ID: "sec", Duration: 10000})

	in.Push(Command{})
	if got := len(in.commands); got != 0 {
		t.Errorf("expected zero command skipped, got %d queued", got)
	}
}

func TestPruneIdle(t *testing.T) {
	r := NewRegistry(nil)
	stale := r.Create(model.ReplaySection{ID: "old", Duration: 1000})
	fresh := r.Create(model.ReplaySection{ID: "new", Duration: 1000})

	stale.mu.Lock()
	stale.lastAccess = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	if pruned := r.PruneIdle(time.Hour); pruned != 1 {
		t.Fatalf("expected 1 instance pruned, got %d", pruned)
	}
	if _, err := r.Get(stale.ID); err != ErrReplayNotFound {
		t.Errorf("expected stale instance gone, got %v", err)
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Errorf("expected fresh instance kept, got %v", err)
	}
}
