package replay

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classboard/classboard-api/model"
)

var ErrReplayNotFound = errors.New("replay not found")

// commandBuffer bounds the per-replay command queue; a stalled SSE
// consumer drops commands instead of blocking the event handlers
const commandBuffer = 16

// Instance is one live replay viewer: the rewritten events it plays, its
// synchronizer, and the command stream its SSE subscriber drains.
type Instance struct {
	ID       string              `json:"id"`
	Section  model.ReplaySection `json:"section"`
	Duration float64             `json:"duration"` // seconds

	sync     *Synchronizer
	commands chan Command

	mu         sync.Mutex
	lastAccess time.Time
	disposed   bool
}

// Synchronizer returns the instance's state machine
func (in *Instance) Synchronizer() *Synchronizer {
	return in.sync
}

// Commands returns the channel the SSE stream reads from
func (in *Instance) Commands() <-chan Command {
	return in.commands
}

// Push queues a command for the SSE subscriber. Zero commands are
// skipped; a full queue drops the command with a warning. The send holds
// the instance lock so a concurrent Dispose cannot close the channel
// under it.
func (in *Instance) Push(cmd Command) {
	if cmd.IsZero() {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.lastAccess = time.Now()
	if in.disposed {
		return
	}
	select {
	case in.commands <- cmd:
	default:
		log.Printf("Warning: replay %s command queue full, dropping command", in.ID)
	}
}

func (in *Instance) touch() {
	in.mu.Lock()
	in.lastAccess = time.Now()
	in.mu.Unlock()
}

// Registry holds the live replay instances. Instances are created when a
// viewer opens a section and disposed when the viewer closes, with a cron
// sweep for viewers that never said goodbye.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Instance
	rewriter  *Rewriter
}

// NewRegistry creates a registry. The rewriter is applied to every
// section's events at instance creation so the replay client only ever
// sees proxied asset URLs.
func NewRegistry(rewriter *Rewriter) *Registry {
	return &Registry{
		instances: make(map[string]*Instance),
		rewriter:  rewriter,
	}
}

// Create registers a new replay instance for a section. The section's
// events are rewritten once, up front.
func (r *Registry) Create(section model.ReplaySection) *Instance {
	if r.rewriter != nil {
		section.Events = r.rewriter.RewriteEvents(section.Events)
	}

	duration := float64(section.Duration) / 1000.0
	in := &Instance{
		ID:         uuid.NewString(),
		Section:    section,
		Duration:   duration,
		sync:       NewSynchronizer(duration),
		commands:   make(chan Command, commandBuffer),
		lastAccess: time.Now(),
	}

	r.mu.Lock()
	r.instances[in.ID] = in
	r.mu.Unlock()
	return in
}

// Get returns a live instance by id
func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.instances[id]
	if !ok {
		return nil, ErrReplayNotFound
	}
	in.touch()
	return in, nil
}

// Dispose removes an instance and closes its command stream. Disposing an
// unknown id is not an error; the cron sweep and an explicit dispose can
// race.
func (r *Registry) Dispose(id string) {
	r.mu.Lock()
	in, ok := r.instances[id]
	if ok {
		delete(r.instances, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	in.mu.Lock()
	if !in.disposed {
		in.disposed = true
		close(in.commands)
	}
	in.mu.Unlock()
}

// PruneIdle disposes instances untouched for longer than maxIdle and
// returns how many were removed.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []string
	for id, in := range r.instances {
		in.mu.Lock()
		idle := in.lastAccess.Before(cutoff)
		in.mu.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.Dispose(id)
	}
	return len(stale)
}

// Count returns the number of live instances
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
