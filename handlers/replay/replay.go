package replay

import (
	"bufio"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	replaysvc "github.com/classboard/classboard-api/services/replay"
	sessionsvc "github.com/classboard/classboard-api/services/session"
	"github.com/classboard/classboard-api/utils/response"
	"github.com/classboard/classboard-api/utils/sse"
)

// ReplayHandler handles replay viewer lifecycle and synchronization
type ReplayHandler struct {
	registry *replaysvc.Registry
	sessions *sessionsvc.Service
}

// NewReplayHandler creates a new replay handler
func NewReplayHandler(registry *replaysvc.Registry, sessions *sessionsvc.Service) *ReplayHandler {
	return &ReplayHandler{registry: registry, sessions: sessions}
}

// CreateRequest opens a replay viewer for one recorded section
type CreateRequest struct {
	SessionID uint   `json:"sessionId" validate:"required"`
	SectionID string `json:"sectionId" validate:"required"`
}

// Create handles POST /replays. The section's events are rewritten to the
// serving proxy before the client ever sees them.
func (h *ReplayHandler) Create(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.SessionID == 0 || req.SectionID == "" {
		return response.BadRequest(c, "sessionId and sectionId are required")
	}

	record, err := h.sessions.Get(c.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, sessionsvc.ErrSessionNotFound) {
			return response.NotFound(c, "Teacher session not found")
		}
		return response.InternalServerError(c, "Failed to load teacher session")
	}

	for _, section := range record.Sections {
		if section.ID == req.SectionID {
			instance := h.registry.Create(section)
			return response.Created(c, instance)
		}
	}
	return response.NotFound(c, "Section not found in this session")
}

// TimeUpdateRequest carries one timeupdate from the replay video element
type TimeUpdateRequest struct {
	CurrentTime float64 `json:"currentTime"`
}

// TimeUpdate handles POST /replays/:id/timeupdate
func (h *ReplayHandler) TimeUpdate(c *fiber.Ctx) error {
	instance, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return response.NotFound(c, "Replay not found")
	}

	var req TimeUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	cmd := instance.Synchronizer().OnTimeUpdate(req.CurrentTime)
	instance.Push(cmd)
	return response.Success(c, cmd)
}

// EventRequest carries a play or ended event from the replay element
type EventRequest struct {
	Type string `json:"type" validate:"required"` // "play" or "ended"
}

// Event handles POST /replays/:id/event
func (h *ReplayHandler) Event(c *fiber.Ctx) error {
	instance, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return response.NotFound(c, "Replay not found")
	}

	var req EventRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var cmd replaysvc.Command
	switch req.Type {
	case "play":
		cmd = instance.Synchronizer().OnPlay()
	case "ended":
		cmd = instance.Synchronizer().OnEnded()
	default:
		return response.BadRequest(c, "Unknown replay event type")
	}

	instance.Push(cmd)
	return response.Success(c, cmd)
}

// SyncRequest compares the replay master clock with the element position
type SyncRequest struct {
	MasterTime float64 `json:"masterTime"`
	VideoTime  float64 `json:"videoTime"`
}

// Sync handles POST /replays/:id/sync
func (h *ReplayHandler) Sync(c *fiber.Ctx) error {
	instance, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return response.NotFound(c, "Replay not found")
	}

	var req SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	cmd := instance.Synchronizer().Sync(req.MasterTime, req.VideoTime)
	instance.Push(cmd)
	return response.Success(c, cmd)
}

// Stream handles GET /replays/:id/stream. Commands queued by the event
// endpoints are delivered as SSE events; a periodic keepalive holds the
// connection open through proxies.
func (h *ReplayHandler) Stream(c *fiber.Ctx) error {
	instance, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return response.NotFound(c, "Replay not found")
	}

	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case cmd, ok := <-instance.Commands():
				if !ok {
					// instance disposed, close the stream
					return
				}
				if cmd.Ended {
					if err := sse.SendEnded(w, cmd); err != nil {
						return
					}
					continue
				}
				if err := sse.SendSync(w, cmd); err != nil {
					return
				}
			case <-keepalive.C:
				if err := sse.SendKeepAlive(w); err != nil {
					return
				}
			}
		}
	})

	return nil
}

// Dispose handles DELETE /replays/:id
func (h *ReplayHandler) Dispose(c *fiber.Ctx) error {
	h.registry.Dispose(c.Params("id"))
	return response.Success(c, fiber.Map{"message": "Replay disposed"})
}
