package session

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/classboard/classboard-api/model"
	sessionsvc "github.com/classboard/classboard-api/services/session"
	"github.com/classboard/classboard-api/utils/response"
	"github.com/classboard/classboard-api/utils/validation"
)

// SessionHandler handles teacher session record requests
type SessionHandler struct {
	sessions  *sessionsvc.Service
	validator *validation.Validator
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *sessionsvc.Service) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		validator: validation.NewValidator(),
	}
}

// GetSession handles GET /teacher-sessions/:id
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	record, err := h.sessions.Get(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, sessionsvc.ErrSessionNotFound) {
			return response.NotFound(c, "Teacher session not found")
		}
		return response.InternalServerError(c, "Failed to load teacher session")
	}

	return response.Success(c, record)
}

// ListMySessions handles GET /teacher-sessions for the logged-in teacher
func (h *SessionHandler) ListMySessions(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	sessions, err := h.sessions.ListForUser(c.Context(), userID, limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list teacher sessions")
	}

	return response.Success(c, sessions)
}

// UpdateSession handles PUT /teacher-sessions/:id. The body carries one
// incremental update (the newest log entries and sections only); the
// service merges it into the accumulated record and returns the result.
func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	var upd model.SessionUpdate
	if err := c.BodyParser(&upd); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(upd); err != nil {
		return response.ValidationError(c, err)
	}

	record, err := h.sessions.ApplyUpdate(c.Context(), uint(id), upd)
	if err != nil {
		switch {
		case errors.Is(err, sessionsvc.ErrSessionNotFound):
			return response.NotFound(c, "Teacher session not found")
		case errors.Is(err, sessionsvc.ErrTokenMismatch):
			return response.Forbidden(c, "Session token does not match")
		default:
			return response.InternalServerError(c, "Failed to update teacher session")
		}
	}

	return response.Success(c, record)
}
