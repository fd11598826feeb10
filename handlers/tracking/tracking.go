package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/classboard/classboard-api/model"
	trackingsvc "github.com/classboard/classboard-api/services/tracking"
	"github.com/classboard/classboard-api/utils/response"
)

// TrackingHandler handles the viewing-window lifecycle endpoints
type TrackingHandler struct {
	db      *gorm.DB
	tracker *trackingsvc.Tracker
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(db *gorm.DB, tracker *trackingsvc.Tracker) *TrackingHandler {
	return &TrackingHandler{db: db, tracker: tracker}
}

// OpenRequest opens a viewing window for one file
type OpenRequest struct {
	SessionID    uint   `json:"sessionId" validate:"required"`
	SessionToken string `json:"sessionToken" validate:"required"`
	FileID       uint   `json:"fileId" validate:"required"`
	OpenedAt     int64  `json:"openedAt" validate:"required"` // Unix milliseconds
}

// EventRequest feeds one viewer event into an open window
type EventRequest struct {
	SessionID    uint   `json:"sessionId" validate:"required"`
	SessionToken string `json:"sessionToken" validate:"required"`
	FileID       uint   `json:"fileId" validate:"required"`
	Type         string `json:"type" validate:"required"`
	Timestamp    int64  `json:"timestamp" validate:"required"` // Unix milliseconds
}

// CloseRequest closes a viewing window. Candidates carries any recorded
// sessions still held client-side that never reached the intake endpoint.
type CloseRequest struct {
	SessionID    uint                    `json:"sessionId" validate:"required"`
	SessionToken string                  `json:"sessionToken" validate:"required"`
	FileID       uint                    `json:"fileId" validate:"required"`
	ClosedAt     int64                   `json:"closedAt" validate:"required"` // Unix milliseconds
	Candidates   []model.RecordedSession `json:"candidates,omitempty"`
}

// Open handles POST /tracking/open
func (h *TrackingHandler) Open(c *fiber.Ctx) error {
	var req OpenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.SessionID == 0 || req.SessionToken == "" || req.FileID == 0 || req.OpenedAt == 0 {
		return response.BadRequest(c, "sessionId, sessionToken, fileId, and openedAt are required")
	}

	var file model.File
	if err := h.db.First(&file, req.FileID).Error; err != nil {
		return response.NotFound(c, "File not found")
	}

	username, _ := c.Locals("username").(string)
	ref := model.SessionRef{SessionID: req.SessionID, Token: req.SessionToken}

	entry, err := h.tracker.OpenWindow(c.Context(), ref, username, file, req.OpenedAt)
	if err != nil {
		if errors.Is(err, trackingsvc.ErrWindowAlreadyOpen) {
			return response.Conflict(c, "A viewing window is already open for this file")
		}
		return response.InternalServerError(c, "Failed to open viewing window")
	}

	return response.Created(c, entry)
}

// Event handles POST /tracking/event
func (h *TrackingHandler) Event(c *fiber.Ctx) error {
	var req EventRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.SessionID == 0 || req.FileID == 0 || req.Type == "" || req.Timestamp == 0 {
		return response.BadRequest(c, "sessionId, fileId, type, and timestamp are required")
	}

	ref := model.SessionRef{SessionID: req.SessionID, Token: req.SessionToken}
	accounting, err := h.tracker.HandleEvent(c.Context(), ref, req.FileID, req.Type, req.Timestamp)
	if err != nil {
		if errors.Is(err, trackingsvc.ErrWindowNotFound) {
			return response.NotFound(c, "No open viewing window for this file")
		}
		return response.BadRequest(c, err.Error())
	}

	return response.Success(c, accounting)
}

// Close handles POST /tracking/close. Even when the final submission
// fails, the computed accounting and section come back so the client is
// not left guessing what was lost.
func (h *TrackingHandler) Close(c *fiber.Ctx) error {
	var req CloseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.SessionID == 0 || req.SessionToken == "" || req.FileID == 0 || req.ClosedAt == 0 {
		return response.BadRequest(c, "sessionId, sessionToken, fileId, and closedAt are required")
	}

	ref := model.SessionRef{SessionID: req.SessionID, Token: req.SessionToken}
	result, err := h.tracker.CloseWindow(c.Context(), ref, req.FileID, req.ClosedAt, req.Candidates)
	if err != nil {
		if errors.Is(err, trackingsvc.ErrWindowNotFound) {
			return response.NotFound(c, "No open viewing window for this file")
		}
		// the window state is already gone; report the partial result
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Viewing window closed but the update could not be persisted",
			"data":    result,
		})
	}

	return response.Success(c, result)
}
