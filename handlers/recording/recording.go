package recording

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/services/storage"
	trackingsvc "github.com/classboard/classboard-api/services/tracking"
	"github.com/classboard/classboard-api/utils/response"
)

// RecordingHandler handles screen-recording lifecycle and the recorded
// candidate session intake.
type RecordingHandler struct {
	db         *gorm.DB
	spaces     *storage.SpacesClient
	candidates *trackingsvc.CandidateStore
}

// NewRecordingHandler creates a new recording handler
func NewRecordingHandler(db *gorm.DB, spaces *storage.SpacesClient, candidates *trackingsvc.CandidateStore) *RecordingHandler {
	return &RecordingHandler{db: db, spaces: spaces, candidates: candidates}
}

// StartRequest starts a screen recording for a teacher session
type StartRequest struct {
	SessionID uint   `json:"sessionId" validate:"required"`
	FileName  string `json:"fileName,omitempty"`
}

// Start handles POST /recordings/start
func (h *RecordingHandler) Start(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.SessionID == 0 {
		return response.BadRequest(c, "sessionId is required")
	}

	var sess model.TeacherSession
	if err := h.db.First(&sess, req.SessionID).Error; err != nil {
		return response.NotFound(c, "Teacher session not found")
	}

	rec := model.Recording{
		TeacherSessionID: sess.ID,
		Status:           model.RecordingStatusRecording,
		FileName:         req.FileName,
		StartedAt:        time.Now(),
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return response.InternalServerError(c, "Failed to create recording")
	}

	return response.Created(c, rec)
}

// Stop handles POST /recordings/:id/stop. An optional multipart "file"
// part carries the captured video; without it the recording is just
// marked stopped.
func (h *RecordingHandler) Stop(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid recording ID")
	}

	var rec model.Recording
	if err := h.db.First(&rec, uint(id)).Error; err != nil {
		return response.NotFound(c, "Recording not found")
	}
	if rec.Status != model.RecordingStatusRecording {
		return response.Conflict(c, "Recording is not in progress")
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		src, err := fileHeader.Open()
		if err != nil {
			return response.InternalServerError(c, "Failed to read uploaded recording")
		}
		defer src.Close()

		key := storage.GenerateKey("recordings", fileHeader.Filename)
		if _, err := h.spaces.UploadFile(c.Context(), key, src, storage.GetContentType(fileHeader.Filename)); err != nil {
			rec.Status = model.RecordingStatusFailed
			h.db.Save(&rec)
			return response.InternalServerError(c, "Failed to store recording")
		}
		rec.StorageKey = key
		if rec.FileName == "" {
			rec.FileName = fileHeader.Filename
		}
	}

	now := time.Now()
	rec.Status = model.RecordingStatusStopped
	rec.StoppedAt = &now
	rec.Duration = now.Sub(rec.StartedAt).Milliseconds()
	if err := h.db.Save(&rec).Error; err != nil {
		return response.InternalServerError(c, "Failed to update recording")
	}

	return response.Success(c, rec)
}

// CandidateRequest submits recorded candidate sessions for later
// reconciliation against a viewing window.
type CandidateRequest struct {
	SessionID uint                    `json:"sessionId" validate:"required"`
	Sessions  []model.RecordedSession `json:"sessions" validate:"required"`
}

// SubmitCandidates handles POST /recordings/candidates. Batches arrive
// while windows are still open; they sit in Redis until the next close
// reconciles them.
func (h *RecordingHandler) SubmitCandidates(c *fiber.Ctx) error {
	var req CandidateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.SessionID == 0 || len(req.Sessions) == 0 {
		return response.BadRequest(c, "sessionId and sessions are required")
	}

	for _, rec := range req.Sessions {
		if err := h.candidates.Add(c.Context(), req.SessionID, rec); err != nil {
			return response.InternalServerError(c, "Failed to store candidate session")
		}
	}

	count, _ := h.candidates.Count(c.Context(), req.SessionID)
	return response.Success(c, fiber.Map{
		"stored": len(req.Sessions),
		"total":  count,
	})
}
