package file

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/services/storage"
	"github.com/classboard/classboard-api/utils/pdfvalidation"
	"github.com/classboard/classboard-api/utils/response"
)

// FileHandler handles uploads and the serving proxy for class material
type FileHandler struct {
	db     *gorm.DB
	spaces *storage.SpacesClient
}

// NewFileHandler creates a new file handler
func NewFileHandler(db *gorm.DB, spaces *storage.SpacesClient) *FileHandler {
	return &FileHandler{db: db, spaces: spaces}
}

// ListFiles handles GET /folders/:folder_id/files
func (h *FileHandler) ListFiles(c *fiber.Ctx) error {
	folderID, err := strconv.ParseUint(c.Params("folder_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid folder ID")
	}

	var files []model.File
	if err := h.db.Where("folder_id = ?", uint(folderID)).Order("created_at DESC").Find(&files).Error; err != nil {
		return response.InternalServerError(c, "Failed to list files")
	}

	return response.Success(c, files)
}

// GetFile handles GET /files/:id
func (h *FileHandler) GetFile(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid file ID")
	}

	var file model.File
	if err := h.db.First(&file, uint(id)).Error; err != nil {
		return response.NotFound(c, "File not found")
	}

	return response.Success(c, file)
}

// UploadFile handles POST /folders/:folder_id/files (multipart)
func (h *FileHandler) UploadFile(c *fiber.Ctx) error {
	folderID, err := strconv.ParseUint(c.Params("folder_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid folder ID")
	}

	var folder model.Folder
	if err := h.db.First(&folder, uint(folderID)).Error; err != nil {
		return response.NotFound(c, "Folder not found")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "Missing file upload")
	}

	contentType := storage.GetContentType(fileHeader.Filename)

	// PDFs get structural validation and a page count
	pageCount := 0
	if strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		result, err := pdfvalidation.ValidatePDFFile(fileHeader, pdfvalidation.UploadLimits)
		if err != nil {
			return response.InternalServerError(c, "Failed to validate PDF")
		}
		if !result.Valid {
			return response.BadRequest(c, result.Error)
		}
		pageCount = result.PageCount
	}

	src, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read upload")
	}
	defer src.Close()

	key := storage.GenerateKey("materials", fileHeader.Filename)
	if _, err := h.spaces.UploadFile(c.Context(), key, src, contentType); err != nil {
		return response.InternalServerError(c, "Failed to store file")
	}

	uploadedBy, _ := c.Locals("user_id").(uint)

	file := model.File{
		FolderID:   folder.ID,
		Name:       fileHeader.Filename,
		MimeType:   contentType,
		StorageKey: key,
		Size:       fileHeader.Size,
		PageCount:  pageCount,
		UploadedBy: uploadedBy,
	}
	if err := h.db.Create(&file).Error; err != nil {
		return response.InternalServerError(c, "Failed to save file record")
	}

	return response.Created(c, file)
}

// DeleteFile handles DELETE /files/:id
func (h *FileHandler) DeleteFile(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid file ID")
	}

	var file model.File
	if err := h.db.First(&file, uint(id)).Error; err != nil {
		return response.NotFound(c, "File not found")
	}

	// Soft delete the record first; the object is only removed once the
	// record is gone
	if err := h.db.Delete(&file).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete file")
	}
	if err := h.spaces.DeleteFile(c.Context(), file.StorageKey); err != nil {
		return response.InternalServerError(c, "Failed to delete stored object")
	}

	return response.Success(c, fiber.Map{"message": "File deleted"})
}

// Serve handles GET /api/files/serve/:filename. Replay snapshots and the
// dashboard both resolve their assets here by filename; the bytes stream
// straight from object storage.
func (h *FileHandler) Serve(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if filename == "" {
		return response.BadRequest(c, "Missing filename")
	}

	var file model.File
	if err := h.db.Where("name = ?", filename).Order("created_at DESC").First(&file).Error; err != nil {
		return response.NotFound(c, "File not found")
	}

	obj, err := h.spaces.OpenFile(c.Context(), file.StorageKey)
	if err != nil {
		return response.InternalServerError(c, "Failed to open stored object")
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = file.MimeType
	}
	c.Set(fiber.HeaderContentType, contentType)
	if obj.ContentLength > 0 {
		c.Set(fiber.HeaderContentLength, strconv.FormatInt(obj.ContentLength, 10))
	}

	return c.SendStream(obj.Body)
}
