package folder

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/utils/response"
)

// FolderHandler handles class material folder requests
type FolderHandler struct {
	db *gorm.DB
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(db *gorm.DB) *FolderHandler {
	return &FolderHandler{db: db}
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Name            string `json:"name" validate:"required"`
	CourseClassName string `json:"courseClassName" validate:"required"`
	SectionName     string `json:"sectionName" validate:"required"`
	SubjectName     string `json:"subjectName" validate:"required"`
}

// ListFolders handles GET /folders with optional scope filters
func (h *FolderHandler) ListFolders(c *fiber.Ctx) error {
	query := h.db.Model(&model.Folder{})

	if class := c.Query("class"); class != "" {
		query = query.Where("course_class_name = ?", class)
	}
	if section := c.Query("section"); section != "" {
		query = query.Where("section_name = ?", section)
	}
	if subject := c.Query("subject"); subject != "" {
		query = query.Where("subject_name = ?", subject)
	}

	var folders []model.Folder
	if err := query.Order("created_at DESC").Find(&folders).Error; err != nil {
		return response.InternalServerError(c, "Failed to list folders")
	}

	return response.Success(c, folders)
}

// GetFolder handles GET /folders/:id, including the folder's files
func (h *FolderHandler) GetFolder(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid folder ID")
	}

	var folder model.Folder
	if err := h.db.Preload("Files").First(&folder, uint(id)).Error; err != nil {
		return response.NotFound(c, "Folder not found")
	}

	return response.Success(c, folder)
}

// CreateFolder handles POST /folders
func (h *FolderHandler) CreateFolder(c *fiber.Ctx) error {
	var req CreateFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Name == "" || req.CourseClassName == "" || req.SectionName == "" || req.SubjectName == "" {
		return response.BadRequest(c, "Name, class, section, and subject are required")
	}

	ownerID, _ := c.Locals("user_id").(uint)

	folder := model.Folder{
		Name:            req.Name,
		CourseClassName: req.CourseClassName,
		SectionName:     req.SectionName,
		SubjectName:     req.SubjectName,
		OwnerID:         ownerID,
	}
	if err := h.db.Create(&folder).Error; err != nil {
		return response.InternalServerError(c, "Failed to create folder")
	}

	return response.Created(c, folder)
}

// DeleteFolder handles DELETE /folders/:id
func (h *FolderHandler) DeleteFolder(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid folder ID")
	}

	result := h.db.Delete(&model.Folder{}, uint(id))
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete folder")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Folder not found")
	}

	return response.Success(c, fiber.Map{"message": "Folder deleted"})
}
