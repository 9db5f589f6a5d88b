package handlers

import (
	"net/http"
	"strings"

	"storefront-backend/database"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// catalogRequest is the body shared by category and brand writes.
type catalogRequest struct {
	Name   string       `json:"name" binding:"required,max=255"`
	Status utils.Scalar `json:"status" binding:"required,oneof=0 1"`
}

// nameTaken reports whether another row of model already uses name.
func nameTaken(db *gorm.DB, model any, name string, exceptID uint) bool {
	var count int64
	q := db.Model(model).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	q.Count(&count)
	return count > 0
}

type CategoryHandler struct {
	DB *gorm.DB
}

// GetCategories lists active categories, or every category for an admin.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	query := h.DB.Order("name ASC")
	if !middleware.IsAdmin(c) {
		query = query.Where("status = ?", models.StatusActive)
	}

	var categories []models.Category
	if err := query.Find(&categories).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}
	respondData(c, categories)
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, ok := paramID(c, "id", "Category not found")
	if !ok {
		return
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		respondNotFound(c, "Category not found")
		return
	}
	respondData(c, category)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req catalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if nameTaken(h.DB, &models.Category{}, name, 0) {
		respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
		return
	}

	category := models.Category{Name: name, Slug: utils.Slugify(name), Status: req.Status.Int()}
	if err := h.DB.Create(&category).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Category added successfully.",
		"data":    category,
	})
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id", "Category not found")
	if !ok {
		return
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		respondNotFound(c, "Category not found")
		return
	}

	var req catalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if nameTaken(h.DB, &models.Category{}, name, category.ID) {
		respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
		return
	}

	category.Name = name
	category.Slug = utils.Slugify(name)
	category.Status = req.Status.Int()
	if err := h.DB.Save(&category).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to update category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Category updated successfully.",
		"data":    category,
	})
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id", "Category not found")
	if !ok {
		return
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		respondNotFound(c, "Category not found")
		return
	}

	// Products keep a hard reference to their category.
	var productCount int64
	if err := h.DB.Model(&models.Product{}).Where("category_id = ?", id).Count(&productCount).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to check category dependencies")
		return
	}
	if productCount > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"status":        http.StatusConflict,
			"message":       "Cannot delete category with associated products",
			"product_count": productCount,
		})
		return
	}

	if err := h.DB.Delete(&category).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Category deleted successfully.",
	})
}
