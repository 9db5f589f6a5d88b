package handlers

import (
	"net/http"
	"strings"

	"storefront-backend/database"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type sizeRequest struct {
	Name string `json:"name" binding:"required,max=50"`
}

type SizeHandler struct {
	DB *gorm.DB
}

func (h *SizeHandler) GetSizes(c *gin.Context) {
	var sizes []models.Size
	if err := h.DB.Order("id ASC").Find(&sizes).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch sizes")
		return
	}
	respondData(c, sizes)
}

func (h *SizeHandler) GetSize(c *gin.Context) {
	id, ok := paramID(c, "id", "Size not found")
	if !ok {
		return
	}

	var size models.Size
	if err := h.DB.First(&size, id).Error; err != nil {
		respondNotFound(c, "Size not found")
		return
	}
	respondData(c, size)
}

func (h *SizeHandler) CreateSize(c *gin.Context) {
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if nameTaken(h.DB, &models.Size{}, name, 0) {
		respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
		return
	}

	size := models.Size{Name: name}
	if err := h.DB.Create(&size).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create size")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Size added successfully.",
		"data":    size,
	})
}

func (h *SizeHandler) UpdateSize(c *gin.Context) {
	id, ok := paramID(c, "id", "Size not found")
	if !ok {
		return
	}

	var size models.Size
	if err := h.DB.First(&size, id).Error; err != nil {
		respondNotFound(c, "Size not found")
		return
	}

	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if nameTaken(h.DB, &models.Size{}, name, size.ID) {
		respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
		return
	}

	size.Name = name
	if err := h.DB.Save(&size).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update size")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Size updated successfully.",
		"data":    size,
	})
}

// DeleteSize also detaches the size from every product offering it.
func (h *SizeHandler) DeleteSize(c *gin.Context) {
	id, ok := paramID(c, "id", "Size not found")
	if !ok {
		return
	}

	var size models.Size
	if err := h.DB.First(&size, id).Error; err != nil {
		respondNotFound(c, "Size not found")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM product_sizes WHERE size_id = ?", size.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&size).Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete size")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Size deleted successfully.",
	})
}
